package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"quarterdeck-booking/internal/models"
)

// Constraint names from the bookings migration.
const (
	activeSlotIndex     = "bookings_active_slot_uq"
	overlapExclusion    = "bookings_no_overlap"
	sqliteSlotViolation = "UNIQUE constraint failed: bookings.facility_id"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- BOOKINGS ----------------

// FindOverlapping returns non-cancelled bookings on the resource-day whose
// [start, end) intersects [startMinute, endMinute).
func (d *DB) FindOverlapping(ctx context.Context, facilityID string, resourceID int, date string, startMinute, endMinute int) ([]models.Booking, error) {
	return findOverlapping(ctx, d.Bun, facilityID, resourceID, date, startMinute, endMinute)
}

func findOverlapping(ctx context.Context, db bun.IDB, facilityID string, resourceID int, date string, startMinute, endMinute int) ([]models.Booking, error) {
	var out []models.Booking
	err := db.NewSelect().
		Model(&out).
		Where("facility_id = ?", facilityID).
		Where("resource_id = ?", resourceID).
		Where("booking_date = ?", date).
		Where("status <> ?", models.BookingCancelled).
		Where("start_minute < ?", endMinute).
		Where("end_minute > ?", startMinute).
		Order("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertBooking re-checks the slot and inserts the booking and its events in one
// transaction. Either the re-check or a constraint violation yields models.ErrSlotTaken.
func (d *DB) InsertBooking(ctx context.Context, b *models.Booking, events ...*models.OutboxEvent) error {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		overlapping, err := findOverlapping(ctx, tx, b.FacilityID, b.ResourceID, b.Date, b.StartMinute, b.EndMinute)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return models.ErrSlotTaken
		}

		if _, err := tx.NewInsert().Model(b).Exec(ctx); err != nil {
			return err
		}
		if len(events) > 0 {
			if _, err := tx.NewInsert().Model(&events).Exec(ctx); err != nil {
				return fmt.Errorf("insert outbox events: %w", err)
			}
		}
		return nil
	})
	return translate(err)
}

// GetBookingByID → fetch one booking
func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	return getBooking(ctx, d.Bun, id)
}

func getBooking(ctx context.Context, db bun.IDB, id string) (*models.Booking, error) {
	var b models.Booking
	err := db.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateStatus applies change only if the row still has (FromStatus, FromPayment),
// writing events in the same transaction.
func (d *DB) UpdateStatus(ctx context.Context, id string, change models.StatusChange, events ...*models.OutboxEvent) (*models.Booking, error) {
	var updated *models.Booking
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := getBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != change.FromStatus || current.PaymentStatus != change.FromPayment {
			return models.ErrStaleStatus
		}

		change.Apply(current)
		res, err := tx.NewUpdate().
			Model(current).
			Column("status", "payment_status", "payment_reference", "status_reason", "updated_at", "confirmed_at", "cancelled_at").
			WherePK().
			Where("status = ?", change.FromStatus).
			Where("payment_status = ?", change.FromPayment).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return models.ErrStaleStatus
		}

		if len(events) > 0 {
			if _, err := tx.NewInsert().Model(&events).Exec(ctx); err != nil {
				return fmt.Errorf("insert outbox events: %w", err)
			}
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

// ListBookings → filtered page ordered by day then start
func (d *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var out []models.Booking
	q := d.Bun.NewSelect().Model(&out)
	if filter.FacilityID != "" {
		q = q.Where("facility_id = ?", filter.FacilityID)
	}
	if filter.Date != "" {
		q = q.Where("booking_date = ?", filter.Date)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	err := q.Order("booking_date ASC", "start_minute ASC", "resource_id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// translate maps slot constraint violations from Postgres or SQLite to models.ErrSlotTaken.
func translate(err error) error {
	if err == nil || errors.Is(err, models.ErrSlotTaken) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation", "exclusion_violation":
			if pqErr.Constraint == activeSlotIndex || pqErr.Constraint == overlapExclusion {
				return fmt.Errorf("%w: %s", models.ErrSlotTaken, pqErr.Message)
			}
		}
		return err
	}

	if strings.Contains(err.Error(), sqliteSlotViolation) {
		return fmt.Errorf("%w: %v", models.ErrSlotTaken, err)
	}
	return err
}
