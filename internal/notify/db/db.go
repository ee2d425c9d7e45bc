package db

import (
	"context"

	"github.com/uptrace/bun"

	"quarterdeck-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// Reserve inserts the log row unless (event_id, channel) already exists.
func (d *DB) Reserve(ctx context.Context, entry *models.NotificationLog) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(entry).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (d *DB) Release(ctx context.Context, eventID, channel string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.NotificationLog)(nil)).
		Where("event_id = ?", eventID).
		Where("channel = ?", channel).
		Exec(ctx)
	return err
}

func (d *DB) ListForBooking(ctx context.Context, bookingID string) ([]models.NotificationLog, error) {
	var out []models.NotificationLog
	err := d.Bun.NewSelect().
		Model(&out).
		Where("booking_id = ?", bookingID).
		Order("sent_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}
