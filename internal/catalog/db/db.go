package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"quarterdeck-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrRecordNotFound
	}
	return err
}

// ---------------- FACILITIES ----------------

func (d *DB) ListFacilities(ctx context.Context, activeOnly bool) ([]models.Facility, error) {
	var out []models.Facility
	q := d.Bun.NewSelect().Model(&out)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// FindFacility resolves ref as an id or a slug. An id match wins when one
// facility's slug equals another's id.
func (d *DB) FindFacility(ctx context.Context, ref string) (*models.Facility, error) {
	var f models.Facility
	err := d.Bun.NewSelect().
		Model(&f).
		WhereOr("slug = ?", ref).
		WhereOr("id = ?", ref).
		OrderExpr("CASE WHEN id = ? THEN 0 ELSE 1 END", ref).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// ListAddOns returns the active add-ons offered at a facility, including global ones.
func (d *DB) ListAddOns(ctx context.Context, facilityID string) ([]models.AddOn, error) {
	var out []models.AddOn
	err := d.Bun.NewSelect().
		Model(&out).
		Where("active = ?", true).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("facility_id = ?", facilityID).WhereOr("facility_id IS NULL")
		}).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAddOns returns the subset of ids offered at the facility.
func (d *DB) GetAddOns(ctx context.Context, facilityID string, ids []string) ([]models.AddOn, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.AddOn
	err := d.Bun.NewSelect().
		Model(&out).
		Where("id IN (?)", bun.In(ids)).
		Where("active = ?", true).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("facility_id = ?", facilityID).WhereOr("facility_id IS NULL")
		}).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------- MEMBERSHIPS ----------------

func (d *DB) GetMembershipByNumber(ctx context.Context, number string) (*models.Membership, error) {
	var m models.Membership
	err := d.Bun.NewSelect().
		Model(&m).
		Where("number = ?", number).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (d *DB) GetTierRule(ctx context.Context, tier string) (*models.TierRule, error) {
	var r models.TierRule
	err := d.Bun.NewSelect().
		Model(&r).
		Where("tier = ?", tier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (d *DB) ListTierRules(ctx context.Context) ([]models.TierRule, error) {
	var out []models.TierRule
	if err := d.Bun.NewSelect().Model(&out).Order("discount_percent ASC", "tier ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------- SEEDING ----------------

// Seed inserts reference rows, leaving rows that already exist untouched.
func (d *DB) Seed(ctx context.Context, facilities []models.Facility, addOns []models.AddOn, tiers []models.TierRule, members []models.Membership) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(facilities) > 0 {
			if _, err := tx.NewInsert().Model(&facilities).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		if len(addOns) > 0 {
			if _, err := tx.NewInsert().Model(&addOns).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		if len(tiers) > 0 {
			if _, err := tx.NewInsert().Model(&tiers).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		if len(members) > 0 {
			if _, err := tx.NewInsert().Model(&members).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
