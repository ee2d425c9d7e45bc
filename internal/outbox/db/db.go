package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"quarterdeck-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// Claim selects due PENDING events and pushes each one's next_attempt_at past the
// lease. The update re-checks that the row is still due, so a row claimed by
// another relay in between is skipped.
func (d *DB) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.OutboxEvent, error) {
	var due []models.OutboxEvent
	err := d.Bun.NewSelect().
		Model(&due).
		Where("status = ?", models.OutboxPending).
		Where("next_attempt_at <= ?", now).
		Order("next_attempt_at ASC", "created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	leaseUntil := now.Add(lease)
	claimed := due[:0]
	for _, ev := range due {
		res, err := d.Bun.NewUpdate().
			Model((*models.OutboxEvent)(nil)).
			Set("next_attempt_at = ?", leaseUntil).
			Where("id = ?", ev.ID).
			Where("status = ?", models.OutboxPending).
			Where("next_attempt_at <= ?", now).
			Exec(ctx)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			ev.NextAttemptAt = leaseUntil
			claimed = append(claimed, ev)
		}
	}
	return claimed, nil
}

func (d *DB) SaveDelivery(ctx context.Context, ev *models.OutboxEvent) error {
	_, err := d.Bun.NewUpdate().
		Model(ev).
		Column("status", "attempts", "next_attempt_at", "last_error", "delivered_at").
		WherePK().
		Exec(ctx)
	return err
}

// CountByStatus reports the backlog, e.g. for the health endpoint.
func (d *DB) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error) {
	var rows []struct {
		Status models.OutboxStatus `bun:"status"`
		Count  int                 `bun:"count"`
	}
	err := d.Bun.NewSelect().
		Model((*models.OutboxEvent)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make(map[models.OutboxStatus]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// Requeue puts a dead event back in line with a fresh attempt budget.
func (d *DB) Requeue(ctx context.Context, id string, now time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.OutboxEvent)(nil)).
		Set("status = ?", models.OutboxPending).
		Set("attempts = 0").
		Set("next_attempt_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.OutboxDead).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}
