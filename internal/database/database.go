package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"quarterdeck-booking/internal/config"
	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
)

// OpenPostgres connects through lib/pq, retrying the ping while the database starts up.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN not set")
	}

	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	retries := cfg.ConnRetries
	if retries < 1 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, retries))
		if err = sqldb.PingContext(ctx); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < retries-1 {
			select {
			case <-ctx.Done():
				sqldb.Close()
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", retries, err)
	}

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// OpenSQLite opens a SQLite database through sqliteshim. A single connection keeps
// ":memory:" databases shared across queries.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

var schemaModels = []interface{}{
	(*models.Facility)(nil),
	(*models.AddOn)(nil),
	(*models.TierRule)(nil),
	(*models.Membership)(nil),
	(*models.Booking)(nil),
	(*models.OutboxEvent)(nil),
	(*models.NotificationLog)(nil),
}

// CreateSchema builds the tables from the bun models. Postgres deployments use the
// versioned migrations instead; this serves SQLite in tests and local runs.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*models.Booking)(nil)).
		Index("bookings_active_slot_uq").
		Unique().
		IfNotExists().
		Column("facility_id", "resource_id", "booking_date", "start_time").
		Where("status <> 'CANCELLED'").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create active slot index: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.OutboxEvent)(nil)).
		Index("idx_outbox_due").
		IfNotExists().
		Column("status", "next_attempt_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create outbox index: %w", err)
	}
	return nil
}

// DropSchema removes every table created by CreateSchema.
func DropSchema(ctx context.Context, db bun.IDB) error {
	for i := len(schemaModels) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(schemaModels[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", schemaModels[i], err)
		}
	}
	return nil
}
