package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quarterdeck-booking/internal/catalog"
	catalogdb "quarterdeck-booking/internal/catalog/db"
	"quarterdeck-booking/internal/database/migrations"
	"quarterdeck-booking/internal/logger"
)

// seed loads the reference catalog into Postgres: facilities, add-ons, tier rules
// and a handful of sample memberships. Existing rows are left as they are.
func main() {
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("POSTGRES_DSN"), "postgres connection string")
	migrate := flag.Bool("migrate", true, "apply schema migrations before seeding")
	noMembers := flag.Bool("no-members", false, "skip the sample memberships")
	reset := flag.Bool("reset", false, "roll the schema back to empty before migrating (destroys data)")
	flag.Parse()

	log := logger.NewWithWriter(os.Stdout)
	if *dsn == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set and -dsn not given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(*dsn)))
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	if err := bunDB.PingContext(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}

	if *migrate || *reset {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
		if *reset {
			log.Warn("MIGRATE", "Rolling back all migrations")
			if err := runner.MigrateDown(); err != nil {
				log.Fatal("MIGRATE", fmt.Sprintf("Failed to roll back: %v", err))
			}
		}
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
	}

	data := catalog.DefaultSeed(time.Now())
	if *noMembers {
		data.Memberships = nil
	}

	store := &catalogdb.DB{Bun: bunDB}
	if err := store.Seed(ctx, data.Facilities, data.AddOns, data.Tiers, data.Memberships); err != nil {
		log.Fatal("SEED", fmt.Sprintf("Seeding failed: %v", err))
	}
	log.Info("SEED", fmt.Sprintf("Seeded %d facilities, %d add-ons, %d tiers, %d memberships",
		len(data.Facilities), len(data.AddOns), len(data.Tiers), len(data.Memberships)))
}
