package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"quarterdeck-booking/internal/logger"
)

// ConnectRedis opens a client and checks it can both read and write before
// handing it out.
func ConnectRedis(ctx context.Context, addr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	healthKey := "healthcheck:booking-service"
	if err := client.Set(ctx, healthKey, "ok", 5*time.Second).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis write %s: %w", addr, err)
	}

	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", addr, client.Options().DB))
	return client, nil
}
