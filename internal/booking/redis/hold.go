package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"quarterdeck-booking/internal/logger"
)

const (
	holdPrefix    = "slot_hold:"
	retryInterval = 25 * time.Millisecond
)

// releaseScript deletes the hold only when it still belongs to the caller, so an
// expired and re-acquired hold is never released by its previous owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis holds short-lived per resource-day slot locks while a booking is being written.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
	TTL    time.Duration
	Wait   time.Duration
}

func NewRedis(client *redis.Client, log *logger.Logger, ttl, wait time.Duration) *Redis {
	return &Redis{
		Client: client,
		Logger: log,
		TTL:    ttl,
		Wait:   wait,
	}
}

// HoldSlot takes the hold for key, retrying until Wait elapses. It returns false
// without error when another owner keeps the hold for the whole wait.
func (r *Redis) HoldSlot(ctx context.Context, key, owner string) (bool, error) {
	deadline := time.Now().Add(r.Wait)
	for {
		ok, err := r.Client.SetNX(ctx, holdPrefix+key, owner, r.TTL).Result()
		if err != nil {
			r.Logger.Warn("REDIS", fmt.Sprintf("Slot hold for %s unavailable: %v", key, err))
			return false, err
		}
		if ok {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			r.Logger.Debug("REDIS", fmt.Sprintf("Slot %s still held after %s", key, r.Wait))
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// ReleaseSlot drops the hold if owner still has it.
func (r *Redis) ReleaseSlot(ctx context.Context, key, owner string) error {
	err := releaseScript.Run(ctx, r.Client, []string{holdPrefix + key}, owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.Logger.Warn("REDIS", fmt.Sprintf("Failed to release slot hold %s: %v", key, err))
		return err
	}
	return nil
}

// HolderOf returns the current owner of key, or "" when nobody holds it.
func (r *Redis) HolderOf(ctx context.Context, key string) (string, error) {
	val, err := r.Client.Get(ctx, holdPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}
