package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
)

const principalKeyPrefix = "auth_principal:"

// CachingVerifier remembers verified principals in Redis so repeated requests
// with the same token skip signature and issuer checks. Keys are token digests.
// An entry never outlives the token it was verified from.
type CachingVerifier struct {
	Next   TokenVerifier
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
	Now    func() time.Time
}

func NewCachingVerifier(next TokenVerifier, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachingVerifier {
	return &CachingVerifier{Next: next, Client: client, TTL: ttl, Logger: log, Now: time.Now}
}

func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return principalKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachingVerifier) Verify(ctx context.Context, rawToken string) (*models.Principal, error) {
	key := tokenKey(rawToken)

	raw, err := c.Client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var p models.Principal
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			if !p.ExpiresAt.IsZero() && c.Now().Before(p.ExpiresAt) {
				return &p, nil
			}
		}
		// Stale or unreadable; the full check below decides.
		c.Client.Del(ctx, key)
	case err != redis.Nil:
		c.Logger.Warn("AUTH", fmt.Sprintf("Principal cache read failed: %v", err))
	}

	p, err := c.Next.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	ttl := c.TTL
	if !p.ExpiresAt.IsZero() {
		if remaining := p.ExpiresAt.Sub(c.Now()); remaining < ttl {
			ttl = remaining
		}
	}
	// Tokens without an exp claim are never cached.
	if ttl <= 0 || p.ExpiresAt.IsZero() {
		return p, nil
	}

	if encoded, err := json.Marshal(p); err == nil {
		if err := c.Client.Set(ctx, key, encoded, ttl).Err(); err != nil {
			c.Logger.Warn("AUTH", fmt.Sprintf("Principal cache write failed: %v", err))
		}
	}
	return p, nil
}
