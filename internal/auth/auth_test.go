package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
)

func TestHMACVerifierRoundTrip(t *testing.T) {
	v, err := NewHMACVerifier("test-secret")
	require.NoError(t, err)

	token, err := v.Issue(models.Principal{Subject: "user-1", Roles: []string{"admin"}}, time.Minute)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.Subject)
	assert.True(t, p.HasRole("admin"))
}

func TestHMACVerifierRejects(t *testing.T) {
	v, _ := NewHMACVerifier("test-secret")
	other, _ := NewHMACVerifier("other-secret")

	wrongKey, _ := other.Issue(models.Principal{Subject: "user-1"}, time.Minute)
	expired, _ := v.Issue(models.Principal{Subject: "user-1"}, -time.Minute)
	noSubject, _ := v.Issue(models.Principal{}, time.Minute)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte("test-secret"))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Minute).Unix()}).SignedString([]byte("test-secret"))

	for name, token := range map[string]string{
		"wrong key":  wrongKey,
		"expired":    expired,
		"no subject": noSubject,
		"no expiry":  noExpiry,
		"wrong alg":  wrongAlg,
		"garbage":    "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err := NewHMACVerifier("")
	assert.Error(t, err)
}

func TestExtractTokenFromRequest(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer abc", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer", "", true},
		{"Bearer a b", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractTokenFromRequest(r)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.token, got)
	}
}

func TestMiddlewareAndRequireRole(t *testing.T) {
	v, _ := NewHMACVerifier("test-secret")
	log := logger.NewWithWriter(io.Discard)

	var seen models.Principal
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	user := Middleware(v, log)(final)
	admin := Middleware(v, log)(RequireRole("admin", log)(final))

	userToken, _ := v.Issue(models.Principal{Subject: "user-1"}, time.Minute)
	adminToken, _ := v.Issue(models.Principal{Subject: "admin-1", Roles: []string{"admin"}}, time.Minute)

	do := func(h http.Handler, token string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(user, ""))
	assert.Equal(t, http.StatusUnauthorized, do(user, "bogus"))
	assert.Equal(t, http.StatusNoContent, do(user, userToken))
	assert.Equal(t, "user-1", seen.Subject)

	assert.Equal(t, http.StatusForbidden, do(admin, userToken))
	assert.Equal(t, http.StatusNoContent, do(admin, adminToken))
	assert.Equal(t, "admin-1", seen.Subject)
}

type countingVerifier struct {
	calls int
	next  TokenVerifier
}

func (c *countingVerifier) Verify(ctx context.Context, raw string) (*models.Principal, error) {
	c.calls++
	return c.next.Verify(ctx, raw)
}

func TestCachingVerifier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hmac, _ := NewHMACVerifier("test-secret")
	inner := &countingVerifier{next: hmac}
	v := NewCachingVerifier(inner, client, time.Minute, logger.NewWithWriter(io.Discard))

	token, _ := hmac.Issue(models.Principal{Subject: "user-1", Roles: []string{"staff"}}, time.Minute)
	for i := 0; i < 3; i++ {
		p, err := v.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.Subject)
		assert.Equal(t, []string{"staff"}, p.Roles)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := v.Verify(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Len(t, mr.Keys(), 1, "rejected tokens are not cached")

	mr.FastForward(2 * time.Minute)
	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

// stubVerifier accepts any token until its expiry, then rejects it.
type stubVerifier struct {
	calls     int
	now       *time.Time
	expiresAt time.Time
}

func (s *stubVerifier) Verify(ctx context.Context, raw string) (*models.Principal, error) {
	s.calls++
	if !s.now.Before(s.expiresAt) {
		return nil, ErrInvalidToken
	}
	return &models.Principal{Subject: "u", ExpiresAt: s.expiresAt}, nil
}

func TestCachingVerifierHonoursTokenExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	inner := &stubVerifier{now: &now, expiresAt: now.Add(time.Second)}
	v := NewCachingVerifier(inner, client, 2*time.Minute, logger.NewWithWriter(io.Discard))
	v.Now = func() time.Time { return now }

	p, err := v.Verify(context.Background(), "short-lived")
	require.NoError(t, err)
	assert.Equal(t, "u", p.Subject)
	ttl := mr.TTL(tokenKey("short-lived"))
	assert.True(t, ttl > 0 && ttl <= time.Second, "cache ttl %s exceeds token lifetime", ttl)

	// the Redis entry is still present, but the token has expired
	now = now.Add(2100 * time.Millisecond)
	require.True(t, mr.Exists(tokenKey("short-lived")))
	_, err = v.Verify(context.Background(), "short-lived")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 2, inner.calls)
	assert.False(t, mr.Exists(tokenKey("short-lived")))
}

func TestCachingVerifierCapsTTLAtRealTokenExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hmac, _ := NewHMACVerifier("test-secret")
	v := NewCachingVerifier(hmac, client, 2*time.Minute, logger.NewWithWriter(io.Discard))

	token, _ := hmac.Issue(models.Principal{Subject: "user-1"}, 5*time.Second)
	p, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, p.ExpiresAt.IsZero())
	assert.LessOrEqual(t, mr.TTL(tokenKey(token)), 5*time.Second)
}

func TestUserIDOutsideRequest(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
	assert.Equal(t, "u", UserID(WithPrincipal(context.Background(), models.Principal{Subject: "u"})))
}
