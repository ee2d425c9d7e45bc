package redis

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"quarterdeck-booking/internal/logger"
)

// TestRedisIntegration runs the hold against a real Redis container.
func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	hold := NewRedis(client, logger.NewWithWriter(io.Discard), time.Second, 0)

	ok, err := hold.HoldSlot(ctx, "padel:1:2026-11-02", "req-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hold.HoldSlot(ctx, "padel:1:2026-11-02", "req-b")
	require.NoError(t, err)
	assert.False(t, ok, "Expected slot to be held")

	require.NoError(t, hold.ReleaseSlot(ctx, "padel:1:2026-11-02", "req-a"))

	ok, err = hold.HoldSlot(ctx, "padel:1:2026-11-02", "req-b")
	require.NoError(t, err)
	assert.True(t, ok, "Expected slot to be free after release")

	time.Sleep(1500 * time.Millisecond)
	holder, err := hold.HolderOf(ctx, "padel:1:2026-11-02")
	require.NoError(t, err)
	assert.Empty(t, holder, "Expected hold to expire")
}
