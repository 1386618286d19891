package testutil

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// TestRedis represents a Redis test container and a connected client
type TestRedis struct {
	Container *redis.RedisContainer
	Client    *goredis.Client
}

// SetupTestRedis starts a Redis container for the test
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()
	ctx := context.Background()

	container, err := redis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithLabels(map[string]string{
			"test":      "parimutuel-ledger",
			"test-name": t.Name(),
			"cleanup":   "auto",
		}),
	)
	require.NoError(t, err)

	tr := &TestRedis{Container: container}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if tr.Client != nil {
			_ = tr.Client.Close()
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)

	tr.Client = goredis.NewClient(opts)
	require.NoError(t, tr.Client.Ping(ctx).Err())
	return tr
}
