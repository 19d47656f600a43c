package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, RedisConfig{Host: host, Port: port.Int()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSearchCache(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)
	c := NewRedisSearchCache(client, WithKeyPrefix("test:search:"), WithTTL(time.Minute))

	_, ok := c.Get(ctx, "city=omaha")
	assert.False(t, ok)

	c.Set(ctx, "city=omaha", testPage("Omaha Ranch", "Dundee Tudor"))
	page, ok := c.Get(ctx, "city=omaha")
	require.True(t, ok)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Dundee Tudor", page.Items[1].Title)
	assert.Equal(t, int64(2), page.Total)

	ttl, err := client.TTL(ctx, "test:search:v0:city=omaha").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	require.NoError(t, c.Invalidate(ctx))
	_, ok = c.Get(ctx, "city=omaha")
	assert.False(t, ok, "entries written before the bump are unreachable")

	c.Set(ctx, "city=omaha", testPage("Fresh"))
	page, ok = c.Get(ctx, "city=omaha")
	require.True(t, ok)
	assert.Equal(t, "Fresh", page.Items[0].Title)

	exists, err := client.Exists(ctx, "test:search:v1:city=omaha").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestRedisSearchCache_CorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)
	c := NewRedisSearchCache(client)

	require.NoError(t, client.Set(ctx, defaultSearchKeyPrefix+"v0:bad", "{not json", time.Minute).Err())
	_, ok := c.Get(ctx, "bad")
	assert.False(t, ok)
}

func TestRedisSearchCache_Unreachable(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	c := NewRedisSearchCache(client)
	defer c.Close()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.NotPanics(t, func() { c.Set(ctx, "k", testPage("x")) })
	assert.Error(t, c.Invalidate(ctx))
}

func TestRedisSearchCache_Keys(t *testing.T) {
	c := NewRedisSearchCache(nil, WithKeyPrefix("p:"))
	assert.Equal(t, "p:version", c.versionKey())
	assert.Equal(t, "p:v7:q=a", c.entryKey(7, "q=a"))
}
