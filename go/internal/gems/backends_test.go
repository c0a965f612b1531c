package gems

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}
	client.FlushDB(ctx)

	return client
}

func TestRedisStore(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	store, err := NewRedisStore(client, DefaultConfig())
	require.NoError(t, err)
	runStoreContract(t, store)
}

func setupPostgresPool(t *testing.T) *pgxpool.Pool {
	dsn := os.Getenv("PAIRTALK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PAIRTALK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skip("Postgres not available:", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skip("Postgres not available:", err)
	}
	return pool
}

func TestPostgresStore(t *testing.T) {
	pool := setupPostgresPool(t)
	defer pool.Close()

	store, err := NewPostgresStore(pool, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))
	runStoreContract(t, store)
}
