package gems

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pairtalk:gems:"

// chargeScript opens the account, then debits ARGV[2] if the balance covers
// it. Returns -1 when it does not.
var chargeScript = redis.NewScript(`
	redis.call("SET", KEYS[1], ARGV[1], "NX")
	local balance = tonumber(redis.call("GET", KEYS[1]))
	local cost = tonumber(ARGV[2])
	if balance < cost then
		return -1
	end
	return redis.call("DECRBY", KEYS[1], cost)
`)

// grantScript opens the account, then credits ARGV[2]
var grantScript = redis.NewScript(`
	redis.call("SET", KEYS[1], ARGV[1], "NX")
	return redis.call("INCRBY", KEYS[1], ARGV[2])
`)

// RedisStore keeps one integer key per account
type RedisStore struct {
	client *redis.Client
	config Config
}

func NewRedisStore(client *redis.Client, config Config) (*RedisStore, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, config: config}, nil
}

func key(userID string) string {
	return keyPrefix + userID
}

func (s *RedisStore) Balance(ctx context.Context, userID string) (int64, error) {
	if err := s.client.SetNX(ctx, key(userID), s.config.StartingBalance, 0).Err(); err != nil {
		return 0, fmt.Errorf("failed to open gem account %s: %w", userID, err)
	}
	balance, err := s.client.Get(ctx, key(userID)).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to read gem balance %s: %w", userID, err)
	}
	return balance, nil
}

func (s *RedisStore) CanAfford(ctx context.Context, userID string) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= s.config.ExtendCost, nil
}

func (s *RedisStore) Charge(ctx context.Context, userID string) (bool, error) {
	result, err := chargeScript.Run(ctx, s.client, []string{key(userID)}, s.config.StartingBalance, s.config.ExtendCost).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to charge gems %s: %w", userID, err)
	}
	return result >= 0, nil
}

func (s *RedisStore) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := checkGrant(amount); err != nil {
		return 0, err
	}
	balance, err := grantScript.Run(ctx, s.client, []string{key(userID)}, s.config.StartingBalance, amount).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to grant gems %s: %w", userID, err)
	}
	return balance, nil
}
