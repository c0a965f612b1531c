package gems

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS gem_balances (
    user_id    TEXT PRIMARY KEY,
    balance    BIGINT NOT NULL CHECK (balance >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const openAccount = `
INSERT INTO gem_balances (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING`

// PostgresStore keeps balances in the gem_balances table. Debits are a
// single conditional UPDATE, so concurrent charges never overdraw.
type PostgresStore struct {
	pool   *pgxpool.Pool
	config Config
}

func NewPostgresStore(pool *pgxpool.Pool, config Config) (*PostgresStore, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, config: config}, nil
}

// EnsureSchema creates the gem_balances table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create gem_balances: %w", err)
	}
	return nil
}

func (s *PostgresStore) open(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, openAccount, userID, s.config.StartingBalance); err != nil {
		return fmt.Errorf("failed to open gem account %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) Balance(ctx context.Context, userID string) (int64, error) {
	if err := s.open(ctx, userID); err != nil {
		return 0, err
	}

	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM gem_balances WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to read gem balance %s: %w", userID, err)
	}
	return balance, nil
}

func (s *PostgresStore) CanAfford(ctx context.Context, userID string) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= s.config.ExtendCost, nil
}

func (s *PostgresStore) Charge(ctx context.Context, userID string) (bool, error) {
	if err := s.open(ctx, userID); err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE gem_balances
		SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2`,
		userID, s.config.ExtendCost,
	)
	if err != nil {
		return false, fmt.Errorf("failed to charge gems %s: %w", userID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := checkGrant(amount); err != nil {
		return 0, err
	}
	if err := s.open(ctx, userID); err != nil {
		return 0, err
	}

	var balance int64
	err := s.pool.QueryRow(ctx, `
		UPDATE gem_balances
		SET balance = balance + $2, updated_at = now()
		WHERE user_id = $1
		RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to grant gems %s: %w", userID, err)
	}
	return balance, nil
}
