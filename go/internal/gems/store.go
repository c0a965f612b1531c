package gems

import (
	"context"
	"fmt"
)

// Store is a gem ledger. Accounts are opened lazily with the starting
// balance on first access.
type Store interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// CanAfford reports whether userID holds at least one extension's cost
	CanAfford(ctx context.Context, userID string) (bool, error)
	// Charge debits one extension's cost. It returns false, and leaves the
	// balance untouched, when the balance is insufficient.
	Charge(ctx context.Context, userID string) (bool, error)
	Grant(ctx context.Context, userID string, amount int64) (int64, error)
}

// Config holds the ledger defaults
type Config struct {
	StartingBalance int64
	ExtendCost      int64
}

// DefaultConfig returns the defaults of the original in-memory ledger
func DefaultConfig() Config {
	return Config{
		StartingBalance: 3,
		ExtendCost:      1,
	}
}

func (c Config) validate() error {
	if c.StartingBalance < 0 {
		return fmt.Errorf("%w: starting balance %d", ErrInvalidConfig, c.StartingBalance)
	}
	if c.ExtendCost <= 0 {
		return fmt.Errorf("%w: extend cost %d", ErrInvalidConfig, c.ExtendCost)
	}
	return nil
}

func checkGrant(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return nil
}
