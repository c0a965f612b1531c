package gems

import (
	"context"
	"sync"
)

// MemoryStore keeps balances in process memory. Balances are lost on
// restart.
type MemoryStore struct {
	mu       sync.Mutex
	config   Config
	balances map[string]int64
}

func NewMemoryStore(config Config) (*MemoryStore, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &MemoryStore{
		config:   config,
		balances: make(map[string]int64),
	}, nil
}

// account returns the balance of userID, opening the account if needed.
// Caller holds mu.
func (s *MemoryStore) account(userID string) int64 {
	balance, ok := s.balances[userID]
	if !ok {
		balance = s.config.StartingBalance
		s.balances[userID] = balance
	}
	return balance
}

func (s *MemoryStore) Balance(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account(userID), nil
}

func (s *MemoryStore) CanAfford(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account(userID) >= s.config.ExtendCost, nil
}

func (s *MemoryStore) Charge(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.account(userID)
	if balance < s.config.ExtendCost {
		return false, nil
	}
	s.balances[userID] = balance - s.config.ExtendCost
	return true, nil
}

func (s *MemoryStore) Grant(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := checkGrant(amount); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.account(userID) + amount
	s.balances[userID] = balance
	return balance, nil
}
