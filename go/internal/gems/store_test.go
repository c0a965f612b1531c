package gems

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every backend must share. Account
// ids are random so backends with persistent state need no cleanup.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("opens accounts with the starting balance", func(t *testing.T) {
		user := uuid.NewString()
		balance, err := store.Balance(ctx, user)
		require.NoError(t, err)
		assert.EqualValues(t, 3, balance)
	})

	t.Run("charges until empty", func(t *testing.T) {
		user := uuid.NewString()
		for i := 0; i < 3; i++ {
			ok, err := store.Charge(ctx, user)
			require.NoError(t, err)
			assert.True(t, ok)
		}

		ok, err := store.CanAfford(ctx, user)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.Charge(ctx, user)
		require.NoError(t, err)
		assert.False(t, ok)

		balance, err := store.Balance(ctx, user)
		require.NoError(t, err)
		assert.EqualValues(t, 0, balance)
	})

	t.Run("grant", func(t *testing.T) {
		user := uuid.NewString()
		balance, err := store.Grant(ctx, user, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 5, balance)

		_, err = store.Grant(ctx, user, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("concurrent charges never overdraw", func(t *testing.T) {
		user := uuid.NewString()
		var wg sync.WaitGroup
		var charged atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.Charge(ctx, user)
				assert.NoError(t, err)
				if ok {
					charged.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 3, charged.Load())
		balance, err := store.Balance(ctx, user)
		require.NoError(t, err)
		assert.EqualValues(t, 0, balance)
	})
}

func TestMemoryStore(t *testing.T) {
	store, err := NewMemoryStore(DefaultConfig())
	require.NoError(t, err)
	runStoreContract(t, store)
}

func TestConfigValidation(t *testing.T) {
	_, err := NewMemoryStore(Config{StartingBalance: 3, ExtendCost: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewMemoryStore(Config{StartingBalance: -1, ExtendCost: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
