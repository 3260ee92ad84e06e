package seed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenride/seed-engine/seed"
)

// memStore is an in-memory Store with real version semantics so the retry
// loop can be exercised without a database.
type memStore struct {
	mu       sync.Mutex
	balances map[string]*seed.BalanceRecord
	entries  []seed.LedgerEntry
	nextID   int64

	// conflictsLeft forces that many artificial version conflicts.
	conflictsLeft int
}

func newMemStore() *memStore {
	return &memStore{balances: map[string]*seed.BalanceRecord{}, nextID: 1}
}

func (s *memStore) GetBalance(_ context.Context, userID string) (*seed.BalanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.balances[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) ApplyEntry(_ context.Context, entry seed.LedgerEntry, expectedVersion int64) (seed.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return seed.LedgerEntry{}, seed.ErrVersionConflict
	}

	rec := s.balances[entry.UserID]
	var version int64
	if rec != nil {
		version = rec.Version
	}
	if version != expectedVersion {
		return seed.LedgerEntry{}, seed.ErrVersionConflict
	}

	now := time.Now()
	s.balances[entry.UserID] = &seed.BalanceRecord{
		UserID:    entry.UserID,
		Balance:   entry.BalanceSnapshot,
		Version:   version + 1,
		UpdatedAt: now,
	}
	entry.ID = s.nextID
	s.nextID++
	entry.CreatedAt = now
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *memStore) sumFor(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestBalanceManager_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("first earn creates the balance row", func(t *testing.T) {
		// GIVEN a user with no ledger activity
		store := newMemStore()
		mgr := seed.NewBalanceManager(store, testLogger())

		// WHEN one seed is earned
		entry, err := mgr.Apply(ctx, seed.ApplyInput{
			UserID:      "driver-1",
			Amount:      1,
			Type:        seed.EntryEarned,
			Reason:      seed.ReasonEventNotOccurred,
			Description: "drive duration reward",
		})

		// THEN the entry snapshot and stored balance both read 1
		require.NoError(t, err)
		assert.Equal(t, int64(1), entry.BalanceSnapshot)
		rec, err := store.GetBalance(ctx, "driver-1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, int64(1), rec.Balance)
		assert.Equal(t, int64(1), rec.Version)
	})

	t.Run("version conflicts are retried and succeed", func(t *testing.T) {
		// GIVEN a store that rejects the first two writes
		store := newMemStore()
		store.conflictsLeft = 2
		mgr := seed.NewBalanceManager(store, testLogger())

		// WHEN a grant is applied
		entry, err := mgr.Apply(ctx, seed.ApplyInput{
			UserID: "driver-1",
			Amount: 5,
			Type:   seed.EntryEarned,
			Reason: seed.ReasonBehaviorImproved,
		})

		// THEN the third attempt commits
		require.NoError(t, err)
		assert.Equal(t, int64(5), entry.BalanceSnapshot)
	})

	t.Run("retry exhaustion surfaces a concurrency error", func(t *testing.T) {
		// GIVEN a store that never stops conflicting
		store := newMemStore()
		store.conflictsLeft = 1000
		mgr := seed.NewBalanceManager(store, testLogger(), seed.WithBackoff(time.Millisecond))

		// WHEN a grant is applied
		_, err := mgr.Apply(ctx, seed.ApplyInput{
			UserID: "driver-1",
			Amount: 1,
			Type:   seed.EntryEarned,
		})

		// THEN the caller sees retry exhaustion
		require.Error(t, err)
		assert.True(t, errors.Is(err, seed.ErrConcurrentUpdate))
		var cue *seed.ConcurrentUpdateError
		require.True(t, errors.As(err, &cue))
		assert.Equal(t, "driver-1", cue.UserID)
	})

	t.Run("guard rejects without retrying", func(t *testing.T) {
		// GIVEN a user holding 3 seeds
		store := newMemStore()
		mgr := seed.NewBalanceManager(store, testLogger())
		_, err := mgr.Apply(ctx, seed.ApplyInput{
			UserID: "driver-1", Amount: 3, Type: seed.EntryEarned,
		})
		require.NoError(t, err)

		// WHEN a debit of 5 is guarded against the balance
		_, err = mgr.Apply(ctx, seed.ApplyInput{
			UserID: "driver-1",
			Amount: -5,
			Type:   seed.EntryUsed,
			Guard: func(balance int64) error {
				if balance < 5 {
					return &seed.InsufficientBalanceError{UserID: "driver-1", Available: balance, Requested: 5}
				}
				return nil
			},
		})

		// THEN the debit is refused and the balance is untouched
		require.Error(t, err)
		assert.True(t, errors.Is(err, seed.ErrInsufficientBalance))
		rec, _ := store.GetBalance(ctx, "driver-1")
		assert.Equal(t, int64(3), rec.Balance)
	})
}

func TestBalanceManager_ConcurrentEarns(t *testing.T) {
	// GIVEN many goroutines earning for the same user
	store := newMemStore()
	mgr := seed.NewBalanceManager(store, testLogger(),
		seed.WithMaxAttempts(50), seed.WithBackoff(time.Millisecond))
	ctx := context.Background()

	const workers = 8
	const grantsEach = 5

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < grantsEach; i++ {
				_, err := mgr.Apply(ctx, seed.ApplyInput{
					UserID: "driver-1",
					Amount: 1,
					Type:   seed.EntryEarned,
					Reason: seed.ReasonTotalScore,
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// THEN no update was lost and the ledger sums to the balance
	rec, err := store.GetBalance(ctx, "driver-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(workers*grantsEach), rec.Balance)
	assert.Equal(t, rec.Balance, store.sumFor("driver-1"))
}
