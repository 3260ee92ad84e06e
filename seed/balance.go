/*
balance.go - Optimistic balance updates

PURPOSE:
  BalanceManager is the single write path of the ledger. Every earn and
  every use flows through Apply, which reads the current balance, computes
  the new one, and commits entry + balance in one versioned write. Lost
  updates are impossible: a concurrent writer bumps the version and the
  loser retries from a fresh read.

INVARIANT:
  After every committed Apply, balance == sum of the user's entry amounts,
  and the appended entry's BalanceSnapshot equals that balance.

SEE ALSO:
  - store.go: ApplyEntry contract
  - service.go: Validation wrapped around Apply
*/
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenride/seed-engine/observability"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 10 * time.Millisecond
)

// BalanceManager serializes balance mutations through optimistic retries.
type BalanceManager struct {
	store       Store
	log         zerolog.Logger
	maxAttempts int
	backoff     time.Duration
}

// Option tunes a BalanceManager.
type Option func(*BalanceManager)

// WithMaxAttempts overrides how many times Apply retries on conflict.
func WithMaxAttempts(n int) Option {
	return func(m *BalanceManager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithBackoff overrides the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(m *BalanceManager) {
		if d >= 0 {
			m.backoff = d
		}
	}
}

// NewBalanceManager returns a manager with default retry settings.
func NewBalanceManager(store Store, log zerolog.Logger, opts ...Option) *BalanceManager {
	m := &BalanceManager{
		store:       store,
		log:         log.With().Str("component", "balance").Logger(),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ApplyInput describes one balance mutation.
type ApplyInput struct {
	UserID      string
	Amount      int64 // positive for EARNED, negative for USED
	Type        EntryType
	Reason      ReasonCategory
	Description string
	DriveID     string

	// Guard, if set, is called with the freshly read balance before the
	// write. A non-nil return aborts the mutation without retrying. It runs
	// inside the retry loop so the decision is always based on the balance
	// that the write is conditioned on.
	Guard func(balance int64) error
}

// =============================================================================
// APPLY
// =============================================================================

// Apply commits one ledger entry and its balance update. On version
// conflicts it re-reads and retries with backoff; after maxAttempts it
// returns a ConcurrentUpdateError.
func (m *BalanceManager) Apply(ctx context.Context, in ApplyInput) (LedgerEntry, error) {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return LedgerEntry{}, err
		}

		rec, err := m.store.GetBalance(ctx, in.UserID)
		if err != nil {
			return LedgerEntry{}, err
		}

		var current, version int64
		if rec != nil {
			current, version = rec.Balance, rec.Version
		}

		if in.Guard != nil {
			if err := in.Guard(current); err != nil {
				return LedgerEntry{}, err
			}
		}

		entry := LedgerEntry{
			UserID:          in.UserID,
			Amount:          in.Amount,
			Type:            in.Type,
			Reason:          in.Reason,
			Description:     in.Description,
			BalanceSnapshot: current + in.Amount,
			DriveID:         in.DriveID,
		}

		stored, err := m.store.ApplyEntry(ctx, entry, version)
		if err == nil {
			m.log.Debug().
				Str("user_id", in.UserID).
				Int64("amount", in.Amount).
				Int64("balance", stored.BalanceSnapshot).
				Int("attempt", attempt).
				Msg("ledger entry applied")
			return stored, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return LedgerEntry{}, err
		}

		observability.BalanceConflicts.Inc()
		m.log.Debug().
			Str("user_id", in.UserID).
			Int("attempt", attempt).
			Msg("version conflict, retrying")

		if attempt < m.maxAttempts {
			select {
			case <-time.After(m.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return LedgerEntry{}, ctx.Err()
			}
		}
	}

	m.log.Warn().
		Str("user_id", in.UserID).
		Int("attempts", m.maxAttempts).
		Msg("balance update gave up after repeated conflicts")
	return LedgerEntry{}, &ConcurrentUpdateError{UserID: in.UserID, Attempts: m.maxAttempts}
}
