/*
service.go - User-facing ledger operations

PURPOSE:
  Service exposes the member surface of the ledger: spending seeds,
  reading the current balance, and browsing one's own history. Accruals
  are granted elsewhere (see the accrual package); this service only ever
  debits.

SEE ALSO:
  - balance.go: The write path Use delegates to
  - accrual: The earning side
*/
package seed

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/greenride/seed-engine/observability"
)

// Service implements the member-facing ledger operations.
type Service struct {
	store   Store
	queries EntryQueries
	balance *BalanceManager
	log     zerolog.Logger
}

// NewService wires the member service.
func NewService(store Store, queries EntryQueries, balance *BalanceManager, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		queries: queries,
		balance: balance,
		log:     log.With().Str("component", "seed").Logger(),
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Use debits amount seeds from the user's balance. The debit is refused
// with an InsufficientBalanceError when the balance would go negative.
func (s *Service) Use(ctx context.Context, userID string, amount int64, description string) (LedgerEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return LedgerEntry{}, &ValidationError{Field: "userId", Message: "must not be empty"}
	}
	if amount <= 0 {
		return LedgerEntry{}, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if strings.TrimSpace(description) == "" {
		description = "seed used"
	}

	entry, err := s.balance.Apply(ctx, ApplyInput{
		UserID:      userID,
		Amount:      -amount,
		Type:        EntryUsed,
		Reason:      ReasonUnknown,
		Description: description,
		Guard: func(balance int64) error {
			if balance < amount {
				return &InsufficientBalanceError{UserID: userID, Available: balance, Requested: amount}
			}
			return nil
		},
	})
	if err != nil {
		return LedgerEntry{}, err
	}

	observability.SeedsUsed.Add(float64(amount))
	s.log.Info().
		Str("user_id", userID).
		Int64("amount", amount).
		Int64("balance", entry.BalanceSnapshot).
		Msg("seeds used")
	return entry, nil
}

// Balance returns the user's current balance; a user with no ledger
// activity has balance 0.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, &ValidationError{Field: "userId", Message: "must not be empty"}
	}
	rec, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.Balance, nil
}

// History pages through the user's own entries, newest first.
func (s *Service) History(ctx context.Context, userID string, page PageRequest) ([]LedgerEntry, PageInfo, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, PageInfo{}, &ValidationError{Field: "userId", Message: "must not be empty"}
	}
	page = page.Normalize()
	entries, total, err := s.queries.EntriesByUser(ctx, userID, page)
	if err != nil {
		return nil, PageInfo{}, err
	}
	return entries, NewPageInfo(page, total), nil
}

// Entry returns a single ledger entry by id.
func (s *Service) Entry(ctx context.Context, id int64) (LedgerEntry, error) {
	if id <= 0 {
		return LedgerEntry{}, &ValidationError{Field: "id", Message: "must be positive"}
	}
	e, err := s.queries.Entry(ctx, id)
	if err != nil {
		return LedgerEntry{}, err
	}
	if e == nil {
		return LedgerEntry{}, &NotFoundError{Kind: "ledger entry", ID: strconv.FormatInt(id, 10)}
	}
	return *e, nil
}
