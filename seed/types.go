/*
Package seed provides the core reward ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking the
  "seed" point currency: an append-only ledger of accruals and debits, plus
  a per-user running balance kept consistent with that ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - LedgerEntry: An immutable record of one balance change
  - BalanceRecord: The cached running total, guarded by a version token
  - EntryType: Whether the entry earned or spent seeds
  - ReasonCategory: Closed classification of why seeds were granted

DESIGN PRINCIPLES:
  1. Immutability: Entries are never updated or deleted
  2. Single source of truth: the ledger; BalanceRecord is a derived cache
  3. Auditability: every entry carries the balance observed right after it
  4. Optimistic concurrency: BalanceRecord.Version detects concurrent writers

SEE ALSO:
  - balance.go: The balance manager (read-modify-write with retry)
  - store.go: Persistence interfaces
  - classify.go: Free-text description to ReasonCategory mapping
*/
package seed

import (
	"strconv"
	"time"
)

// =============================================================================
// ENTRY TYPE - Accrual vs debit
// =============================================================================

type EntryType string

const (
	// EntryEarned marks a positive accrual (seeds granted).
	EntryEarned EntryType = "EARNED"

	// EntryUsed marks a debit (seeds spent).
	EntryUsed EntryType = "USED"
)

// =============================================================================
// REASON CATEGORY - Closed classification for reporting
// =============================================================================

// ReasonCategory classifies why seeds were granted. The set is closed so
// reports can group reliably; free-text descriptions map onto it via
// Classify.
type ReasonCategory string

const (
	// ReasonTotalScore rewards a high composite driving score.
	ReasonTotalScore ReasonCategory = "TOTAL_SCORE"

	// ReasonEventNotOccurred rewards an uneventful drive of sufficient
	// duration (no incidents detected while driving).
	ReasonEventNotOccurred ReasonCategory = "EVENT_NOT_OCCURRED"

	// ReasonBehaviorImproved rewards a favorable shift in the driver's
	// behavior profile between sessions.
	ReasonBehaviorImproved ReasonCategory = "BEHAVIOR_IMPROVED"

	// ReasonUnknown is the fallback for descriptions that match no category.
	ReasonUnknown ReasonCategory = "UNKNOWN"
)

// Label returns the human-readable description stem written into ledger
// entries granted under this category. Classify recognizes these stems.
func (r ReasonCategory) Label() string {
	switch r {
	case ReasonTotalScore:
		return "composite score"
	case ReasonEventNotOccurred:
		return "drive duration"
	case ReasonBehaviorImproved:
		return "behavior improved"
	default:
		return "unknown"
	}
}

// Categories lists the closed set, UNKNOWN last.
func Categories() []ReasonCategory {
	return []ReasonCategory{
		ReasonTotalScore,
		ReasonEventNotOccurred,
		ReasonBehaviorImproved,
		ReasonUnknown,
	}
}

// =============================================================================
// LEDGER ENTRY - Immutable once created
// =============================================================================

// LedgerEntry records a single balance change. Entries are append-only:
// corrections are new entries, never edits.
//
// ID is assigned monotonically by the store and doubles as a tie-breaker for
// entries created in the same instant. BalanceSnapshot is the user's balance
// immediately after this entry was applied; it is a point-in-time audit
// value and is never recomputed.
type LedgerEntry struct {
	ID              int64
	UserID          string
	Amount          int64 // positive = accrual, negative = debit
	Type            EntryType
	Reason          ReasonCategory
	Description     string
	BalanceSnapshot int64
	DriveID         string // optional correlation to the driving session
	CreatedAt       time.Time
}

// Category returns the entry's reason category, classifying from the
// description for rows persisted before the closed enum existed.
func (e LedgerEntry) Category() ReasonCategory {
	if e.Reason != "" && e.Reason != ReasonUnknown {
		return e.Reason
	}
	return Classify(e.Description)
}

// DisplayID is the public identifier used by admin listings.
func (e LedgerEntry) DisplayID() string {
	return "SEED_" + strconv.FormatInt(e.ID, 10)
}

// =============================================================================
// BALANCE RECORD - Mutable, one row per user
// =============================================================================

// BalanceRecord is the cached running total for a user. It must equal the
// sum of the user's ledger entry amounts at every committed point in time;
// the Version token enforces this under concurrent writers.
//
// A record is created lazily on the user's first accrual.
type BalanceRecord struct {
	UserID    string
	Balance   int64
	Version   int64 // incremented on every successful mutation
	UpdatedAt time.Time
}
