/*
store.go - Persistence interfaces for the seed ledger

PURPOSE:
  Defines the boundary between domain logic and the database. The write
  surface is deliberately tiny: one atomic operation that persists a ledger
  entry together with its balance update. Everything else is read-only.

WRITE CONTRACT:
  ApplyEntry is the ONLY mutation. It must, in a single transaction:
    1. Write the BalanceRecord guarded by expectedVersion
       (expectedVersion 0 = the row must not exist yet and is created)
    2. Append the LedgerEntry with its balance snapshot
  If another writer changed the row since it was read, ApplyEntry fails
  with ErrVersionConflict and nothing is visible to readers.

READ CONTRACT:
  Entry queries never block writers and never observe an entry whose
  balance update has not committed.

IMPLEMENTATIONS:
  - store/sqlite: production store

SEE ALSO:
  - balance.go: The retry loop driving ApplyEntry
  - stats: The read-side consumer of EntryQueries
*/
package seed

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Mutation surface
// =============================================================================

// Store handles persistence of balances and ledger entries.
type Store interface {
	// GetBalance returns the user's balance record, or nil if the user has
	// never earned.
	GetBalance(ctx context.Context, userID string) (*BalanceRecord, error)

	// ApplyEntry atomically writes the balance implied by entry's snapshot
	// and appends the entry. expectedVersion is the version observed when
	// the balance was read (0 for a user with no record yet). Returns the
	// stored entry with its assigned ID and creation time, or
	// ErrVersionConflict if the row moved.
	ApplyEntry(ctx context.Context, entry LedgerEntry, expectedVersion int64) (LedgerEntry, error)
}

// =============================================================================
// ENTRY QUERIES - Read surface
// =============================================================================

// EntryFilter composes the optional predicates of an admin history search.
// Nil/empty fields are simply not part of the query.
type EntryFilter struct {
	UserID      *string    // exact match
	Description string     // substring match, empty = unfiltered
	From        *time.Time // createdAt >= From
	To          *time.Time // createdAt < To
}

// DescriptionCount is one group of the reason breakdown.
type DescriptionCount struct {
	Description string
	Count       int64
}

// MonthSum is one month of the trend report.
type MonthSum struct {
	Year  int
	Month time.Month
	Total int64 // sum of EARNED amounts
}

// EntryQueries is the read-only surface over the ledger. All listings are
// ordered newest first unless stated otherwise.
type EntryQueries interface {
	// Entry returns a single entry, or nil if the id is unknown.
	Entry(ctx context.Context, id int64) (*LedgerEntry, error)

	// EntriesByUser pages through one user's history. Returns the page and
	// the total number of the user's entries.
	EntriesByUser(ctx context.Context, userID string, page PageRequest) ([]LedgerEntry, int64, error)

	// AllEntries pages through the full ledger.
	AllEntries(ctx context.Context, page PageRequest) ([]LedgerEntry, int64, error)

	// SearchEntries pages through the ledger restricted by filter.
	SearchEntries(ctx context.Context, filter EntryFilter, page PageRequest) ([]LedgerEntry, int64, error)

	// CountEarned counts all EARNED entries ever issued.
	CountEarned(ctx context.Context) (int64, error)

	// CountEarnedBefore counts EARNED entries created before t.
	CountEarnedBefore(ctx context.Context, t time.Time) (int64, error)

	// CountEarnedIn counts EARNED entries created within w.
	CountEarnedIn(ctx context.Context, w Window) (int64, error)

	// CountDistinctEarnersIn counts distinct users with EARNED entries in w.
	CountDistinctEarnersIn(ctx context.Context, w Window) (int64, error)

	// CountByUserReasonIn counts one user's entries under a category in w.
	// Used for daily grant caps.
	CountByUserReasonIn(ctx context.Context, userID string, reason ReasonCategory, w Window) (int64, error)

	// EarnedByDescriptionIn groups EARNED entries in w by description.
	EarnedByDescriptionIn(ctx context.Context, w Window) ([]DescriptionCount, error)

	// MonthlyEarnedSums returns per-month EARNED amount sums for entries
	// created at or after since, oldest first. Months without activity are
	// absent; callers zero-fill.
	MonthlyEarnedSums(ctx context.Context, since time.Time) ([]MonthSum, error)

	// SumByDrive sums all entry amounts correlated to a drive; 0 if none.
	SumByDrive(ctx context.Context, driveID string) (int64, error)
}

// =============================================================================
// PAGINATION
// =============================================================================

// PageRequest is an offset page request. Page is zero-based.
type PageRequest struct {
	Page int
	Size int
}

const defaultPageSize = 10

// Normalize clamps the request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > 100 {
		p.Size = 100
	}
	return p
}

func (p PageRequest) Offset() int { return p.Page * p.Size }

// PageInfo is the metadata returned with every paginated listing.
type PageInfo struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// NewPageInfo derives page metadata from a normalized request and a total.
func NewPageInfo(p PageRequest, total int64) PageInfo {
	pages := int((total + int64(p.Size) - 1) / int64(p.Size))
	return PageInfo{Page: p.Page, Size: p.Size, TotalElements: total, TotalPages: pages}
}
