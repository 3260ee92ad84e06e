/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements seed.Store and seed.EntryQueries using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  ledger_entries: Immutable record of every earn and use
  balances:       One versioned row per user (the optimistic lock)

APPEND-ONLY ENFORCEMENT:
  ledger_entries is never updated or deleted. Corrections are new entries.

VERSIONING:
  Every balance write is conditioned on the version the caller read:
  - version 0: the row must not exist; INSERT, with the PK conflict
    mapped to seed.ErrVersionConflict
  - version n: UPDATE ... WHERE version = n, with RowsAffected 0 mapped
    to seed.ErrVersionConflict
  The balance write and the entry append share one transaction, so a
  reader never sees an entry without its balance or vice versa.

INDEXES:
  idx_entries_user_created:   Per-user history and daily cap checks
  idx_entries_reason_created: Cap checks and reason breakdowns
  idx_entries_type_created:   Issuance counters
  idx_entries_drive:          Per-drive sums

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/seeds.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - seed/store.go: Interface definitions
  - seed/balance.go: The retry loop driving ApplyEntry
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/greenride/seed-engine/seed"
)

// Store implements seed.Store and seed.EntryQueries using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A :memory: database exists per connection; a second pooled connection
	// would see an empty schema. Writes are serialized by the mutex anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledger (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		entry_type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT 'UNKNOWN',
		description TEXT NOT NULL DEFAULT '',
		balance_snapshot INTEGER NOT NULL,
		drive_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_user_created
		ON ledger_entries(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_reason_created
		ON ledger_entries(reason, created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_type_created
		ON ledger_entries(entry_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_drive
		ON ledger_entries(drive_id) WHERE drive_id != '';

	-- Balances (one versioned row per user)
	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BALANCE STORE (seed.Store interface)
// =============================================================================

// GetBalance returns the user's balance row, or nil if absent.
func (s *Store) GetBalance(ctx context.Context, userID string) (*seed.BalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT user_id, balance, version, updated_at FROM balances WHERE user_id = ?`

	var rec seed.BalanceRecord
	var updatedAt string
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(&rec.UserID, &rec.Balance, &rec.Version, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// ApplyEntry writes the balance guarded by expectedVersion and appends the
// entry in one transaction.
func (s *Store) ApplyEntry(ctx context.Context, entry seed.LedgerEntry, expectedVersion int64) (seed.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return seed.LedgerEntry{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	if expectedVersion == 0 {
		_, err = sqlTx.ExecContext(ctx,
			`INSERT INTO balances (user_id, balance, version, updated_at) VALUES (?, ?, 1, ?)`,
			entry.UserID, entry.BalanceSnapshot, nowStr,
		)
		if isUniqueConstraintError(err) {
			return seed.LedgerEntry{}, seed.ErrVersionConflict
		}
		if err != nil {
			return seed.LedgerEntry{}, fmt.Errorf("failed to create balance: %w", err)
		}
	} else {
		res, err := sqlTx.ExecContext(ctx,
			`UPDATE balances SET balance = ?, version = version + 1, updated_at = ?
			 WHERE user_id = ? AND version = ?`,
			entry.BalanceSnapshot, nowStr, entry.UserID, expectedVersion,
		)
		if err != nil {
			return seed.LedgerEntry{}, fmt.Errorf("failed to update balance: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return seed.LedgerEntry{}, fmt.Errorf("failed to check balance update: %w", err)
		}
		if affected == 0 {
			return seed.LedgerEntry{}, seed.ErrVersionConflict
		}
	}

	res, err := sqlTx.ExecContext(ctx,
		`INSERT INTO ledger_entries
		 (user_id, amount, entry_type, reason, description, balance_snapshot, drive_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.Amount, string(entry.Type), string(entry.Reason),
		entry.Description, entry.BalanceSnapshot, entry.DriveID, nowStr,
	)
	if err != nil {
		return seed.LedgerEntry{}, fmt.Errorf("failed to append entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return seed.LedgerEntry{}, fmt.Errorf("failed to read entry id: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return seed.LedgerEntry{}, fmt.Errorf("failed to commit entry: %w", err)
	}

	entry.ID = id
	entry.CreatedAt = now
	return entry, nil
}

// =============================================================================
// ENTRY QUERIES (seed.EntryQueries interface)
// =============================================================================

const entryColumns = `id, user_id, amount, entry_type, reason, description, balance_snapshot, drive_id, created_at`

// Entry returns one entry, or nil when the id is unknown.
func (s *Store) Entry(ctx context.Context, id int64) (*seed.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}
	return &entry, nil
}

// EntriesByUser pages one user's history, newest first.
func (s *Store) EntriesByUser(ctx context.Context, userID string, page seed.PageRequest) ([]seed.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE user_id = ?`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// AllEntries pages the full ledger, newest first.
func (s *Store) AllEntries(ctx context.Context, page seed.PageRequest) ([]seed.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SearchEntries pages the ledger restricted by filter, newest first. The
// WHERE clause is composed predicate by predicate; values only ever travel
// as bind arguments.
func (s *Store) SearchEntries(ctx context.Context, filter seed.EntryFilter, page seed.PageRequest) ([]seed.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var preds []string
	var args []any
	if filter.UserID != nil {
		preds = append(preds, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Description != "" {
		preds = append(preds, "description LIKE ?")
		args = append(args, "%"+filter.Description+"%")
	}
	if filter.From != nil {
		preds = append(preds, "created_at >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		preds = append(preds, "created_at < ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339))
	}

	where := ""
	if len(preds) > 0 {
		where = " WHERE " + strings.Join(preds, " AND ")
	}

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	pagedArgs := append(args, page.Size, page.Offset())
	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries`+where+
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		pagedArgs...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// CountEarned counts every EARNED entry.
func (s *Store) CountEarned(ctx context.Context) (int64, error) {
	return s.countWhere(ctx, `entry_type = ?`, string(seed.EntryEarned))
}

// CountEarnedBefore counts EARNED entries created before t.
func (s *Store) CountEarnedBefore(ctx context.Context, t time.Time) (int64, error) {
	return s.countWhere(ctx, `entry_type = ? AND created_at < ?`,
		string(seed.EntryEarned), t.UTC().Format(time.RFC3339))
}

// CountEarnedIn counts EARNED entries within w.
func (s *Store) CountEarnedIn(ctx context.Context, w seed.Window) (int64, error) {
	return s.countWhere(ctx, `entry_type = ? AND created_at >= ? AND created_at < ?`,
		string(seed.EntryEarned), w.From.UTC().Format(time.RFC3339), w.To.UTC().Format(time.RFC3339))
}

// CountDistinctEarnersIn counts distinct users with EARNED entries in w.
func (s *Store) CountDistinctEarnersIn(ctx context.Context, w seed.Window) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM ledger_entries
		 WHERE entry_type = ? AND created_at >= ? AND created_at < ?`,
		string(seed.EntryEarned), w.From.UTC().Format(time.RFC3339), w.To.UTC().Format(time.RFC3339),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count earners: %w", err)
	}
	return n, nil
}

// CountByUserReasonIn counts one user's entries under a category in w.
func (s *Store) CountByUserReasonIn(ctx context.Context, userID string, reason seed.ReasonCategory, w seed.Window) (int64, error) {
	return s.countWhere(ctx, `user_id = ? AND reason = ? AND created_at >= ? AND created_at < ?`,
		userID, string(reason), w.From.UTC().Format(time.RFC3339), w.To.UTC().Format(time.RFC3339))
}

// EarnedByDescriptionIn groups EARNED entries in w by description.
func (s *Store) EarnedByDescriptionIn(ctx context.Context, w seed.Window) ([]seed.DescriptionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT description, COUNT(*) FROM ledger_entries
		 WHERE entry_type = ? AND created_at >= ? AND created_at < ?
		 GROUP BY description`,
		string(seed.EntryEarned), w.From.UTC().Format(time.RFC3339), w.To.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to group entries: %w", err)
	}
	defer rows.Close()

	var out []seed.DescriptionCount
	for rows.Next() {
		var dc seed.DescriptionCount
		if err := rows.Scan(&dc.Description, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// MonthlyEarnedSums sums EARNED amounts per calendar month since the given
// time, oldest first. Quiet months are absent.
func (s *Store) MonthlyEarnedSums(ctx context.Context, since time.Time) ([]seed.MonthSum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', created_at) AS INTEGER),
		        CAST(strftime('%m', created_at) AS INTEGER),
		        SUM(amount)
		 FROM ledger_entries
		 WHERE entry_type = ? AND created_at >= ?
		 GROUP BY 1, 2 ORDER BY 1, 2`,
		string(seed.EntryEarned), since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to sum months: %w", err)
	}
	defer rows.Close()

	var out []seed.MonthSum
	for rows.Next() {
		var year, month int
		var total int64
		if err := rows.Scan(&year, &month, &total); err != nil {
			return nil, fmt.Errorf("failed to scan month: %w", err)
		}
		out = append(out, seed.MonthSum{Year: year, Month: time.Month(month), Total: total})
	}
	return out, rows.Err()
}

// SumByDrive sums all entry amounts for a drive; 0 when none match.
func (s *Store) SumByDrive(ctx context.Context, driveID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM ledger_entries WHERE drive_id = ?`, driveID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum drive: %w", err)
	}
	return total.Int64, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) countWhere(ctx context.Context, where string, args ...any) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]seed.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []seed.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (seed.LedgerEntry, error) {
	var e seed.LedgerEntry
	var entryType, reason, createdAt string
	err := row.Scan(&e.ID, &e.UserID, &e.Amount, &entryType, &reason,
		&e.Description, &e.BalanceSnapshot, &e.DriveID, &createdAt)
	if err != nil {
		return seed.LedgerEntry{}, err
	}
	e.Type = seed.EntryType(entryType)
	e.Reason = seed.ReasonCategory(reason)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
