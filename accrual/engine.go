/*
engine.go - Seed accrual rules

PURPOSE:
  Turns a completed-drive event into seed grants. Three rules run
  independently over each event:
    1. drive-duration:      driving long enough earns a flat seed
    2. composite-score:     a good trip score earns a decile tier of seeds
    3. behavior-improvement: a better 4-letter behavior code earns a bonus

  Each grant is committed on its own; a rule that fails to persist never
  blocks the others, and the caller receives every grant that did commit
  together with a joined error for the ones that did not.

CAPS:
  The composite-score and behavior-improvement rules are capped per user,
  per category, per calendar day. The drive-duration rule is uncapped.

SEE ALSO:
  - profile.go: Behavior code derivation
  - seed/balance.go: The write path each grant goes through
*/
package accrual

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenride/seed-engine/observability"
	"github.com/greenride/seed-engine/seed"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the tunable rule constants.
type Config struct {
	// DailyCap is the maximum number of grants per user, per capped
	// category, per calendar day.
	DailyCap int64 `toml:"daily_cap"`

	// FavorableThreshold is the minimum dimension score that earns the
	// favorable letter of a behavior code.
	FavorableThreshold int `toml:"favorable_threshold"`

	// MinDrivingMinutes is the shortest drive that earns the duration seed.
	MinDrivingMinutes int `toml:"min_driving_minutes"`

	// DriveDurationSeed is the flat grant of the drive-duration rule.
	DriveDurationSeed int64 `toml:"drive_duration_seed"`

	// MinScore is the lowest composite score that earns any seeds.
	MinScore int `toml:"min_score"`

	// ImprovementSeed is the grant of the behavior-improvement rule.
	ImprovementSeed int64 `toml:"improvement_seed"`
}

// DefaultConfig returns the production rule constants.
func DefaultConfig() Config {
	return Config{
		DailyCap:           2,
		FavorableThreshold: 51,
		MinDrivingMinutes:  10,
		DriveDurationSeed:  1,
		MinScore:           50,
		ImprovementSeed:    5,
	}
}

// Event describes one completed drive. Optional fields are pointers;
// a rule whose inputs are absent simply does not fire.
type Event struct {
	UserID         string           `json:"userId"`
	DriveID        string           `json:"driveId,omitempty"`
	DrivingTime    *int             `json:"drivingTime,omitempty"`    // minutes
	CompositeScore *int             `json:"compositeScore,omitempty"` // 0..100
	LastProfile    *BehaviorProfile `json:"lastProfile,omitempty"`
	CurrentProfile *BehaviorProfile `json:"currentProfile,omitempty"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine evaluates accrual rules and grants seeds through the ledger.
type Engine struct {
	balance *seed.BalanceManager
	queries seed.EntryQueries
	cfg     Config
	log     zerolog.Logger
}

// NewEngine wires the rule engine.
func NewEngine(balance *seed.BalanceManager, queries seed.EntryQueries, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		balance: balance,
		queries: queries,
		cfg:     cfg,
		log:     log.With().Str("component", "accrual").Logger(),
	}
}

// CalculateAndEarn runs every rule against the event and returns the
// entries that committed. Rules fail independently; persistence errors are
// joined and returned alongside the successful grants.
func (e *Engine) CalculateAndEarn(ctx context.Context, ev Event) ([]seed.LedgerEntry, error) {
	if ev.UserID == "" {
		return nil, &seed.ValidationError{Field: "userId", Message: "must not be empty"}
	}

	rules := []struct {
		name string
		run  func(context.Context, Event) (*seed.LedgerEntry, error)
	}{
		{"drive_duration", e.driveDuration},
		{"composite_score", e.compositeScore},
		{"behavior_improvement", e.behaviorImprovement},
	}

	var granted []seed.LedgerEntry
	var errs []error
	for _, rule := range rules {
		entry, err := rule.run(ctx, ev)
		if err != nil {
			observability.AccrualFailures.WithLabelValues(rule.name).Inc()
			e.log.Error().Err(err).
				Str("rule", rule.name).
				Str("user_id", ev.UserID).
				Msg("accrual rule failed")
			errs = append(errs, fmt.Errorf("%s: %w", rule.name, err))
			continue
		}
		if entry != nil {
			observability.SeedsGranted.WithLabelValues(string(entry.Reason)).Add(float64(entry.Amount))
			e.log.Info().
				Str("rule", rule.name).
				Str("user_id", ev.UserID).
				Int64("amount", entry.Amount).
				Msg("seeds granted")
			granted = append(granted, *entry)
		}
	}
	return granted, errors.Join(errs...)
}

// =============================================================================
// RULES
// =============================================================================

// driveDuration grants a flat seed for drives of at least MinDrivingMinutes.
func (e *Engine) driveDuration(ctx context.Context, ev Event) (*seed.LedgerEntry, error) {
	if ev.DrivingTime == nil || *ev.DrivingTime < e.cfg.MinDrivingMinutes {
		return nil, nil
	}
	return e.grant(ctx, ev, e.cfg.DriveDurationSeed, seed.ReasonEventNotOccurred, "drive duration reward")
}

// compositeScore grants the decile tier of the trip score, capped daily.
func (e *Engine) compositeScore(ctx context.Context, ev Event) (*seed.LedgerEntry, error) {
	if ev.CompositeScore == nil {
		return nil, nil
	}
	amount := scoreTier(*ev.CompositeScore, e.cfg.MinScore)
	if amount == 0 {
		return nil, nil
	}
	capped, err := e.cappedToday(ctx, ev.UserID, seed.ReasonTotalScore)
	if err != nil {
		return nil, err
	}
	if capped {
		return nil, nil
	}
	desc := fmt.Sprintf("composite score reward (score %d)", *ev.CompositeScore)
	return e.grant(ctx, ev, amount, seed.ReasonTotalScore, desc)
}

// behaviorImprovement grants a bonus when the 4-letter behavior code got
// strictly better since the last drive, capped daily. Missing profiles
// suppress the rule entirely.
func (e *Engine) behaviorImprovement(ctx context.Context, ev Event) (*seed.LedgerEntry, error) {
	if ev.LastProfile == nil || ev.CurrentProfile == nil {
		return nil, nil
	}
	last := ev.LastProfile.Code(e.cfg.FavorableThreshold)
	current := ev.CurrentProfile.Code(e.cfg.FavorableThreshold)
	if !improved(last, current) {
		return nil, nil
	}
	capped, err := e.cappedToday(ctx, ev.UserID, seed.ReasonBehaviorImproved)
	if err != nil {
		return nil, err
	}
	if capped {
		return nil, nil
	}
	desc := fmt.Sprintf("behavior improved (%s to %s)", last, current)
	return e.grant(ctx, ev, e.cfg.ImprovementSeed, seed.ReasonBehaviorImproved, desc)
}

// =============================================================================
// HELPERS
// =============================================================================

// scoreTier maps a composite score to its seed amount. Scores below
// minScore earn nothing; above it each full decile is worth one more seed.
func scoreTier(score, minScore int) int64 {
	if score < minScore {
		return 0
	}
	switch {
	case score >= 90:
		return 5
	case score >= 80:
		return 4
	case score >= 70:
		return 3
	case score >= 60:
		return 2
	default:
		return 1
	}
}

func (e *Engine) cappedToday(ctx context.Context, userID string, reason seed.ReasonCategory) (bool, error) {
	count, err := e.queries.CountByUserReasonIn(ctx, userID, reason, seed.Day(time.Now()))
	if err != nil {
		return false, err
	}
	return count >= e.cfg.DailyCap, nil
}

func (e *Engine) grant(ctx context.Context, ev Event, amount int64, reason seed.ReasonCategory, description string) (*seed.LedgerEntry, error) {
	entry, err := e.balance.Apply(ctx, seed.ApplyInput{
		UserID:      ev.UserID,
		Amount:      amount,
		Type:        seed.EntryEarned,
		Reason:      reason,
		Description: description,
		DriveID:     ev.DriveID,
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
