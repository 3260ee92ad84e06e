/*
stats.go - Seed issuance statistics

PURPOSE:
  Read-only reporting over the ledger for the admin console: issuance
  counters with change rates, the 12-month issuance trend, per-reason
  breakdowns, filtered history search, and per-drive sums. Nothing here
  ever writes.

CHANGE RATES:
  Every counter ships with a percentage change against its previous
  period. The rate guards its edges: both periods zero reads 0.0, growth
  from zero reads 100.0, everything else is (cur-prev)/prev*100 rounded
  to one decimal.

SEE ALSO:
  - seed/store.go: The read surface this package aggregates
  - directory: Email resolution for history filters
*/
package stats

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/greenride/seed-engine/directory"
	"github.com/greenride/seed-engine/seed"
)

// Service computes issuance statistics from the ledger.
type Service struct {
	queries  seed.EntryQueries
	resolver directory.Resolver
	log      zerolog.Logger
	now      func() time.Time
}

// Option tunes a Service.
type Option func(*Service)

// WithNow overrides the clock used to anchor the reporting windows.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the statistics service. resolver may be nil when email
// filtering is not deployed.
func NewService(queries seed.EntryQueries, resolver directory.Resolver, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		queries:  queries,
		resolver: resolver,
		log:      log.With().Str("component", "stats").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// CountStat is a counter paired with its change rate against the previous
// period.
type CountStat struct {
	Count      int64   `json:"count"`
	ChangeRate float64 `json:"changeRate"`
}

// AverageStat is a one-decimal average paired with its change rate.
type AverageStat struct {
	Average    float64 `json:"average"`
	ChangeRate float64 `json:"changeRate"`
}

// TrendPoint is one month of the issuance trend.
type TrendPoint struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Amount int64  `json:"amount"`
	Label  string `json:"label"` // YYYY-MM
}

// ReasonStat is one category slice of the reason breakdown.
type ReasonStat struct {
	Reason seed.ReasonCategory `json:"reason"`
	Label  string              `json:"label"`
	Count  int64               `json:"count"`
	Ratio  float64             `json:"ratio"` // percent of the scope total, one decimal
}

// HistoryFilter narrows an admin history search. Zero fields do not
// filter.
type HistoryFilter struct {
	Email       string
	Description string
	Start       *time.Time // inclusive
	End         *time.Time // inclusive through end of day
}

// DriveSum is the seed total correlated to one drive.
type DriveSum struct {
	DriveID string `json:"driveId"`
	Total   int64  `json:"total"`
}

// =============================================================================
// COUNTERS
// =============================================================================

// TotalIssued returns the cumulative EARNED count with its month-over-month
// change rate. The rate compares the totals as they stood one month ago and
// two months ago.
func (s *Service) TotalIssued(ctx context.Context) (CountStat, error) {
	now := s.now()
	total, err := s.queries.CountEarned(ctx)
	if err != nil {
		return CountStat{}, err
	}
	asOfLastMonth, err := s.queries.CountEarnedBefore(ctx, seed.Month(now).From)
	if err != nil {
		return CountStat{}, err
	}
	asOfMonthBefore, err := s.queries.CountEarnedBefore(ctx, seed.PreviousMonth(now).From)
	if err != nil {
		return CountStat{}, err
	}
	return CountStat{Count: total, ChangeRate: rate(asOfLastMonth, asOfMonthBefore)}, nil
}

// MonthlyIssued returns this calendar month's EARNED count with its
// month-over-month change rate.
func (s *Service) MonthlyIssued(ctx context.Context) (CountStat, error) {
	now := s.now()
	current, err := s.queries.CountEarnedIn(ctx, seed.Month(now))
	if err != nil {
		return CountStat{}, err
	}
	previous, err := s.queries.CountEarnedIn(ctx, seed.PreviousMonth(now))
	if err != nil {
		return CountStat{}, err
	}
	return CountStat{Count: current, ChangeRate: rate(current, previous)}, nil
}

// DailyIssued returns today's EARNED count with its day-over-day change
// rate.
func (s *Service) DailyIssued(ctx context.Context) (CountStat, error) {
	now := s.now()
	current, err := s.queries.CountEarnedIn(ctx, seed.Day(now))
	if err != nil {
		return CountStat{}, err
	}
	previous, err := s.queries.CountEarnedIn(ctx, seed.PreviousDay(now))
	if err != nil {
		return CountStat{}, err
	}
	return CountStat{Count: current, ChangeRate: rate(current, previous)}, nil
}

// PerUserAverage returns today's EARNED count per distinct earner, one
// decimal, with its day-over-day change rate.
func (s *Service) PerUserAverage(ctx context.Context) (AverageStat, error) {
	now := s.now()
	today, err := s.averageIn(ctx, seed.Day(now))
	if err != nil {
		return AverageStat{}, err
	}
	yesterday, err := s.averageIn(ctx, seed.PreviousDay(now))
	if err != nil {
		return AverageStat{}, err
	}
	return AverageStat{Average: today, ChangeRate: rateFloat(today, yesterday)}, nil
}

func (s *Service) averageIn(ctx context.Context, w seed.Window) (float64, error) {
	count, err := s.queries.CountEarnedIn(ctx, w)
	if err != nil {
		return 0, err
	}
	users, err := s.queries.CountDistinctEarnersIn(ctx, w)
	if err != nil {
		return 0, err
	}
	if users == 0 {
		return 0, nil
	}
	avg := decimal.NewFromInt(count).Div(decimal.NewFromInt(users)).Round(1)
	f, _ := avg.Float64()
	return f, nil
}

// =============================================================================
// TREND AND BREAKDOWN
// =============================================================================

// MonthlyTrend returns exactly twelve trailing months of EARNED amount
// sums, oldest first, with zero rows for quiet months.
func (s *Service) MonthlyTrend(ctx context.Context) ([]TrendPoint, error) {
	now := s.now()
	months := seed.TrailingMonths(now, 12)
	since := seed.MonthOf(months[0].Year, months[0].Month).From

	sums, err := s.queries.MonthlyEarnedSums(ctx, since)
	if err != nil {
		return nil, err
	}
	byMonth := make(map[seed.YearMonth]int64, len(sums))
	for _, m := range sums {
		byMonth[seed.YearMonth{Year: m.Year, Month: m.Month}] = m.Total
	}

	points := make([]TrendPoint, 0, len(months))
	for _, ym := range months {
		points = append(points, TrendPoint{
			Year:   ym.Year,
			Month:  int(ym.Month),
			Amount: byMonth[ym],
			Label:  ym.String(),
		})
	}
	return points, nil
}

// BreakdownScope selects the reporting window of a reason breakdown.
type BreakdownScope struct {
	// Month, when non-empty, is a YYYY-MM month; otherwise the current
	// calendar year is reported.
	Month string
}

// ReasonBreakdown groups EARNED entries in the scope by description,
// classifies each group into a reason category, and reports per-category
// counts with one-decimal ratios of the scope total.
func (s *Service) ReasonBreakdown(ctx context.Context, scope BreakdownScope) ([]ReasonStat, error) {
	w, err := s.scopeWindow(scope)
	if err != nil {
		return nil, err
	}

	groups, err := s.queries.EarnedByDescriptionIn(ctx, w)
	if err != nil {
		return nil, err
	}

	counts := map[seed.ReasonCategory]int64{}
	var total int64
	for _, g := range groups {
		counts[seed.Classify(g.Description)] += g.Count
		total += g.Count
	}

	out := make([]ReasonStat, 0, len(seed.Categories()))
	for _, cat := range seed.Categories() {
		count := counts[cat]
		var ratio float64
		if total > 0 {
			r := decimal.NewFromInt(count).
				Div(decimal.NewFromInt(total)).
				Mul(decimal.NewFromInt(100)).
				Round(1)
			ratio, _ = r.Float64()
		}
		out = append(out, ReasonStat{Reason: cat, Label: cat.Label(), Count: count, Ratio: ratio})
	}
	return out, nil
}

func (s *Service) scopeWindow(scope BreakdownScope) (seed.Window, error) {
	if scope.Month == "" {
		return seed.Year(s.now()), nil
	}
	t, err := time.Parse("2006-01", scope.Month)
	if err != nil {
		return seed.Window{}, &seed.ValidationError{Field: "month", Message: "must be YYYY-MM"}
	}
	return seed.Month(t), nil
}

// =============================================================================
// HISTORY
// =============================================================================

// History pages through the ledger restricted by filter, newest first.
// An email that cannot be resolved degrades to an empty result rather
// than an error.
func (s *Service) History(ctx context.Context, filter HistoryFilter, page seed.PageRequest) ([]seed.LedgerEntry, seed.PageInfo, error) {
	page = page.Normalize()

	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return nil, seed.PageInfo{}, &seed.ValidationError{Field: "period", Message: "start must not be after end"}
	}

	ef := seed.EntryFilter{Description: strings.TrimSpace(filter.Description)}
	if filter.Start != nil {
		from := seed.Day(*filter.Start).From
		ef.From = &from
	}
	if filter.End != nil {
		to := seed.Day(*filter.End).To // inclusive through end of day
		ef.To = &to
	}

	if email := strings.TrimSpace(filter.Email); email != "" {
		if s.resolver == nil {
			return []seed.LedgerEntry{}, seed.NewPageInfo(page, 0), nil
		}
		userID, err := s.resolver.ResolveEmail(ctx, email)
		if err != nil {
			if !errors.Is(err, directory.ErrUserNotFound) {
				s.log.Warn().Err(err).Str("email", email).Msg("email resolution failed")
			}
			return []seed.LedgerEntry{}, seed.NewPageInfo(page, 0), nil
		}
		ef.UserID = &userID
	}

	entries, total, err := s.queries.SearchEntries(ctx, ef, page)
	if err != nil {
		return nil, seed.PageInfo{}, err
	}
	return entries, seed.NewPageInfo(page, total), nil
}

// AllHistory pages through the complete ledger, newest first.
func (s *Service) AllHistory(ctx context.Context, page seed.PageRequest) ([]seed.LedgerEntry, seed.PageInfo, error) {
	page = page.Normalize()
	entries, total, err := s.queries.AllEntries(ctx, page)
	if err != nil {
		return nil, seed.PageInfo{}, err
	}
	return entries, seed.NewPageInfo(page, total), nil
}

// RewardsByDrive sums ledger amounts per drive. Unmatched drives report 0.
func (s *Service) RewardsByDrive(ctx context.Context, driveIDs []string) ([]DriveSum, error) {
	out := make([]DriveSum, 0, len(driveIDs))
	for _, id := range driveIDs {
		total, err := s.queries.SumByDrive(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, DriveSum{DriveID: id, Total: total})
	}
	return out, nil
}

// =============================================================================
// RATE
// =============================================================================

// rate computes the percentage change from previous to current, one
// decimal. Both zero reads 0.0; growth from zero reads 100.0.
func rate(current, previous int64) float64 {
	return rateFloat(float64(current), float64(previous))
}

func rateFloat(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0.0
		}
		return 100.0
	}
	cur := decimal.NewFromFloat(current)
	prev := decimal.NewFromFloat(previous)
	r := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(1)
	f, _ := r.Float64()
	return f
}
