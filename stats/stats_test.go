package stats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenride/seed-engine/directory"
	"github.com/greenride/seed-engine/seed"
	"github.com/greenride/seed-engine/stats"
)

// fakeQueries serves canned ledger data keyed by the windows the service
// is expected to ask for.
type fakeQueries struct {
	seed.EntryQueries

	earnedTotal   int64
	earnedBefore  map[time.Time]int64
	earnedIn      map[seed.Window]int64
	earnersIn     map[seed.Window]int64
	groups        []seed.DescriptionCount
	groupedWindow seed.Window
	monthSums     []seed.MonthSum
	driveSums     map[string]int64

	searched      []seed.EntryFilter
	searchEntries []seed.LedgerEntry
	searchTotal   int64
}

func (f *fakeQueries) CountEarned(context.Context) (int64, error) { return f.earnedTotal, nil }

func (f *fakeQueries) CountEarnedBefore(_ context.Context, t time.Time) (int64, error) {
	return f.earnedBefore[t], nil
}

func (f *fakeQueries) CountEarnedIn(_ context.Context, w seed.Window) (int64, error) {
	return f.earnedIn[w], nil
}

func (f *fakeQueries) CountDistinctEarnersIn(_ context.Context, w seed.Window) (int64, error) {
	return f.earnersIn[w], nil
}

func (f *fakeQueries) EarnedByDescriptionIn(_ context.Context, w seed.Window) ([]seed.DescriptionCount, error) {
	f.groupedWindow = w
	return f.groups, nil
}

func (f *fakeQueries) MonthlyEarnedSums(context.Context, time.Time) ([]seed.MonthSum, error) {
	return f.monthSums, nil
}

func (f *fakeQueries) SumByDrive(_ context.Context, driveID string) (int64, error) {
	return f.driveSums[driveID], nil
}

func (f *fakeQueries) SearchEntries(_ context.Context, filter seed.EntryFilter, _ seed.PageRequest) ([]seed.LedgerEntry, int64, error) {
	f.searched = append(f.searched, filter)
	return f.searchEntries, f.searchTotal, nil
}

func newTestService(q *fakeQueries, resolver directory.Resolver, now time.Time) *stats.Service {
	return stats.NewService(q, resolver, zerolog.Nop(), stats.WithNow(func() time.Time { return now }))
}

var testNow = time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)

// =============================================================================
// RATE TESTS
// =============================================================================

func TestChangeRate(t *testing.T) {
	// Exercised through MonthlyIssued so each case reads the current and
	// previous month counters.
	cases := []struct {
		name              string
		current, previous int64
		want              float64
	}{
		{"both zero", 0, 0, 0.0},
		{"growth from zero", 7, 0, 100.0},
		{"drop to zero", 0, 4, -100.0},
		{"half again", 150, 100, 50.0},
		{"decline", 75, 100, -25.0},
		{"one decimal rounding", 1, 3, -66.7},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q := &fakeQueries{earnedIn: map[seed.Window]int64{
				seed.Month(testNow):         c.current,
				seed.PreviousMonth(testNow): c.previous,
			}}
			svc := newTestService(q, nil, testNow)

			stat, err := svc.MonthlyIssued(context.Background())
			require.NoError(t, err)
			assert.Equal(t, c.current, stat.Count)
			assert.Equal(t, c.want, stat.ChangeRate)
		})
	}
}

// =============================================================================
// COUNTER TESTS
// =============================================================================

func TestCounters(t *testing.T) {
	ctx := context.Background()

	t.Run("total issued compares cumulative month ends", func(t *testing.T) {
		// GIVEN 130 seeds as of August 1 and 100 as of July 1
		q := &fakeQueries{
			earnedTotal: 150,
			earnedBefore: map[time.Time]int64{
				seed.Month(testNow).From:         130,
				seed.PreviousMonth(testNow).From: 100,
			},
		}
		svc := newTestService(q, nil, testNow)

		// WHEN the total stat is computed
		stat, err := svc.TotalIssued(ctx)

		// THEN the count is live and the rate compares the month ends
		require.NoError(t, err)
		assert.Equal(t, int64(150), stat.Count)
		assert.Equal(t, 30.0, stat.ChangeRate)
	})

	t.Run("monthly issued is month over month", func(t *testing.T) {
		q := &fakeQueries{earnedIn: map[seed.Window]int64{
			seed.Month(testNow):         60,
			seed.PreviousMonth(testNow): 40,
		}}
		svc := newTestService(q, nil, testNow)

		stat, err := svc.MonthlyIssued(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(60), stat.Count)
		assert.Equal(t, 50.0, stat.ChangeRate)
	})

	t.Run("monthly issued at month end still reads the prior month", func(t *testing.T) {
		// GIVEN the report runs on March 31, a date February cannot hold
		monthEnd := time.Date(2026, time.March, 31, 22, 0, 0, 0, time.UTC)
		q := &fakeQueries{earnedIn: map[seed.Window]int64{
			seed.Month(monthEnd): 60,
			seed.Month(time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)): 40,
		}}
		svc := newTestService(q, nil, monthEnd)

		// THEN the rate compares March against February, not March itself
		stat, err := svc.MonthlyIssued(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(60), stat.Count)
		assert.Equal(t, 50.0, stat.ChangeRate)
	})

	t.Run("daily issued is day over day", func(t *testing.T) {
		q := &fakeQueries{earnedIn: map[seed.Window]int64{
			seed.Day(testNow):         5,
			seed.PreviousDay(testNow): 0,
		}}
		svc := newTestService(q, nil, testNow)

		stat, err := svc.DailyIssued(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stat.Count)
		assert.Equal(t, 100.0, stat.ChangeRate)
	})

	t.Run("per user average divides by distinct earners", func(t *testing.T) {
		// GIVEN 7 grants across 3 users today, 4 across 2 yesterday
		q := &fakeQueries{
			earnedIn: map[seed.Window]int64{
				seed.Day(testNow):         7,
				seed.PreviousDay(testNow): 4,
			},
			earnersIn: map[seed.Window]int64{
				seed.Day(testNow):         3,
				seed.PreviousDay(testNow): 2,
			},
		}
		svc := newTestService(q, nil, testNow)

		stat, err := svc.PerUserAverage(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2.3, stat.Average)     // 7/3 rounded
		assert.Equal(t, 15.0, stat.ChangeRate) // 2.3 vs 2.0
	})

	t.Run("no earners reads a zero average", func(t *testing.T) {
		q := &fakeQueries{}
		svc := newTestService(q, nil, testNow)

		stat, err := svc.PerUserAverage(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0.0, stat.Average)
		assert.Equal(t, 0.0, stat.ChangeRate)
	})
}

// =============================================================================
// TREND AND BREAKDOWN TESTS
// =============================================================================

func TestMonthlyTrend(t *testing.T) {
	// GIVEN activity in only two of the trailing twelve months
	q := &fakeQueries{monthSums: []seed.MonthSum{
		{Year: 2026, Month: time.March, Total: 40},
		{Year: 2026, Month: time.August, Total: 25},
	}}
	svc := newTestService(q, nil, testNow)

	// WHEN the trend is computed
	points, err := svc.MonthlyTrend(context.Background())

	// THEN all twelve months appear, zero-filled, oldest first
	require.NoError(t, err)
	require.Len(t, points, 12)
	assert.Equal(t, 2025, points[0].Year)
	assert.Equal(t, int(time.September), points[0].Month)
	assert.Equal(t, int64(0), points[0].Amount)
	assert.Equal(t, "2025-09", points[0].Label)
	assert.Equal(t, int64(25), points[11].Amount)

	var march stats.TrendPoint
	for _, p := range points {
		if p.Label == "2026-03" {
			march = p
		}
	}
	assert.Equal(t, int64(40), march.Amount)
}

func TestReasonBreakdown(t *testing.T) {
	ctx := context.Background()

	t.Run("groups classify and ratios sum the scope", func(t *testing.T) {
		// GIVEN three description groups across two categories
		q := &fakeQueries{groups: []seed.DescriptionCount{
			{Description: "drive duration reward", Count: 6},
			{Description: "composite score reward (score 85)", Count: 3},
			{Description: "composite score reward (score 92)", Count: 1},
		}}
		svc := newTestService(q, nil, testNow)

		// WHEN the yearly breakdown is computed
		out, err := svc.ReasonBreakdown(ctx, stats.BreakdownScope{})

		// THEN categories merge their groups with one-decimal ratios
		require.NoError(t, err)
		byReason := map[seed.ReasonCategory]stats.ReasonStat{}
		for _, r := range out {
			byReason[r.Reason] = r
		}
		assert.Equal(t, int64(4), byReason[seed.ReasonTotalScore].Count)
		assert.Equal(t, 40.0, byReason[seed.ReasonTotalScore].Ratio)
		assert.Equal(t, int64(6), byReason[seed.ReasonEventNotOccurred].Count)
		assert.Equal(t, 60.0, byReason[seed.ReasonEventNotOccurred].Ratio)
		assert.Equal(t, int64(0), byReason[seed.ReasonBehaviorImproved].Count)

		// AND the scope was the current calendar year
		assert.Equal(t, seed.Year(testNow), q.groupedWindow)
	})

	t.Run("month scope selects that month", func(t *testing.T) {
		q := &fakeQueries{}
		svc := newTestService(q, nil, testNow)

		_, err := svc.ReasonBreakdown(ctx, stats.BreakdownScope{Month: "2026-03"})
		require.NoError(t, err)
		want := seed.Month(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, want, q.groupedWindow)
	})

	t.Run("malformed month is rejected", func(t *testing.T) {
		svc := newTestService(&fakeQueries{}, nil, testNow)
		_, err := svc.ReasonBreakdown(ctx, stats.BreakdownScope{Month: "March 2026"})
		assert.True(t, errors.Is(err, seed.ErrInvalidInput))
	})
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("email resolves to a user filter", func(t *testing.T) {
		// GIVEN a directory knowing the email
		q := &fakeQueries{searchTotal: 1, searchEntries: []seed.LedgerEntry{{ID: 1}}}
		resolver := directory.Static{"kim@example.com": "driver-1"}
		svc := newTestService(q, resolver, testNow)

		// WHEN history is filtered by that email
		entries, info, err := svc.History(ctx, stats.HistoryFilter{Email: "kim@example.com"}, seed.PageRequest{})

		// THEN the search ran against the resolved user id
		require.NoError(t, err)
		require.Len(t, q.searched, 1)
		require.NotNil(t, q.searched[0].UserID)
		assert.Equal(t, "driver-1", *q.searched[0].UserID)
		assert.Len(t, entries, 1)
		assert.Equal(t, int64(1), info.TotalElements)
	})

	t.Run("unknown email degrades to an empty page", func(t *testing.T) {
		q := &fakeQueries{searchTotal: 99}
		svc := newTestService(q, directory.Static{}, testNow)

		entries, info, err := svc.History(ctx, stats.HistoryFilter{Email: "ghost@example.com"}, seed.PageRequest{})
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Equal(t, int64(0), info.TotalElements)
		assert.Empty(t, q.searched, "the ledger must not be searched")
	})

	t.Run("end date is inclusive through end of day", func(t *testing.T) {
		q := &fakeQueries{}
		svc := newTestService(q, nil, testNow)

		start := time.Date(2026, time.August, 1, 9, 30, 0, 0, time.UTC)
		end := time.Date(2026, time.August, 10, 9, 30, 0, 0, time.UTC)
		_, _, err := svc.History(ctx, stats.HistoryFilter{Start: &start, End: &end}, seed.PageRequest{})
		require.NoError(t, err)

		require.Len(t, q.searched, 1)
		f := q.searched[0]
		assert.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), *f.From)
		assert.Equal(t, time.Date(2026, time.August, 11, 0, 0, 0, 0, time.UTC), *f.To)
	})

	t.Run("inverted period is rejected", func(t *testing.T) {
		svc := newTestService(&fakeQueries{}, nil, testNow)
		start := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
		_, _, err := svc.History(ctx, stats.HistoryFilter{Start: &start, End: &end}, seed.PageRequest{})
		assert.True(t, errors.Is(err, seed.ErrInvalidInput))
	})
}

func TestRewardsByDrive(t *testing.T) {
	q := &fakeQueries{driveSums: map[string]int64{"drive-1": 5}}
	svc := newTestService(q, nil, testNow)

	out, err := svc.RewardsByDrive(context.Background(), []string{"drive-1", "drive-404"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, stats.DriveSum{DriveID: "drive-1", Total: 5}, out[0])
	assert.Equal(t, stats.DriveSum{DriveID: "drive-404", Total: 0}, out[1])
}
