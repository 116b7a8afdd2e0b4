package engine

import (
	"fmt"
	"time"

	"tipid/internal/core"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// Trend comparison kinds.
const (
	TrendNotEnoughData = "not_enough_data"
	TrendNoSpending    = "no_spending"
	TrendStarted       = "started"
	TrendIncreased     = "increased"
	TrendDecreased     = "decreased"
	TrendStable        = "stable"
)

type TrendPoint struct {
	Label  string    `json:"label"`
	Amount float64   `json:"amount"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

type TrendChange struct {
	Kind    string `json:"kind"`
	Percent int    `json:"percent"`
	Text    string `json:"text"`
}

func ParseGranularity(s string) (Granularity, bool) {
	switch g := Granularity(s); g {
	case Daily, Weekly, Monthly:
		return g, true
	}
	return "", false
}

// Trend returns a fixed-length series, oldest bucket first: 7 days, 4
// rolling weeks or 6 calendar months. Unknown granularities yield nil.
func Trend(expenses []core.Expense, g Granularity, now time.Time) []TrendPoint {
	switch g {
	case Daily:
		return dailyTrend(expenses, now)
	case Weekly:
		return weeklyTrend(expenses, now)
	case Monthly:
		return monthlyTrend(expenses, now)
	}
	return nil
}

// sumWithin adds up expenses in [start, end], or [start, end) when
// endExclusive is set.
func sumWithin(expenses []core.Expense, start, end time.Time, endExclusive bool) float64 {
	var total float64
	for _, e := range expenses {
		t := e.OccurredOn
		if t.Before(start) {
			continue
		}
		if t.After(end) || (endExclusive && t.Equal(end)) {
			continue
		}
		total += e.Amount
	}
	return total
}

func dailyTrend(expenses []core.Expense, now time.Time) []TrendPoint {
	today := core.StartOfDay(now)
	points := make([]TrendPoint, 0, 7)
	for i := 6; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
		label := start.Format("Mon")
		switch i {
		case 0:
			label = "Today"
		case 1:
			label = "Yesterday"
		}
		points = append(points, TrendPoint{
			Label:  label,
			Amount: sumWithin(expenses, start, end, false),
			Start:  start,
			End:    end,
		})
	}
	return points
}

func weeklyTrend(expenses []core.Expense, now time.Time) []TrendPoint {
	const week = 7 * 24 * time.Hour
	points := make([]TrendPoint, 0, 4)
	for k := 0; k < 4; k++ {
		start := now.Add(-time.Duration(4-k) * week)
		end := now.Add(-time.Duration(3-k) * week)
		points = append(points, TrendPoint{
			Label:  fmt.Sprintf("Week %d", k+1),
			Amount: sumWithin(expenses, start, end, true),
			Start:  start,
			End:    end,
		})
	}
	return points
}

func monthlyTrend(expenses []core.Expense, now time.Time) []TrendPoint {
	points := make([]TrendPoint, 0, 6)
	for i := 5; i >= 0; i-- {
		start := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		points = append(points, TrendPoint{
			Label:  start.Format("Jan"),
			Amount: sumWithin(expenses, start, end, false),
			Start:  start,
			End:    end,
		})
	}
	return points
}

// CompareTrend describes the change between the last two buckets.
func CompareTrend(series []TrendPoint) TrendChange {
	if len(series) < 2 {
		return TrendChange{Kind: TrendNotEnoughData, Text: "not enough data"}
	}
	prev := series[len(series)-2].Amount
	last := series[len(series)-1].Amount
	switch {
	case prev == 0 && last == 0:
		return TrendChange{Kind: TrendNoSpending, Text: "no spending"}
	case prev == 0:
		return TrendChange{Kind: TrendStarted, Text: "spending started"}
	}
	pct := round((last - prev) / prev * 100)
	switch {
	case pct > 0:
		return TrendChange{Kind: TrendIncreased, Percent: pct, Text: fmt.Sprintf("increased by %d%%", pct)}
	case pct < 0:
		return TrendChange{Kind: TrendDecreased, Percent: -pct, Text: fmt.Sprintf("decreased by %d%%", -pct)}
	}
	return TrendChange{Kind: TrendStable, Text: "stable"}
}
