package engine

import (
	"sort"

	"tipid/internal/core"
)

// MaxDonutSlices is how many categories get their own colour.
const MaxDonutSlices = 6

// DefaultPalette is cycled through in descending-amount order.
var DefaultPalette = []string{"#6366f1", "#22c55e", "#f59e0b", "#ef4444", "#06b6d4", "#a855f7"}

type CategoryShare struct {
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Percentage  int     `json:"percentage"`
	IsEssential bool    `json:"isEssential"`
}

type Split struct {
	Essential           float64 `json:"essential"`
	NonEssential        float64 `json:"nonEssential"`
	EssentialPercentage int     `json:"essentialPercentage"`
}

type DonutStop struct {
	Category string  `json:"category"`
	Color    string  `json:"color"`
	From     float64 `json:"from"`
	To       float64 `json:"to"`
}

type Donut struct {
	Stops []DonutStop `json:"stops"`
	// Overflow counts categories beyond MaxDonutSlices.
	Overflow int `json:"overflow"`
}

// CategoryBreakdown groups by category and sorts by amount, largest first.
// A group's essential flag is the flag of the first expense seen for it;
// ties in amount keep first-seen order.
func CategoryBreakdown(expenses []core.Expense) []CategoryShare {
	index := make(map[string]int)
	var shares []CategoryShare
	var total float64
	for _, e := range expenses {
		total += e.Amount
		i, seen := index[e.Category]
		if !seen {
			index[e.Category] = len(shares)
			shares = append(shares, CategoryShare{Category: e.Category, IsEssential: e.IsEssential})
			i = len(shares) - 1
		}
		shares[i].Amount += e.Amount
	}
	for i := range shares {
		if total > 0 {
			shares[i].Percentage = round(shares[i].Amount / total * 100)
		}
	}
	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].Amount > shares[b].Amount
	})
	return shares
}

// EssentialSplit defaults the percentage to 50 when nothing was spent.
func EssentialSplit(expenses []core.Expense) Split {
	var s Split
	for _, e := range expenses {
		if e.IsEssential {
			s.Essential += e.Amount
		} else {
			s.NonEssential += e.Amount
		}
	}
	total := s.Essential + s.NonEssential
	if total == 0 {
		s.EssentialPercentage = 50
		return s
	}
	s.EssentialPercentage = round(s.Essential / total * 100)
	return s
}

// DonutStops lays out conic-gradient stops for the largest categories.
// The final stop always reaches 100 so rounding slack leaves no gap.
func DonutStops(shares []CategoryShare, palette []string) Donut {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	sorted := make([]CategoryShare, len(shares))
	copy(sorted, shares)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Amount > sorted[b].Amount
	})

	var d Donut
	if len(sorted) > MaxDonutSlices {
		d.Overflow = len(sorted) - MaxDonutSlices
		sorted = sorted[:MaxDonutSlices]
	}
	var offset float64
	for i, s := range sorted {
		stop := DonutStop{
			Category: s.Category,
			Color:    palette[i%len(palette)],
			From:     offset,
			To:       offset + float64(s.Percentage),
		}
		offset = stop.To
		d.Stops = append(d.Stops, stop)
	}
	if n := len(d.Stops); n > 0 {
		d.Stops[n-1].To = 100
	}
	return d
}
