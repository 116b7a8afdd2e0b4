package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

const (
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

const (
	RateDaily   SavingsRate = "daily"
	RateWeekly  SavingsRate = "weekly"
	RateMonthly SavingsRate = "monthly"
)

type (
	// Timeframe is the length of a budget period.
	Timeframe string

	// SavingsRate selects the horizon a savings rate is expressed over.
	SavingsRate string

	Expense struct {
		ID          string    `json:"id"`
		OwnerID     string    `json:"ownerId"`
		Amount      float64   `json:"amount"`
		Category    string    `json:"category"`
		Description string    `json:"description"`
		OccurredOn  time.Time `json:"occurredOn"`
		IsEssential bool      `json:"isEssential"`
		BudgetID    string    `json:"budgetId,omitempty"` // empty when not attached to a budget
		CreatedAt   time.Time `json:"createdAt"`
	}

	Budget struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"ownerId"`
		Amount    float64   `json:"amount"`
		Timeframe Timeframe `json:"timeframe"`
		IsActive  bool      `json:"isActive"`
		StartDate time.Time `json:"startDate"`
		EndDate   time.Time `json:"endDate"`
		Processed bool      `json:"processed"`
		GoalID    string    `json:"goalId,omitempty"` // empty when no goal is linked
		CreatedAt time.Time `json:"createdAt"`
	}

	SavingsGoal struct {
		ID           string    `json:"id"`
		OwnerID      string    `json:"ownerId"`
		Name         string    `json:"name"`
		TargetAmount float64   `json:"targetAmount"`
		SavedAmount  float64   `json:"savedAmount"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	User struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		FullName  string    `json:"fullName"`
		Password  string    `json:"-"` // stored credential, see internal/auth
		CreatedAt time.Time `json:"createdAt"`
	}

	// MarketPrice is a reference price used by price comparison.
	MarketPrice struct {
		Category string  `json:"category"`
		Item     string  `json:"item"`
		Price    float64 `json:"price"`
	}
)

// Categories is the category set offered by the add-expense flow. Other
// values are accepted as free-form categories.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Education",
	"Personal Care",
	"Gifts & Donations",
	"Other",
}

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyOwner       = errors.New("empty owner")
	ErrZeroDate         = errors.New("date cannot be zero")
)

// MaxDescriptionLength caps an expense description, in characters.
const MaxDescriptionLength = 200

// ValidationError carries a user-facing message for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func (t Timeframe) IsValid() bool {
	return t == TimeframeWeek || t == TimeframeMonth
}

// ParseTimeframe accepts "week"/"month" in any case.
func ParseTimeframe(s string) (Timeframe, error) {
	t := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	return t, nil
}

// EndDate returns the end of a period of this timeframe starting at start.
// Months use calendar arithmetic, so Jan 31 + 1 month normalizes to Mar 2/3.
func (t Timeframe) EndDate(start time.Time) time.Time {
	if t == TimeframeMonth {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 7)
}

// Days returns the number of days a savings rate is spread over.
func (r SavingsRate) Days() float64 {
	switch r {
	case RateWeekly:
		return 7
	case RateMonthly:
		return 30
	default:
		return 1
	}
}

// ParseDate parses a calendar date (or an RFC3339 timestamp) and returns
// midnight of that day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return &ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("Description must be %d characters or less", MaxDescriptionLength),
		}
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.OccurredOn.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if b.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !b.Timeframe.IsValid() {
		return ErrInvalidTimeframe
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return ErrZeroDate
	}
	if !b.EndDate.After(b.StartDate) {
		return errors.New("end date must be after start date")
	}
	return nil
}

// Expired reports whether the period has ended strictly before now.
func (b Budget) Expired(now time.Time) bool {
	return b.EndDate.Before(now)
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("empty goal name")
	}
	if g.TargetAmount <= 0 {
		return ErrInvalidAmount
	}
	if g.SavedAmount < 0 {
		return errors.New("saved amount cannot be negative")
	}
	return nil
}

// Achieved tolerates overshoot: any saved amount at or above target counts.
func (g SavingsGoal) Achieved() bool {
	return g.SavedAmount >= g.TargetAmount
}
