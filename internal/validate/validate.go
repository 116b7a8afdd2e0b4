// Package validate checks form input before it reaches the services.
//
// Every check returns a Result. Composite form checks run their field checks
// in a fixed order and stop at the first failure.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"tipid/internal/core"
)

// Result is the outcome of a single check.
type Result struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

var (
	ok = Result{IsValid: true}

	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

func fail(msg string) Result {
	return Result{Message: msg}
}

// Amount requires a number strictly greater than zero.
func Amount(value, field string) Result {
	value = strings.TrimSpace(value)
	if value == "" {
		return fail(field + " is required")
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fail(field + " must be a valid number")
	}
	if n <= 0 {
		return fail(field + " must be greater than 0")
	}
	return ok
}

// MaxLength fails when the trimmed value is longer than max characters.
func MaxLength(value, field string, max int) Result {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > max {
		return fail(fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return ok
}

func Required(value, field string) Result {
	if strings.TrimSpace(value) == "" {
		return fail(field + " is required")
	}
	return ok
}

func Email(value string) Result {
	if strings.TrimSpace(value) == "" {
		return fail("Email is required")
	}
	if !emailPattern.MatchString(value) {
		return fail("Invalid email format")
	}
	return ok
}

func Username(value string) Result {
	switch {
	case strings.TrimSpace(value) == "":
		return fail("Username is required")
	case len(value) < 3:
		return fail("Username must be at least 3 characters")
	case len(value) > 20:
		return fail("Username must be less than 20 characters")
	case !usernamePattern.MatchString(value):
		return fail("Username can only contain letters, numbers, and underscores")
	}
	return ok
}

func Password(value string) Result {
	if value == "" {
		return fail("Password is required")
	}
	if len(value) < 6 {
		return fail("Password must be at least 6 characters")
	}
	return ok
}

func PasswordMatch(password, confirm string) Result {
	if password != confirm {
		return fail("Passwords do not match!")
	}
	return ok
}

func Date(value string) Result {
	if strings.TrimSpace(value) == "" {
		return fail("Date is required")
	}
	if _, err := core.ParseDate(value, time.UTC); err != nil {
		return fail("Invalid date format")
	}
	return ok
}

// first returns the first failing result, or ok.
func first(checks ...func() Result) Result {
	for _, check := range checks {
		if r := check(); !r.IsValid {
			return r
		}
	}
	return ok
}

func ExpenseForm(amount, description, date string) Result {
	return first(
		func() Result { return Amount(amount, "Amount") },
		func() Result { return Required(description, "Description") },
		func() Result { return MaxLength(description, "Description", core.MaxDescriptionLength) },
		func() Result { return Date(date) },
	)
}

func BudgetForm(amount string) Result {
	return Amount(amount, "Budget amount")
}

func SavingsGoalForm(name, target, current string) Result {
	return first(
		func() Result { return Required(name, "Goal name") },
		func() Result { return Amount(target, "Target amount") },
		func() Result {
			current = strings.TrimSpace(current)
			if current == "" {
				return ok
			}
			cur, err := strconv.ParseFloat(current, 64)
			if err != nil {
				return fail("Current amount must be a valid number")
			}
			tgt, _ := strconv.ParseFloat(strings.TrimSpace(target), 64)
			if cur < 0 {
				return fail("Current amount cannot be negative")
			}
			if cur > tgt {
				return fail("Current amount cannot exceed target amount")
			}
			return ok
		},
	)
}

func RegistrationForm(fullName, email, username, password, confirm string) Result {
	return first(
		func() Result { return Required(fullName, "Full name") },
		func() Result { return Email(email) },
		func() Result { return Username(username) },
		func() Result { return Password(password) },
		func() Result { return PasswordMatch(password, confirm) },
	)
}

func LoginForm(username, password string) Result {
	if strings.TrimSpace(username) == "" || password == "" {
		return fail("Please enter username and password!")
	}
	return ok
}
