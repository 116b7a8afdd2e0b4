package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		in      string
		wantOK  bool
		wantMsg string
	}{
		{"", false, "Amount is required"},
		{"   ", false, "Amount is required"},
		{"abc", false, "Amount must be a valid number"},
		{"0", false, "Amount must be greater than 0"},
		{"-5", false, "Amount must be greater than 0"},
		{"12.50", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Amount(tt.in, "Amount")
			assert.Equal(t, tt.wantOK, got.IsValid)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "Email is required", Email("").Message)
	for _, bad := range []string{"ann", "ann@x", "ann @x.com", "a@@x.com"} {
		assert.Equal(t, "Invalid email format", Email(bad).Message, bad)
	}
	assert.True(t, Email("ann@x.com").IsValid)
}

func TestUsername(t *testing.T) {
	tests := map[string]string{
		"":                      "Username is required",
		"ab":                    "Username must be at least 3 characters",
		strings.Repeat("a", 21): "Username must be less than 20 characters",
		"ann-cruz":              "Username can only contain letters, numbers, and underscores",
		"ann cruz":              "Username can only contain letters, numbers, and underscores",
		"anncruz":               "",
		strings.Repeat("a", 20): "",
		"Ann_Cruz_99":           "",
	}
	for in, want := range tests {
		got := Username(in)
		assert.Equal(t, want == "", got.IsValid, in)
		assert.Equal(t, want, got.Message, in)
	}
}

func TestPasswordRules(t *testing.T) {
	assert.Equal(t, "Password is required", Password("").Message)
	assert.Equal(t, "Password must be at least 6 characters", Password("12345").Message)
	assert.True(t, Password("123456").IsValid)
	assert.Equal(t, "Passwords do not match!", PasswordMatch("secret1", "secret2").Message)
	assert.True(t, PasswordMatch("secret1", "secret1").IsValid)
}

func TestDate(t *testing.T) {
	assert.Equal(t, "Date is required", Date(" ").Message)
	assert.Equal(t, "Invalid date format", Date("2025-13-40").Message)
	assert.True(t, Date("2025-02-28").IsValid)
}

func TestExpenseFormStopsAtFirstFailure(t *testing.T) {
	// Every field is bad; only the amount message is reported.
	got := ExpenseForm("", "", "nope")
	assert.False(t, got.IsValid)
	assert.Equal(t, "Amount is required", got.Message)

	assert.Equal(t, "Description is required", ExpenseForm("10", " ", "nope").Message)
	assert.Equal(t, "Description must be 200 characters or less", ExpenseForm("10", strings.Repeat("a", 201), "nope").Message)
	assert.Equal(t, "Invalid date format", ExpenseForm("10", "lunch", "nope").Message)
	assert.True(t, ExpenseForm("10", "lunch", "2025-01-02").IsValid)
}

func TestMaxLength(t *testing.T) {
	assert.True(t, MaxLength(strings.Repeat("a", 200), "Description", 200).IsValid)
	assert.True(t, MaxLength(" "+strings.Repeat("ñ", 200)+" ", "Description", 200).IsValid, "counts characters of the trimmed value")
	assert.Equal(t, "Description must be 200 characters or less", MaxLength(strings.Repeat("a", 201), "Description", 200).Message)
}

func TestBudgetForm(t *testing.T) {
	assert.Equal(t, "Budget amount must be greater than 0", BudgetForm("0").Message)
	assert.True(t, BudgetForm("5000").IsValid)
}

func TestSavingsGoalForm(t *testing.T) {
	tests := []struct {
		name, goal, target, current string
		want                        string
	}{
		{"missing name", "", "100", "0", "Goal name is required"},
		{"bad target", "Phone", "x", "0", "Target amount must be a valid number"},
		{"negative current", "Phone", "100", "-1", "Current amount cannot be negative"},
		{"current above target", "Phone", "100", "101", "Current amount cannot exceed target amount"},
		{"equal is fine", "Phone", "100", "100", ""},
		{"empty current", "Phone", "100", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SavingsGoalForm(tt.goal, tt.target, tt.current)
			assert.Equal(t, tt.want, got.Message)
			assert.Equal(t, tt.want == "", got.IsValid)
		})
	}
}

func TestRegistrationForm(t *testing.T) {
	assert.Equal(t, "Full name is required", RegistrationForm("", "bad", "x", "", "").Message)
	assert.Equal(t, "Invalid email format", RegistrationForm("Ann Cruz", "bad", "x", "", "").Message)
	assert.Equal(t, "Username must be at least 3 characters", RegistrationForm("Ann Cruz", "ann@x.com", "x", "", "").Message)
	assert.Equal(t, "Password is required", RegistrationForm("Ann Cruz", "ann@x.com", "anncruz", "", "").Message)
	assert.Equal(t, "Passwords do not match!", RegistrationForm("Ann Cruz", "ann@x.com", "anncruz", "secret1", "secret2").Message)
	assert.True(t, RegistrationForm("Ann Cruz", "ann@x.com", "anncruz", "secret1", "secret1").IsValid)
}

func TestLoginForm(t *testing.T) {
	assert.Equal(t, "Please enter username and password!", LoginForm("", "x").Message)
	assert.Equal(t, "Please enter username and password!", LoginForm("ann", "").Message)
	assert.True(t, LoginForm("ann", "x").IsValid)
}
