package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tipid/internal/core"
)

// fakeSheets serves the subset of the Sheets values API the client uses.
type fakeSheets struct {
	mu       sync.Mutex
	rows     map[string][][]any // sheet name -> rows
	appended []string           // ranges passed to append
	cleared  []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rest, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(rest, ":append"):
		rng := strings.TrimSuffix(rest, ":append")
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sheet, _, _ := strings.Cut(rng, "!")
		f.rows[sheet] = append(f.rows[sheet], vr.Values...)
		f.appended = append(f.appended, rng)
		json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": sheet + "!A1:G1"},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(rest, ":clear"):
		rng := strings.TrimSuffix(rest, ":clear")
		f.cleared = append(f.cleared, rng)
		json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})
	case r.Method == http.MethodGet:
		sheet, _, _ := strings.Cut(rest, "!")
		rows, exists := f.rows[sheet]
		if !exists {
			http.Error(w, `{"error":{"code":400,"message":"Unable to parse range"}}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"range": rest, "values": rows})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	c := NewWithService(svc, "sheet-id", "Expenses")
	c.now = func() time.Time { return time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC) }
	return c
}

func testExpense() core.Expense {
	return core.Expense{
		ID:          "exp-1",
		OwnerID:     "user-1",
		Amount:      250.5,
		Category:    "Food & Dining",
		Description: "groceries",
		OccurredOn:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		IsEssential: true,
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Options{SpreadsheetID: "id"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "id", CredentialsFile: "/does/not/exist.json"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExportAppendsRow(t *testing.T) {
	fake := &fakeSheets{rows: map[string][][]any{}}
	c := newTestClient(t, fake)

	ref, err := c.Export(context.Background(), testExpense(), "anncruz")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if ref != "2025 Expenses!A1:G1" {
		t.Errorf("Export() ref = %q", ref)
	}
	if len(fake.appended) != 1 || fake.appended[0] != "2025 Expenses!A:G" {
		t.Fatalf("appended ranges = %v", fake.appended)
	}

	row := fake.rows["2025 Expenses"][0]
	want := []any{"exp-1", "2025-03-10", "Food & Dining", "groceries", 250.5, "Yes", "anncruz"}
	if len(row) != len(want) {
		t.Fatalf("row = %v, want %v", row, want)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestExportRejectsInvalidExpense(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: "Expenses"} // svc is nil

	e := testExpense()
	e.Amount = 0
	if _, err := c.Export(context.Background(), e, "ann"); err == nil {
		t.Fatal("expected validation error")
	}

	e = testExpense()
	e.ID = ""
	if _, err := c.Export(context.Background(), e, "ann"); err == nil {
		t.Fatal("expected error for expense without id")
	}

	if _, err := c.Export(context.Background(), testExpense(), "ann"); err == nil {
		t.Fatal("expected error with uninitialized service")
	}
}

func TestRemoveClearsMatchingRow(t *testing.T) {
	fake := &fakeSheets{rows: map[string][][]any{
		"2025 Expenses": {{"id"}, {"exp-0"}, {"exp-1"}},
	}}
	c := newTestClient(t, fake)

	if err := c.Remove(context.Background(), "exp-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "2025 Expenses!A3:G3" {
		t.Errorf("cleared = %v, want [2025 Expenses!A3:G3]", fake.cleared)
	}
}

func TestRemoveFallsBackToPreviousYear(t *testing.T) {
	fake := &fakeSheets{rows: map[string][][]any{
		"2025 Expenses": {{"exp-9"}},
		"2024 Expenses": {{"exp-1"}},
	}}
	c := newTestClient(t, fake)

	if err := c.Remove(context.Background(), "exp-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "2024 Expenses!A1:G1" {
		t.Errorf("cleared = %v", fake.cleared)
	}
}

func TestRemoveMissingRowIsNotAnError(t *testing.T) {
	fake := &fakeSheets{rows: map[string][][]any{"2025 Expenses": {{"exp-9"}}}}
	c := newTestClient(t, fake)

	if err := c.Remove(context.Background(), "exp-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(fake.cleared) != 0 {
		t.Errorf("cleared = %v, want none", fake.cleared)
	}
}

func TestRemoveFailsWhenCurrentSheetUnreadable(t *testing.T) {
	fake := &fakeSheets{rows: map[string][][]any{}}
	c := newTestClient(t, fake)

	if err := c.Remove(context.Background(), "exp-1"); err == nil {
		t.Fatal("expected error when the current year sheet cannot be read")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Expenses", 2025, "2025 Expenses"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestNewWithServiceDefaultSheetName(t *testing.T) {
	c := NewWithService(nil, "id", "  ")
	if c.sheetBase != "Expenses" {
		t.Errorf("sheetBase = %q, want Expenses", c.sheetBase)
	}
}
