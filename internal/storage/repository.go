// Package storage is the SQLite backend. Schema changes live in
// migrations/ and are applied on open.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"tipid/internal/core"
	"tipid/internal/store"
)

// timestampLayout is fixed-width, so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db  *sql.DB
	dsn string
	// loc is the zone calendar dates are read back in.
	loc *time.Location
	now func() time.Time
}

var _ store.Store = (*SQLiteRepository)(nil)

// DSN adds the pragmas the repository relies on to a database path.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := DSN(dbPath)

	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; transactions never wait on a second connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, dsn: dsn, loc: time.Local, now: time.Now}, nil
}

// SetLocation changes the zone calendar dates are interpreted in.
func (r *SQLiteRepository) SetLocation(loc *time.Location) {
	if loc != nil {
		r.loc = loc
	}
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// classify maps driver errors onto the core sentinels.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %v", what, core.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		// Rows written before the layout was fixed-width.
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}
		}
	}
	return t
}

func (r *SQLiteRepository) parseDate(s string) time.Time {
	t, err := time.ParseInLocation(core.DateLayout, s, r.loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

// Users

const userColumns = `id, username, email, full_name, password, created_at`

func scanUser(row scanner) (core.User, error) {
	var u core.User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Password, &created); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, full_name, password, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.FullName, u.Password, formatTime(u.CreatedAt))
	if err != nil {
		return core.User{}, classify(err, "create user")
	}
	return u, nil
}

func (r *SQLiteRepository) userWhere(ctx context.Context, clause string, arg any) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+clause, arg)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, classify(err, "get user")
	}
	return u, nil
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.userWhere(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.userWhere(ctx, `username = ?`, username)
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.userWhere(ctx, `email = ?`, email)
}

// Expenses

const expenseColumns = `id, user_id, amount, category, description, expense_date, is_essential, COALESCE(budget_id, ''), created_at`

func (r *SQLiteRepository) scanExpense(row scanner) (core.Expense, error) {
	var e core.Expense
	var date, created string
	var essential int
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Amount, &e.Category, &e.Description, &date, &essential, &e.BudgetID, &created); err != nil {
		return core.Expense{}, err
	}
	e.OccurredOn = r.parseDate(date)
	e.IsEssential = essential == 1
	e.CreatedAt = parseTime(created)
	return e, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, amount, category, description, expense_date, is_essential, budget_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Amount, e.Category, e.Description, e.OccurredOn.Format(core.DateLayout),
		boolInt(e.IsEssential), nullable(e.BudgetID), formatTime(e.CreatedAt))
	if err != nil {
		return core.Expense{}, classify(err, "create expense")
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.OwnerID,
		"amount", e.Amount,
		"category", e.Category)

	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, ownerID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, ownerID)
	e, err := r.scanExpense(row)
	if err != nil {
		return core.Expense{}, classify(err, "get expense "+id)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID string, f store.ExpenseFilter) ([]core.Expense, error) {
	var where strings.Builder
	where.WriteString(`user_id = ?`)
	args := []any{ownerID}
	if !f.From.IsZero() {
		where.WriteString(` AND expense_date >= ?`)
		args = append(args, f.From.Format(core.DateLayout))
	}
	if !f.To.IsZero() {
		where.WriteString(` AND expense_date <= ?`)
		args = append(args, f.To.Format(core.DateLayout))
	}
	if f.Category != "" {
		where.WriteString(` AND category = ?`)
		args = append(args, f.Category)
	}
	if f.Essential != nil {
		where.WriteString(` AND is_essential = ?`)
		args = append(args, boolInt(*f.Essential))
	}
	if f.BudgetID != "" {
		where.WriteString(` AND budget_id = ?`)
		args = append(args, f.BudgetID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE `+where.String()+` ORDER BY expense_date DESC, created_at DESC`,
		args...)
	if err != nil {
		return nil, classify(err, "list expenses")
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := r.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, category = ?, description = ?, expense_date = ?, is_essential = ?, budget_id = ?
		 WHERE id = ? AND user_id = ?`,
		e.Amount, e.Category, e.Description, e.OccurredOn.Format(core.DateLayout), boolInt(e.IsEssential),
		nullable(e.BudgetID), e.ID, e.OwnerID)
	if err != nil {
		return classify(err, "update expense "+e.ID)
	}
	return requireRow(res, "expense "+e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return classify(err, "delete expense "+id)
	}
	return requireRow(res, "expense "+id)
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

// Budgets

const budgetColumns = `id, user_id, amount, timeframe, is_active, start_date, end_date, processed, COALESCE(goal_id, ''), created_at`

func scanBudget(row scanner) (core.Budget, error) {
	var b core.Budget
	var tf, start, end, created string
	var active, processed int
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Amount, &tf, &active, &start, &end, &processed, &b.GoalID, &created); err != nil {
		return core.Budget{}, err
	}
	b.Timeframe = core.Timeframe(tf)
	b.IsActive = active == 1
	b.StartDate = parseTime(start)
	b.EndDate = parseTime(end)
	b.Processed = processed == 1
	b.CreatedAt = parseTime(created)
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now()
	}
	b.IsActive = true

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE budgets SET is_active = 0 WHERE user_id = ? AND is_active = 1`, b.OwnerID); err != nil {
			return classify(err, "deactivate budgets")
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (id, user_id, amount, timeframe, is_active, start_date, end_date, processed, goal_id, created_at)
			 VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?)`,
			b.ID, b.OwnerID, b.Amount, string(b.Timeframe), formatTime(b.StartDate), formatTime(b.EndDate),
			boolInt(b.Processed), nullable(b.GoalID), formatTime(b.CreatedAt))
		return classify(err, "insert budget")
	})
	if err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (r *SQLiteRepository) ActiveBudget(ctx context.Context, ownerID string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND is_active = 1`, ownerID)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, classify(err, "active budget")
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET amount = ?, timeframe = ?, is_active = ?, start_date = ?, end_date = ?, goal_id = ?
		 WHERE id = ? AND user_id = ?`,
		b.Amount, string(b.Timeframe), boolInt(b.IsActive), formatTime(b.StartDate), formatTime(b.EndDate),
		nullable(b.GoalID), b.ID, b.OwnerID)
	if err != nil {
		return classify(err, "update budget "+b.ID)
	}
	return requireRow(res, "budget "+b.ID)
}

func (r *SQLiteRepository) unprocessedBudgets(ctx context.Context, clause string, args ...any) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE processed = 0`+clause+` ORDER BY end_date`, args...)
	if err != nil {
		return nil, classify(err, "list unprocessed budgets")
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DueBudgets(ctx context.Context, ownerID string, now time.Time) ([]core.Budget, error) {
	all, err := r.unprocessedBudgets(ctx, ` AND user_id = ?`, ownerID)
	if err != nil {
		return nil, err
	}
	due := all[:0]
	for _, b := range all {
		if b.Expired(now) {
			due = append(due, b)
		}
	}
	return due, nil
}

func (r *SQLiteRepository) OwnersWithDueBudgets(ctx context.Context, now time.Time) ([]string, error) {
	all, err := r.unprocessedBudgets(ctx, ``)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var owners []string
	for _, b := range all {
		if !b.Expired(now) {
			continue
		}
		if _, ok := seen[b.OwnerID]; !ok {
			seen[b.OwnerID] = struct{}{}
			owners = append(owners, b.OwnerID)
		}
	}
	return owners, nil
}

func (r *SQLiteRepository) FinalizeBudget(ctx context.Context, b core.Budget, transfer float64) (bool, error) {
	applied := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE budgets SET processed = 1, is_active = 0 WHERE id = ? AND user_id = ? AND processed = 0`,
			b.ID, b.OwnerID)
		if err != nil {
			return classify(err, "mark budget processed")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		applied = true

		if transfer <= 0 || b.GoalID == "" {
			return nil
		}
		res, err = tx.ExecContext(ctx,
			`UPDATE savings_goals SET current_amount = current_amount + ? WHERE id = ? AND user_id = ?`,
			transfer, b.GoalID, b.OwnerID)
		if err != nil {
			return classify(err, "transfer leftover")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			slog.WarnContext(ctx, "Linked goal missing, leftover not transferred",
				"budget_id", b.ID, "goal_id", b.GoalID, "leftover", transfer)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Goals

const goalColumns = `id, user_id, goal_name, target_amount, current_amount, created_at`

func scanGoal(row scanner) (core.SavingsGoal, error) {
	var g core.SavingsGoal
	var created string
	if err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.TargetAmount, &g.SavedAmount, &created); err != nil {
		return core.SavingsGoal{}, err
	}
	g.CreatedAt = parseTime(created)
	return g, nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_goals (id, user_id, goal_name, target_amount, current_amount, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Name, g.TargetAmount, g.SavedAmount, formatTime(g.CreatedAt))
	if err != nil {
		return core.SavingsGoal{}, classify(err, "create goal")
	}
	return g, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, ownerID, id string) (core.SavingsGoal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM savings_goals WHERE id = ? AND user_id = ?`, id, ownerID)
	g, err := scanGoal(row)
	if err != nil {
		return core.SavingsGoal{}, classify(err, "get goal "+id)
	}
	return g, nil
}

func (r *SQLiteRepository) LatestGoal(ctx context.Context, ownerID string) (core.SavingsGoal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`, ownerID)
	g, err := scanGoal(row)
	if err != nil {
		return core.SavingsGoal{}, classify(err, "latest goal")
	}
	return g, nil
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.SavingsGoal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE savings_goals SET goal_name = ?, target_amount = ?, current_amount = ? WHERE id = ? AND user_id = ?`,
		g.Name, g.TargetAmount, g.SavedAmount, g.ID, g.OwnerID)
	if err != nil {
		return classify(err, "update goal "+g.ID)
	}
	return requireRow(res, "goal "+g.ID)
}

func (r *SQLiteRepository) AddToGoal(ctx context.Context, ownerID, id string, amount float64) (core.SavingsGoal, error) {
	var g core.SavingsGoal
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE savings_goals SET current_amount = current_amount + ? WHERE id = ? AND user_id = ?`,
			amount, id, ownerID)
		if err != nil {
			return classify(err, "add to goal "+id)
		}
		if err := requireRow(res, "goal "+id); err != nil {
			return err
		}
		g, err = scanGoal(tx.QueryRowContext(ctx,
			`SELECT `+goalColumns+` FROM savings_goals WHERE id = ?`, id))
		return classify(err, "reload goal "+id)
	})
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return g, nil
}

// Sessions

func (r *SQLiteRepository) CreateSession(ctx context.Context, s store.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)`,
		s.Token, s.UserID, formatTime(s.ExpiresAt), formatTime(s.LastActivity))
	return classify(err, "create session")
}

func (r *SQLiteRepository) LookupSession(ctx context.Context, token string, now time.Time) (store.Session, core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT s.token, s.user_id, s.expires_at, s.last_activity,
		       u.id, u.username, u.email, u.full_name, u.password, u.created_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ?`, token)

	var s store.Session
	var u core.User
	var expires, last, created string
	if err := row.Scan(&s.Token, &s.UserID, &expires, &last,
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.Password, &created); err != nil {
		return store.Session{}, core.User{}, classify(err, "lookup session")
	}
	s.ExpiresAt = parseTime(expires)
	s.LastActivity = parseTime(last)
	u.CreatedAt = parseTime(created)
	if !s.ExpiresAt.After(now) {
		return store.Session{}, core.User{}, fmt.Errorf("session expired: %w", core.ErrNotFound)
	}
	return s, u, nil
}

func (r *SQLiteRepository) RenewSession(ctx context.Context, token string, now, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?`,
		formatTime(now), formatTime(expiresAt), token)
	if err != nil {
		return classify(err, "renew session")
	}
	return requireRow(res, "session")
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return classify(err, "delete session")
}

func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	// Timestamps are fixed-width UTC, so text comparison orders them.
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, classify(err, "delete expired sessions")
	}
	return res.RowsAffected()
}

// Prices

func (r *SQLiteRepository) MarketPrice(ctx context.Context, item string) (core.MarketPrice, error) {
	var p core.MarketPrice
	err := r.db.QueryRowContext(ctx,
		`SELECT item, category, price FROM market_prices WHERE item = ?`, strings.TrimSpace(item)).
		Scan(&p.Item, &p.Category, &p.Price)
	if err != nil {
		return core.MarketPrice{}, classify(err, "market price "+item)
	}
	return p, nil
}

func (r *SQLiteRepository) ListMarketPrices(ctx context.Context) ([]core.MarketPrice, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT item, category, price FROM market_prices ORDER BY category, item`)
	if err != nil {
		return nil, classify(err, "list market prices")
	}
	defer rows.Close()

	var out []core.MarketPrice
	for rows.Next() {
		var p core.MarketPrice
		if err := rows.Scan(&p.Item, &p.Category, &p.Price); err != nil {
			return nil, fmt.Errorf("scan market price: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
