package cli

import (
	"fmt"
	"time"

	"tipid/internal/auth"
	"tipid/internal/backend"
	"tipid/internal/config"
	apphttp "tipid/internal/http"
	"tipid/internal/log"
	"tipid/internal/services"
	"tipid/internal/session"
)

// App is the service graph every binary builds on top of a backend.
type App struct {
	Location  *time.Location
	Sessions  *session.Manager
	Hasher    *auth.Hasher
	Auth      *services.AuthService
	Expenses  *services.ExpenseService
	Budgets   *services.BudgetService
	Goals     *services.GoalService
	Dashboard *services.DashboardService
	Prices    *services.PriceService
}

type locationSetter interface {
	SetLocation(loc *time.Location)
}

// NewApp wires the services over res using the configured password scheme
// and time zone.
func NewApp(res *backend.BackendResult, cfg *config.Config, logger *log.Logger) (*App, error) {
	if res == nil || res.Store == nil {
		return nil, fmt.Errorf("backend is not initialized")
	}
	scheme, err := auth.ParseScheme(cfg.PasswordScheme)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load time zone: %w", err)
	}
	if ls, ok := res.Store.(locationSetter); ok {
		ls.SetLocation(loc)
	}

	publisher := res.Publisher
	if publisher == nil {
		publisher = services.NopPublisher{}
	}

	app := &App{Location: loc, Hasher: auth.NewHasher(scheme)}
	app.Sessions = session.NewManager(res.Store, session.Options{TTL: cfg.SessionTTL}, logger)
	app.Auth = services.NewAuthService(res.Store, app.Sessions, app.Hasher, logger)
	app.Expenses = services.NewExpenseService(res.Store, res.Store, publisher, logger)
	app.Budgets = services.NewBudgetService(res.Store, publisher, logger)
	app.Goals = services.NewGoalService(res.Store, cfg.CurrencySymbol, logger)
	app.Dashboard = services.NewDashboardService(res.Store, app.Budgets, app.Goals, logger)
	app.Prices = services.NewPriceService(res.Store, logger)

	app.Expenses.SetClock(time.Now, loc)
	app.Budgets.SetClock(time.Now, loc)

	logger.Debug("Services initialized",
		"password_scheme", string(scheme),
		"timezone", loc.String())
	return app, nil
}

// HTTPServices exposes the services the JSON API routes to.
func (a *App) HTTPServices() apphttp.Services {
	return apphttp.Services{
		Auth:      a.Auth,
		Expenses:  a.Expenses,
		Budgets:   a.Budgets,
		Goals:     a.Goals,
		Dashboard: a.Dashboard,
		Prices:    a.Prices,
	}
}
