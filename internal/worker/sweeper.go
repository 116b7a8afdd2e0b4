package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tipid/internal/log"
)

// SessionPruner drops expired sessions.
type SessionPruner interface {
	Prune(ctx context.Context) (int64, error)
}

// SweeperConfig holds configuration for the sweeper
type SweeperConfig struct {
	// SweepInterval is how often lapsed budgets are finalized (default: 15m)
	SweepInterval time.Duration

	// PruneInterval is how often expired sessions are deleted (default: 1h)
	PruneInterval time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		SweepInterval: 15 * time.Minute,
		PruneInterval: time.Hour,
	}
}

// Sweeper periodically finalizes every owner's lapsed budgets, so goals
// are credited even for users who never open the dashboard.
type Sweeper struct {
	budgets BudgetFinalizer
	pruner  SessionPruner // optional
	config  SweeperConfig
	logger  *log.Logger
	now     func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(budgets BudgetFinalizer, pruner SessionPruner, config SweeperConfig, logger *log.Logger) *Sweeper {
	def := DefaultSweeperConfig()
	if config.SweepInterval <= 0 {
		config.SweepInterval = def.SweepInterval
	}
	if config.PruneInterval <= 0 {
		config.PruneInterval = def.PruneInterval
	}
	return &Sweeper{
		budgets: budgets,
		pruner:  pruner,
		config:  config,
		logger:  logger.WithComponent(log.ComponentWorker),
		now:     time.Now,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Sweeper started",
		"sweep_interval", s.config.SweepInterval,
		"prune_interval", s.config.PruneInterval)
	return nil
}

// Stop stops the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run sweeps until ctx is done. It suits errgroup.Go.
func (s *Sweeper) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	sweepTicker := time.NewTicker(s.config.SweepInterval)
	defer sweepTicker.Stop()

	pruneTicker := time.NewTicker(s.config.PruneInterval)
	defer pruneTicker.Stop()

	// Sweep immediately on startup to catch up after downtime
	s.SweepOnce(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			s.SweepOnce(ctx)
		case <-pruneTicker.C:
			s.pruneSessions(ctx)
		}
	}
}

// SweepOnce finalizes lapsed budgets of every owner and returns how many
// were settled.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	start := s.now()
	n, err := s.budgets.SweepAll(ctx, start)
	if err != nil {
		s.logger.ErrorContext(ctx, "Budget sweep failed",
			log.FieldOperation, log.OpSweep, log.FieldError, err, "finalized", n)
		return n
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Budget sweep completed",
			log.FieldOperation, log.OpSweep, "finalized", n)
	}
	return n
}

func (s *Sweeper) pruneSessions(ctx context.Context) {
	if s.pruner == nil {
		return
	}
	n, err := s.pruner.Prune(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Session prune failed", log.FieldError, err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Pruned expired sessions", "count", n)
	}
}
