/*
scheduler.go - Automated carryover refresh

PURPOSE:
  Periodically recomputes the carryover of the last closed year for every
  employee with a contract, so retroactive edits that invalidated rows are
  repaired before the next balance request pays for the recomputation.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - One employee failing never stops the others (hours.RefreshCarryovers)

CONFIGURATION:
  - CheckInterval: How often to refresh (default: 1 hour)
  - Enabled: Whether the refresher is active (default: true)

USAGE:
  refresher := NewCarryoverRefresher(engine, logger)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - handlers.go: RefreshCarryover endpoint (manual refresh)
  - hours/carryover.go: Carryover Manager
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
)

// RefreshObserver receives the number of rows refreshed per run.
type RefreshObserver interface {
	ObserveRefresh(rows int)
}

// CarryoverRefresher keeps last year's carryover rows current.
type CarryoverRefresher struct {
	Engine        *hours.Engine
	Logger        *slog.Logger
	Observer      RefreshObserver
	CheckInterval time.Duration
	Enabled       bool
	// Now picks the year to refresh.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCarryoverRefresher creates a new refresher.
func NewCarryoverRefresher(engine *hours.Engine, logger *slog.Logger) *CarryoverRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CarryoverRefresher{
		Engine:        engine,
		Logger:        logger.With(slog.String("component", "carryover_refresher")),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the refresher.
func (cr *CarryoverRefresher) Start() {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if !cr.Enabled || cr.CheckInterval <= 0 {
		cr.Logger.Info("disabled, not starting")
		return
	}

	cr.ticker = time.NewTicker(cr.CheckInterval)
	cr.wg.Add(1)

	go cr.run()

	cr.Logger.Info("started", slog.Duration("interval", cr.CheckInterval))
}

// Stop stops the refresher and waits for a running pass to finish.
func (cr *CarryoverRefresher) Stop() {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.ticker != nil {
		cr.ticker.Stop()
		close(cr.stop)
		cr.wg.Wait()
		cr.ticker = nil
		cr.Logger.Info("stopped")
	}
}

func (cr *CarryoverRefresher) run() {
	defer cr.wg.Done()

	// Run immediately on start
	cr.RunOnce(context.Background())

	for {
		select {
		case <-cr.ticker.C:
			cr.RunOnce(context.Background())
		case <-cr.stop:
			return
		}
	}
}

// RunOnce refreshes the year before Now and returns how many employees
// succeeded.
func (cr *CarryoverRefresher) RunOnce(ctx context.Context) int {
	year := cr.Now().Year() - 1

	refreshed, err := cr.Engine.RefreshCarryovers(ctx, year)
	if cr.Observer != nil {
		cr.Observer.ObserveRefresh(refreshed)
	}

	var batch *generic.BatchError
	switch {
	case errors.As(err, &batch):
		for employee, e := range batch.Errors {
			cr.Logger.Warn("carryover refresh failed",
				slog.String("employee", string(employee)),
				slog.Int("year", year),
				slog.Any("error", e))
		}
	case err != nil:
		cr.Logger.Error("carryover refresh aborted", slog.Int("year", year), slog.Any("error", err))
		return refreshed
	}

	if refreshed > 0 {
		cr.Logger.Info("carryover refreshed", slog.Int("year", year), slog.Int("employees", refreshed))
	}
	return refreshed
}
