/*
scheduler.go - Automated accrual and carry-forward scheduler

PURPOSE:
  Periodically runs the monthly accrual job and, after year end, the
  carry-forward job. Both jobs are idempotent (ledger mutation keys),
  and the scheduler additionally skips months already recorded in
  batch_runs so restarts don't re-walk the whole workforce.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Accrues for the previous calendar month once it has fully elapsed
  - Carries forward year N once January of year N+1 has begun
  - Records every run for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBatchScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerAccrual / TriggerCarryForward (manual runs)
  - leave/accrual.go: The jobs themselves
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/luminahr/leave-engine/leave"
	"github.com/luminahr/leave-engine/store/sqlite"
)

// BatchScheduler drives the accrual and carry-forward jobs.
type BatchScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBatchScheduler creates a new scheduler.
func NewBatchScheduler(store *sqlite.Store, handler *Handler) *BatchScheduler {
	return &BatchScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BatchScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	log.Printf("[Scheduler] Started with check interval: %v", bs.CheckInterval)
}

// Stop stops the scheduler.
func (bs *BatchScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (bs *BatchScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.checkAndProcess()

	for {
		select {
		case <-bs.ticker.C:
			bs.checkAndProcess()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BatchScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now().UTC()

	log.Printf("[Scheduler] Checking batch jobs at %v", now.Format(time.RFC3339))

	// Accrue for the last fully elapsed month.
	prev := now.AddDate(0, -1, 0)
	bs.runAccrual(ctx, prev.Year(), prev.Month())

	// Once a new year has begun, carry the old year forward.
	if now.Month() == time.January {
		bs.runCarryForward(ctx, now.Year()-1)
	}
}

func (bs *BatchScheduler) runAccrual(ctx context.Context, year int, month time.Month) {
	done, err := bs.Store.BatchRunExists(ctx, leave.JobAccrual, year, int(month))
	if err != nil {
		log.Printf("[Scheduler] Error checking accrual run %d-%02d: %v", year, month, err)
		return
	}
	if done {
		return
	}

	run, err := bs.Handler.Accrual.Accrue(ctx, year, month)
	if err != nil {
		log.Printf("[Scheduler] Accrual %d-%02d failed: %v", year, month, err)
		return
	}
	if err := bs.Store.SaveBatchRun(ctx, *run); err != nil {
		log.Printf("[Scheduler] Error recording accrual run: %v", err)
		return
	}
	log.Printf("[Scheduler] Accrual %d-%02d: %d processed, %d applied, %d skipped, %d failed",
		year, month, run.Processed, run.Applied, run.Skipped, len(run.Failures))
}

func (bs *BatchScheduler) runCarryForward(ctx context.Context, fromYear int) {
	done, err := bs.Store.BatchRunExists(ctx, leave.JobCarryForward, fromYear, 0)
	if err != nil {
		log.Printf("[Scheduler] Error checking carry-forward run %d: %v", fromYear, err)
		return
	}
	if done {
		return
	}

	run, err := bs.Handler.Accrual.CarryForward(ctx, fromYear)
	if err != nil {
		log.Printf("[Scheduler] Carry-forward %d failed: %v", fromYear, err)
		return
	}
	if err := bs.Store.SaveBatchRun(ctx, *run); err != nil {
		log.Printf("[Scheduler] Error recording carry-forward run: %v", err)
		return
	}
	log.Printf("[Scheduler] Carry-forward %d: %d processed, %d applied, %d skipped, %d failed",
		fromYear, run.Processed, run.Applied, run.Skipped, len(run.Failures))
}

// RunNow triggers an immediate check (for testing/admin).
func (bs *BatchScheduler) RunNow() {
	bs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (bs *BatchScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(bs.CheckInterval)
}
