package workers

import (
	"context"
	"log"
	"time"

	"giveflow/internal/models"
)

// Engine is the slice of the disbursement engine the dispatcher drives.
type Engine interface {
	Due(ctx context.Context, limit int) ([]models.Disbursement, error)
	Attempt(ctx context.Context, id uint) error
}

// RetryDispatcher periodically scans for due disbursements and fans the
// attempts out onto the worker pool. The engine re-checks due time and
// status under its own guard, so a row picked up by two scans is attempted
// once.
type RetryDispatcher struct {
	engine    Engine
	pool      *Pool
	clock     Clock
	interval  time.Duration
	batchSize int
}

func NewRetryDispatcher(engine Engine, pool *Pool, clock Clock, interval time.Duration, batchSize int) *RetryDispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RetryDispatcher{
		engine:    engine,
		pool:      pool,
		clock:     clock,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run blocks, dispatching due attempts every interval until the context is
// cancelled.
func (d *RetryDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.DispatchDue(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// DispatchDue runs one scan. Split out from Run so retry timing is testable
// without a real clock.
func (d *RetryDispatcher) DispatchDue(ctx context.Context) int {
	due, err := d.engine.Due(ctx, d.batchSize)
	if err != nil {
		log.Printf("dispatcher: due scan failed: %v", err)
		return 0
	}

	for _, disb := range due {
		id := disb.ID
		d.pool.Submit(func(jobCtx context.Context) {
			if err := d.engine.Attempt(jobCtx, id); err != nil {
				log.Printf("dispatcher: attempt %d: %v", id, err)
			}
		})
	}
	return len(due)
}

// Reverifier is the slice of the payment verifier the sweep drives.
type Reverifier interface {
	VerifyStale(ctx context.Context) (int, error)
}

// RunVerification periodically reconciles transactions whose provider
// callback never arrived.
func RunVerification(ctx context.Context, verifier Reverifier, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := verifier.VerifyStale(ctx); err != nil {
				log.Printf("scheduler: verification sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("scheduler: verification sweep resolved %d transactions", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// PlanRunner is the slice of the recurring service the plan scheduler drives.
type PlanRunner interface {
	RunDue(ctx context.Context) error
}

// RunPlans runs the recurring-plan scan on the same cadence model as the
// retry dispatcher.
func RunPlans(ctx context.Context, runner PlanRunner, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := runner.RunDue(ctx); err != nil {
				log.Printf("scheduler: recurring run failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
