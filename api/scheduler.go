/*
scheduler.go - Background job scheduler

PURPOSE:
  Runs the daily batch chain without operator intervention:
    auto_close   sweep active shifts past their cutoff
    adjustments  price recently completed shifts
    payroll      build statements for schedules paying out today

DESIGN:
  - Background goroutine with a configurable check interval
  - Each tick targets yesterday and today; the per-(job, date) completion
    guard in the job_runs table makes repeats cheap
  - Adjustments look back three days so shifts closed late (auto-close,
    manual catch-up) are still priced after their day was first marked done
  - Jobs run in chain order; a failed job is recorded and the chain
    continues, since each job is idempotent and the next tick retries

CONFIGURATION:
  - CheckInterval: How often to check (default: 15 minutes)
  - Enabled: Whether scheduler is active (default: true)
  - Location: Time zone that defines "today" for the chain (default: UTC)

USAGE:
  scheduler := NewJobScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunJobs endpoint (manual trigger with force)
  - payroll/engine.go: adjustment pricing
  - payroll/builder.go: statement building
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/shift-engine/core"
	"github.com/warp/shift-engine/lifecycle"
	"github.com/warp/shift-engine/payroll"
)

// adjustmentLookbackDays is how far behind the target date the pricing
// window starts. Covers auto-closed overnight shifts and late closes.
const adjustmentLookbackDays = 3

// JobScheduler drives the daily auto_close -> adjustments -> payroll chain.
type JobScheduler struct {
	Store         core.TxStore
	Coordinator   *lifecycle.Coordinator
	Engine        *payroll.AdjustmentEngine
	Builder       *payroll.PeriodBuilder
	CheckInterval time.Duration
	Enabled       bool

	// Location decides what "today" means on each tick. Nil is UTC; a
	// deployment far east of it sets its own zone so paydays are not
	// built a day late.
	Location *time.Location

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewJobScheduler creates a new scheduler sharing the handler's engines.
func NewJobScheduler(store core.TxStore, handler *Handler) *JobScheduler {
	return &JobScheduler{
		Store:         store,
		Coordinator:   handler.Coordinator,
		Engine:        handler.Engine,
		Builder:       handler.Builder,
		CheckInterval: 15 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (js *JobScheduler) Start() {
	js.mu.Lock()
	defer js.mu.Unlock()

	if !js.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	js.ticker = time.NewTicker(js.CheckInterval)
	js.wg.Add(1)

	go js.run()

	log.Printf("[Scheduler] Started with check interval: %v", js.CheckInterval)
}

// Stop stops the scheduler.
func (js *JobScheduler) Stop() {
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.ticker != nil {
		js.ticker.Stop()
		close(js.stop)
		js.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (js *JobScheduler) run() {
	defer js.wg.Done()

	// Run immediately on start
	js.checkAndProcess()

	for {
		select {
		case <-js.ticker.C:
			js.checkAndProcess()
		case <-js.stop:
			return
		}
	}
}

func (js *JobScheduler) checkAndProcess() {
	ctx := context.Background()

	for _, date := range js.targetDates(time.Now()) {
		runs := js.RunNow(ctx, date, false)
		for _, run := range runs {
			log.Printf("[Scheduler] %s %s: %s (created=%d updated=%d skipped=%d errors=%d)",
				run.Job, run.TargetDate, run.Status, run.Created, run.Updated, run.Skipped, len(run.Errors))
		}
	}
}

// targetDates returns the dates one tick processes, seen in the
// scheduler's zone. Yesterday first: overnight shifts cross the date
// line, and a payday missed near midnight still gets its statements
// built.
func (js *JobScheduler) targetDates(now time.Time) []core.Date {
	loc := js.Location
	if loc == nil {
		loc = time.UTC
	}
	today := core.DateOf(now.In(loc))
	return []core.Date{today.AddDays(-1), today}
}

// RunNow executes the job chain for one target date and returns the runs
// it recorded. Jobs already completed for the date are skipped unless
// force is set; forced re-runs rely on every job writing idempotently.
func (js *JobScheduler) RunNow(ctx context.Context, date core.Date, force bool) []core.JobRun {
	var runs []core.JobRun
	for _, job := range []core.JobName{core.JobAutoClose, core.JobAdjustments, core.JobPayroll} {
		if !force {
			done, err := js.Store.IsJobComplete(ctx, job, date)
			if err != nil {
				log.Printf("[Scheduler] Error checking %s for %s: %v", job, date, err)
				continue
			}
			if done {
				continue
			}
		}
		runs = append(runs, js.runJob(ctx, job, date))
	}
	return runs
}

func (js *JobScheduler) runJob(ctx context.Context, job core.JobName, date core.Date) core.JobRun {
	run := core.JobRun{
		ID:         core.NewID(),
		Job:        job,
		TargetDate: date,
		StartedAt:  time.Now().UTC(),
		Status:     core.JobRunning,
	}
	if err := js.Store.CreateJobRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Error recording %s run: %v", job, err)
	}

	var err error
	switch job {
	case core.JobAutoClose:
		var result lifecycle.AutoCloseResult
		// Cutoffs are absolute instants; the sweep always measures
		// against now, whatever date the run is booked under.
		result, err = js.Coordinator.AutoClose(ctx, time.Now())
		run.Created = len(result.Closed)
		run.Skipped = result.Skipped
		run.Errors = result.Errors
	case core.JobAdjustments:
		var result payroll.AdjustmentResult
		result, err = js.Engine.ProcessWindow(ctx, date.AddDays(-adjustmentLookbackDays), date)
		run.Created = result.Created
		run.Updated = result.Updated
		run.Skipped = result.SkippedDuplicate
		run.Errors = result.Errors
	case core.JobPayroll:
		var result payroll.BuildResult
		result, err = js.Builder.BuildForDate(ctx, date)
		run.Created = result.EntriesCreated
		run.Updated = result.EntriesUpdated
		run.Skipped = result.EntriesUnchanged + len(result.SkippedObjects) + len(result.SkippedEntries)
		run.Errors = append(run.Errors, result.Errors...)
		run.Errors = append(run.Errors, result.SkippedObjects...)
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = core.JobFailed
		run.Errors = append(run.Errors, core.NewRunError(string(job), err))
	} else {
		run.Status = core.JobCompleted
	}
	if ferr := js.Store.FinishJobRun(ctx, run); ferr != nil {
		log.Printf("[Scheduler] Error finishing %s run: %v", job, ferr)
	}
	return run
}
