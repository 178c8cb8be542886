package cron

import (
	"context"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context)

type entry struct {
	name     string
	schedule Schedule
	job      Job
}

// Runner fires registered jobs on their cron schedules until its context is
// cancelled. Overlapping runs of the same job are not prevented; jobs must
// tolerate concurrent invocation.
type Runner struct {
	entries []entry
	logger  log.Logger
	now     func() time.Time
}

// NewRunner creates an empty scheduler runner.
func NewRunner(logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNop()
	}

	return &Runner{logger: logger, now: time.Now}
}

// Add registers a named job on the given schedule.
func (runner *Runner) Add(name string, schedule Schedule, job Job) {
	if schedule == nil || job == nil {
		return
	}

	runner.entries = append(runner.entries, entry{name: name, schedule: schedule, job: job})
}

// Run blocks, firing each job at its scheduled times, until ctx is done.
func (runner *Runner) Run(ctx context.Context) {
	for _, e := range runner.entries {
		go runner.runEntry(ctx, e)
	}

	<-ctx.Done()
}

func (runner *Runner) runEntry(ctx context.Context, e entry) {
	for {
		next, err := e.schedule.Next(runner.now())
		if err != nil {
			runner.logger.Log(ctx, log.LevelError, "cron entry has no next run, stopping",
				log.String("entry", e.name), log.Err(err))

			return
		}

		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
			e.job(ctx)
		}
	}
}
