// Package cronrunner schedules background jobs on cron expressions.
package cronrunner

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/liveboard/pkg/logger"
)

// Runner runs jobs with a base context that is cancelled on Stop.
type Runner struct {
	cron    *cron.Cron
	logger  logger.Logger
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New constructs a Runner. Specs accept an optional seconds field and
// descriptors such as "@every 1m".
func New(baseCtx context.Context, l logger.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if l == nil {
		l = logger.Nop()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	return &Runner{
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		logger:  l,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Add schedules job under name. Runs of the same job never overlap.
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error(r.baseCtx, "cron job panicked", logger.String("job", name), logger.Any("panic", p))
			}
		}()
		job(r.baseCtx)
	}))
	id, err := r.cron.AddJob(spec, wrapped)
	if err != nil {
		return 0, fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return id, nil
}

// Start begins running scheduled jobs.
func (r *Runner) Start() {
	r.logger.Info(r.baseCtx, "cron started", logger.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop cancels the base context and waits for running jobs.
func (r *Runner) Stop() {
	r.cancel()
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info(context.Background(), "cron stopped")
}
