// Package scheduler runs the periodic scanner refresh and prediction sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"scry-scanner/internal/domain"
	"scry-scanner/internal/prediction"
	"scry-scanner/internal/scanner"
)

// Runner executes jobs on fixed intervals with a shared base context.
type Runner struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	baseCtx context.Context
}

// New creates a runner. Jobs receive baseCtx.
func New(baseCtx context.Context, logger zerolog.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger}
	return &Runner{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Every schedules job every interval. Intervals under a second run each second.
func (r *Runner) Every(name string, interval time.Duration, job func(context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}
	_, err := r.cron.AddFunc("@every "+interval.String(), func() {
		start := time.Now()
		job(r.baseCtx)
		r.logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	r.logger.Info().Str("job", name).Dur("interval", interval).Msg("job scheduled")
	return nil
}

// Start begins running scheduled jobs in the background.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info().Msg("scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("scheduler stopped")
}

// RefreshJob fast-loads the scanner and publishes the set when it was fetched
// rather than served from cache. publish may be nil.
func RefreshJob(s *scanner.Scanner, publish func([]domain.ScannedToken)) func(context.Context) {
	return func(ctx context.Context) {
		res := s.FastLoad(ctx)
		if res.Outcome == scanner.LoadFetched && publish != nil {
			publish(res.Tokens)
		}
	}
}

// SweepJob settles expired predictions.
func SweepJob(settler *prediction.Settler, logger zerolog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		if _, err := settler.Settle(ctx); err != nil {
			logger.Error().Err(err).Msg("prediction sweep failed")
		}
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
