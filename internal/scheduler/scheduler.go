package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/weather-feed-etl/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// Runner performs one pipeline run.
type Runner interface {
	RunOnce(ctx context.Context) (pipeline.RunSummary, error)
}

// Scheduler triggers pipeline runs on a cron schedule. A run still in progress
// when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	runner Runner
	logger *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	initial sync.WaitGroup
}

// New validates spec (standard five-field cron or a descriptor such as
// "@every 10m") and prepares a scheduler for runner.
func New(spec string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid FETCH_SCHEDULE %q: %w", spec, err)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return &Scheduler{cron: c, spec: spec, runner: runner, logger: logger}, nil
}

// Start runs the pipeline once immediately, then on every tick. Runs are
// cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger: s.logger})).Then(cron.FuncJob(s.run))
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("schedule pipeline: %w", err)
	}

	// The initial run shares the wrapped job so a tick that lands during it
	// is skipped rather than overlapping.
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		job.Run()
	}()
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec)
	return nil
}

// Stop halts the schedule, cancels an in-flight run, and waits for it to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.initial.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}
	// RunOnce logs its own outcome.
	_, _ = s.runner.RunOnce(s.ctx)
	if entries := s.cron.Entries(); len(entries) > 0 {
		s.logger.Debug("next run scheduled", "at", entries[0].Next)
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
