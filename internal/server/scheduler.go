package server

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"smart-parking/internal/logging"
)

// Scheduler runs optimization passes over the current lot on a cron
// schedule. An empty schedule disables it.
type Scheduler struct {
	cron    *cron.Cron
	handler *Handler
	entries int
}

func NewScheduler(schedule string, handler *Handler) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		handler: handler,
	}

	if schedule == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(schedule, s.optimize); err != nil {
		return nil, fmt.Errorf("invalid optimize schedule %q: %w", schedule, err)
	}
	s.entries++
	return s, nil
}

func (s *Scheduler) Enabled() bool {
	return s.entries > 0
}

func (s *Scheduler) Start() {
	if !s.Enabled() {
		return
	}
	s.cron.Start()
	logging.Info(context.Background()).Msg("optimization scheduler started")
}

// Stop halts the schedule and waits for a running pass, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) optimize() {
	lot := s.handler.Lot()
	if lot == nil {
		logging.Debug(context.Background()).Msg("no parking lot yet, skipping optimization")
		return
	}
	s.handler.optimize(context.Background(), lot)
}

// cronLogger forwards cron's own logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logging.Debug(context.Background()).Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logging.Error(context.Background()).Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
