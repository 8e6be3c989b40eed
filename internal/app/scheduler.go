package app

import (
	"context"
	"errors"
	"time"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/usecase"
	"flight-alert-service/pkg/logger"
)

// PassRunner runs one orchestration pass
type PassRunner interface {
	RunPass(ctx context.Context) (*entity.RunReport, error)
}

// Scheduler runs a pass at startup and then on every tick
type Scheduler struct {
	runner   PassRunner
	interval time.Duration
	logger   logger.Logger
}

// NewScheduler creates a scheduler. A non-positive interval runs a single pass.
func NewScheduler(runner PassRunner, interval time.Duration, logger logger.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.runOnce(ctx)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Price check scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	report, err := s.runner.RunPass(ctx)
	switch {
	case errors.Is(err, usecase.ErrPassInProgress):
		s.logger.Warn("Previous price check still running, skipping tick")
	case err != nil:
		s.logger.Error("Price check pass failed", "error", err)
	default:
		s.logger.Info("Price check pass completed",
			"runId", report.RunID,
			"alerts", report.AlertsQueued,
			"next", time.Now().Add(s.interval).Format(time.RFC3339))
	}
}
