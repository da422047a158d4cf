package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockwise/internal/dto"
)

type AlertSweeper interface {
	Generate(ctx context.Context) (*dto.AlertSweepResult, error)
	SendNotifications(ctx context.Context) (*dto.NotificationResult, error)
}

type SuggestionSweeper interface {
	Generate(ctx context.Context) (*dto.SuggestionSweepResult, error)
}

type Report struct {
	Alerts        *dto.AlertSweepResult      `json:"alerts"`
	Suggestions   *dto.SuggestionSweepResult `json:"suggestions"`
	Notifications *dto.NotificationResult    `json:"notifications"`
}

// Runner drives the low-stock alert and replenishment sweeps.
type Runner struct {
	alerts      AlertSweeper
	suggestions SuggestionSweeper
	interval    time.Duration
	logger      *zap.Logger
}

func NewRunner(alerts AlertSweeper, suggestions SuggestionSweeper, interval time.Duration, logger *zap.Logger) *Runner {
	return &Runner{alerts: alerts, suggestions: suggestions, interval: interval, logger: logger}
}

// RunOnce generates alerts and suggestions concurrently, then dispatches
// notifications for whatever alerts are open and unsent.
func (r *Runner) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.alerts.Generate(gctx)
		if err != nil {
			return fmt.Errorf("alert sweep: %w", err)
		}
		report.Alerts = res
		return nil
	})
	g.Go(func() error {
		res, err := r.suggestions.Generate(gctx)
		if err != nil {
			return fmt.Errorf("suggestion sweep: %w", err)
		}
		report.Suggestions = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	notifications, err := r.alerts.SendNotifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("sending notifications: %w", err)
	}
	report.Notifications = notifications

	return report, nil
}

// Run repeats RunOnce every interval until ctx is cancelled. A zero
// interval disables the scheduler.
func (r *Runner) Run(ctx context.Context) error {
	if r.interval <= 0 {
		r.logger.Info("sweep scheduler disabled")
		return nil
	}

	r.logger.Info("sweep scheduler started", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sweep scheduler stopped")
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	report, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("scheduled sweep failed", zap.Error(err))
		return
	}

	r.logger.Info("scheduled sweep finished",
		zap.Duration("took", time.Since(start)),
		zap.Int("alerts", report.Alerts.Count()),
		zap.Int("suggestions", report.Suggestions.Count()),
		zap.Int("notified", report.Notifications.Sent),
		zap.Int("ruleErrors", len(report.Alerts.Errors)+len(report.Suggestions.Errors)),
	)
}
