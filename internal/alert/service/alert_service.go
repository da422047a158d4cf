package service

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	"stockwise/internal/infrastructure/mysql"
)

type RuleSnapshotter interface {
	ActiveRuleStock(ctx context.Context) ([]domain.RuleStock, error)
}

type AlertRepository interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	FindOpenByKeyForUpdate(ctx context.Context, tx *sqlx.Tx, key domain.StockKey) (*domain.LowStockAlert, error)
	Insert(ctx context.Context, tx *sqlx.Tx, a domain.LowStockAlert) error
	Update(ctx context.Context, tx *sqlx.Tx, a domain.LowStockAlert) error
	Resolve(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) error
	ResolveByID(ctx context.Context, id string, at time.Time) (*domain.LowStockAlert, error)
	FindUnsent(ctx context.Context) ([]domain.LowStockAlert, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, f dto.AlertFilter) ([]domain.LowStockAlert, error)
	Summary(ctx context.Context) (*dto.AlertSummary, error)
}

// Notifier delivers one alert to the outside world.
type Notifier interface {
	Notify(ctx context.Context, alert domain.LowStockAlert) error
}

type AlertService struct {
	rules       RuleSnapshotter
	alerts      AlertRepository
	notifier    Notifier
	logger      *zap.Logger
	txSettings  mysql.TxSettings
	concurrency int
	now         func() time.Time
	newID       func() string
}

func NewAlertService(
	rules RuleSnapshotter,
	alerts AlertRepository,
	notifier Notifier,
	logger *zap.Logger,
	txSettings mysql.TxSettings,
	concurrency int,
) *AlertService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AlertService{
		rules:       rules,
		alerts:      alerts,
		notifier:    notifier,
		logger:      logger,
		txSettings:  txSettings,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

type alertOutcome int

const (
	alertUnchanged alertOutcome = iota
	alertCreated
	alertUpdated
	alertResolved
)

// Generate reconciles open alerts with the current stock of every active
// rule. Each rule runs in its own transaction; a failing rule is recorded
// and the sweep carries on.
func (s *AlertService) Generate(ctx context.Context) (*dto.AlertSweepResult, error) {
	snapshot, err := s.rules.ActiveRuleStock(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.AlertSweepResult{Errors: []dto.RuleError{}}
	for _, rs := range snapshot {
		var outcome alertOutcome
		err := mysql.InTxx(ctx, s.alerts, s.txSettings, s.logger, func(ctx context.Context, tx *sqlx.Tx) error {
			o, err := s.reconcile(ctx, tx, rs)
			outcome = o
			return err
		})
		if err != nil {
			s.logger.Error("alert reconciliation failed", zap.String("ruleKey", rs.Rule.Key().String()), zap.Error(err))
			result.Errors = append(result.Errors, dto.RuleError{RuleKey: rs.Rule.Key().String(), Message: err.Error()})
			continue
		}

		switch outcome {
		case alertCreated:
			result.Created++
		case alertUpdated:
			result.Updated++
		case alertResolved:
			result.Resolved++
		}
	}

	s.logger.Info("alert sweep finished",
		zap.Int("rules", len(snapshot)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("resolved", result.Resolved),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *AlertService) reconcile(ctx context.Context, tx *sqlx.Tx, rs domain.RuleStock) (alertOutcome, error) {
	open, err := s.alerts.FindOpenByKeyForUpdate(ctx, tx, rs.Rule.Key())
	if err != nil {
		return alertUnchanged, err
	}

	now := s.now()

	if !rs.Breached() {
		if open == nil {
			return alertUnchanged, nil
		}
		if err := s.alerts.Resolve(ctx, tx, open.ID, now); err != nil {
			return alertUnchanged, err
		}
		return alertResolved, nil
	}

	if open == nil {
		if err := s.alerts.Insert(ctx, tx, domain.NewLowStockAlert(s.newID(), rs, now)); err != nil {
			return alertUnchanged, err
		}
		return alertCreated, nil
	}

	open.Refresh(rs, now)
	if err := s.alerts.Update(ctx, tx, *open); err != nil {
		return alertUnchanged, err
	}
	return alertUpdated, nil
}

// SendNotifications dispatches every open, unsent alert with bounded
// concurrency. A failed delivery leaves the alert unsent for the next run.
func (s *AlertService) SendNotifications(ctx context.Context) (*dto.NotificationResult, error) {
	pending, err := s.alerts.FindUnsent(ctx)
	if err != nil {
		return nil, err
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, a := range pending {
		a := a
		g.Go(func() error {
			logger := s.logger.With(zap.String("alertId", a.ID), zap.String("key", a.Key().String()))

			if err := s.notifier.Notify(gctx, a); err != nil {
				logger.Warn("alert notification failed", zap.Error(err))
				failed.Add(1)
				return nil
			}
			if err := s.alerts.MarkSent(gctx, a.ID, s.now()); err != nil {
				logger.Error("marking alert notified failed", zap.Error(err))
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := &dto.NotificationResult{Sent: int(sent.Load()), Failed: int(failed.Load())}
	s.logger.Info("alert notifications dispatched", zap.Int("sent", result.Sent), zap.Int("failed", result.Failed))
	return result, nil
}

func (s *AlertService) Resolve(ctx context.Context, id string) (*domain.LowStockAlert, error) {
	return s.alerts.ResolveByID(ctx, id, s.now())
}

func (s *AlertService) List(ctx context.Context, f dto.AlertFilter) ([]domain.LowStockAlert, error) {
	return s.alerts.List(ctx, f)
}

func (s *AlertService) Summary(ctx context.Context) (*dto.AlertSummary, error) {
	return s.alerts.Summary(ctx)
}
