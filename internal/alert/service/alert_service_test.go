package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
	"stockwise/internal/infrastructure/mysql"
	"stockwise/internal/testutil"
)

type staticRules []domain.RuleStock

func (r staticRules) ActiveRuleStock(context.Context) ([]domain.RuleStock, error) {
	return r, nil
}

// memAlerts keeps alerts in memory and ignores tx.
type memAlerts struct {
	db *sqlx.DB

	mu        sync.Mutex
	alerts    map[string]*domain.LowStockAlert
	failKey   *domain.StockKey
	markCalls int
}

func newMemAlerts(t *testing.T) *memAlerts {
	return &memAlerts{db: testutil.NewMockTxxDB(t, 20), alerts: map[string]*domain.LowStockAlert{}}
}

func (m *memAlerts) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func (m *memAlerts) open(key domain.StockKey) *domain.LowStockAlert {
	for _, a := range m.alerts {
		if a.Key() == key && !a.IsResolved {
			return a
		}
	}
	return nil
}

func (m *memAlerts) FindOpenByKeyForUpdate(_ context.Context, _ *sqlx.Tx, key domain.StockKey) (*domain.LowStockAlert, error) {
	if m.failKey != nil && *m.failKey == key {
		return nil, errors.New("connection reset")
	}
	if a := m.open(key); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *memAlerts) Insert(_ context.Context, _ *sqlx.Tx, a domain.LowStockAlert) error {
	if m.open(a.Key()) != nil {
		return apperrors.NewConflictError("open alert exists")
	}
	m.alerts[a.ID] = &a
	return nil
}

func (m *memAlerts) Update(_ context.Context, _ *sqlx.Tx, a domain.LowStockAlert) error {
	m.alerts[a.ID] = &a
	return nil
}

func (m *memAlerts) Resolve(_ context.Context, _ *sqlx.Tx, id string, at time.Time) error {
	a := m.alerts[id]
	a.IsResolved = true
	a.ResolvedAt = &at
	return nil
}

func (m *memAlerts) ResolveByID(_ context.Context, id string, at time.Time) (*domain.LowStockAlert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("alert " + id + " not found")
	}
	if !a.IsResolved {
		a.IsResolved = true
		a.ResolvedAt = &at
	}
	cp := *a
	return &cp, nil
}

func (m *memAlerts) FindUnsent(context.Context) ([]domain.LowStockAlert, error) {
	var out []domain.LowStockAlert
	for _, a := range m.alerts {
		if !a.IsResolved && !a.NotificationSent {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAlerts) MarkSent(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	m.alerts[id].NotificationSent = true
	m.alerts[id].NotificationSentAt = &at
	return nil
}

func (m *memAlerts) List(context.Context, dto.AlertFilter) ([]domain.LowStockAlert, error) {
	return nil, nil
}

func (m *memAlerts) Summary(context.Context) (*dto.AlertSummary, error) {
	return &dto.AlertSummary{}, nil
}

type funcNotifier func(domain.LowStockAlert) error

func (f funcNotifier) Notify(_ context.Context, a domain.LowStockAlert) error { return f(a) }

func ruleStock(variant int64, min, current int) domain.RuleStock {
	return domain.RuleStock{
		Rule:       domain.ReorderRule{ID: variant, VariantID: variant, WarehouseID: 1, MinQty: min, MaxQty: min * 5, IsActive: true},
		CurrentQty: current,
	}
}

func newTestAlertService(t *testing.T, rules RuleSnapshotter, alerts *memAlerts, n Notifier) *AlertService {
	t.Helper()
	svc := NewAlertService(rules, alerts, n, zap.NewNop(), mysql.TxSettings{Timeout: time.Second, MaxAttempts: 3}, 4)
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("alert-%d", seq)
	}
	return svc
}

func TestGenerate_SeverityBands(t *testing.T) {
	alerts := newMemAlerts(t)
	rules := staticRules{ruleStock(1, 20, 3), ruleStock(2, 20, 8), ruleStock(3, 20, 15), ruleStock(4, 20, 25)}
	svc := newTestAlertService(t, rules, alerts, funcNotifier(func(domain.LowStockAlert) error { return nil }))

	res, err := svc.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 3, res.Count())
	assert.Empty(t, res.Errors)

	want := map[int64]domain.Severity{1: domain.SeverityCritical, 2: domain.SeverityWarning, 3: domain.SeverityInfo}
	for variant, sev := range want {
		a := alerts.open(domain.StockKey{VariantID: variant, WarehouseID: 1})
		require.NotNil(t, a, "variant %d", variant)
		assert.Equal(t, sev, a.Severity)
		assert.Equal(t, 20-a.CurrentQty, a.ShortageQty)
		assert.False(t, a.NotificationSent)
	}
	assert.Nil(t, alerts.open(domain.StockKey{VariantID: 4, WarehouseID: 1}))
}

func TestGenerate_IsIdempotentAndUpdatesInPlace(t *testing.T) {
	alerts := newMemAlerts(t)
	svc := newTestAlertService(t, staticRules{ruleStock(1, 20, 8)}, alerts, nil)

	_, err := svc.Generate(context.Background())
	require.NoError(t, err)

	svc.rules = staticRules{ruleStock(1, 20, 2)}
	res, err := svc.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, alerts.alerts, 1)
	a := alerts.open(domain.StockKey{VariantID: 1, WarehouseID: 1})
	assert.Equal(t, domain.SeverityCritical, a.Severity)
	assert.Equal(t, 2, a.CurrentQty)
}

func TestGenerate_ResolvesRecoveredKeys(t *testing.T) {
	alerts := newMemAlerts(t)
	svc := newTestAlertService(t, staticRules{ruleStock(1, 20, 8)}, alerts, nil)

	_, err := svc.Generate(context.Background())
	require.NoError(t, err)

	svc.rules = staticRules{ruleStock(1, 20, 21)}
	res, err := svc.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Resolved)
	assert.Nil(t, alerts.open(domain.StockKey{VariantID: 1, WarehouseID: 1}))
	assert.True(t, alerts.alerts["alert-1"].IsResolved)
}

func TestGenerate_RuleFailureIsCollected(t *testing.T) {
	alerts := newMemAlerts(t)
	alerts.failKey = &domain.StockKey{VariantID: 1, WarehouseID: 1}
	svc := newTestAlertService(t, staticRules{ruleStock(1, 20, 3), ruleStock(2, 20, 3)}, alerts, nil)

	res, err := svc.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "1:1", res.Errors[0].RuleKey)
}

func TestGenerate_ZeroMinIsCritical(t *testing.T) {
	alerts := newMemAlerts(t)
	svc := newTestAlertService(t, staticRules{ruleStock(1, 0, 0)}, alerts, nil)

	_, err := svc.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, alerts.open(domain.StockKey{VariantID: 1, WarehouseID: 1}).Severity)
}

func TestSendNotifications_IsolatesFailures(t *testing.T) {
	alerts := newMemAlerts(t)
	svc := newTestAlertService(t, staticRules{ruleStock(1, 20, 3), ruleStock(2, 20, 3), ruleStock(3, 20, 3)}, alerts,
		funcNotifier(func(a domain.LowStockAlert) error {
			if a.VariantID == 2 {
				return errors.New("webhook down")
			}
			return nil
		}))

	_, err := svc.Generate(context.Background())
	require.NoError(t, err)

	res, err := svc.SendNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, alerts.open(domain.StockKey{VariantID: 2, WarehouseID: 1}).NotificationSent)
	assert.True(t, alerts.open(domain.StockKey{VariantID: 1, WarehouseID: 1}).NotificationSent)

	// Only the failed one is retried.
	svc.notifier = funcNotifier(func(domain.LowStockAlert) error { return nil })
	res, err = svc.SendNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 3, alerts.markCalls)
}

func TestResolve(t *testing.T) {
	alerts := newMemAlerts(t)
	svc := newTestAlertService(t, staticRules{ruleStock(1, 20, 3)}, alerts, nil)
	_, err := svc.Generate(context.Background())
	require.NoError(t, err)

	a, err := svc.Resolve(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.True(t, a.IsResolved)

	again, err := svc.Resolve(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, a.ResolvedAt, again.ResolvedAt)

	_, err = svc.Resolve(context.Background(), "missing")
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}
