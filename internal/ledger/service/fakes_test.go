package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"stockwise/internal/domain"
	apperrors "stockwise/internal/errors"
	"stockwise/internal/testutil"
)

// memStore is an in-memory ledger. Its repositories ignore tx and apply the
// same guards as the MySQL statements.
type memStore struct {
	balances     map[domain.StockKey]*domain.StockBalance
	lots         map[string]*domain.Lot
	reservations map[string]*domain.Reservation
	resOrder     []string
	lines        map[int64]*domain.SalesOrderLine
	variants     map[int64]*domain.ProductVariant

	lockErrs []error
}

func newMemStore() *memStore {
	return &memStore{
		balances:     map[domain.StockKey]*domain.StockBalance{},
		lots:         map[string]*domain.Lot{},
		reservations: map[string]*domain.Reservation{},
		lines:        map[int64]*domain.SalesOrderLine{},
		variants:     map[int64]*domain.ProductVariant{},
	}
}

func (m *memStore) addBalance(key domain.StockKey, onHand, reserved int) {
	m.balances[key] = &domain.StockBalance{VariantID: key.VariantID, WarehouseID: key.WarehouseID, QtyOnHand: onHand, QtyReserved: reserved}
}

func (m *memStore) addLot(lot domain.Lot) {
	l := lot
	m.lots[l.ID] = &l
}

func (m *memStore) addLine(line domain.SalesOrderLine) {
	l := line
	m.lines[l.ID] = &l
}

func (m *memStore) activeReservations(orderID int64) []domain.Reservation {
	var out []domain.Reservation
	for _, id := range m.resOrder {
		r := m.reservations[id]
		if r.OrderID == orderID && r.Status == domain.ReservationActive {
			out = append(out, *r)
		}
	}
	return out
}

type memBalances struct{ *memStore }

func (m memBalances) FindByKey(_ context.Context, key domain.StockKey) (*domain.StockBalance, error) {
	b, ok := m.balances[key]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("stock balance %s not found", key))
	}
	cp := *b
	return &cp, nil
}

func (m memBalances) SumByVariant(_ context.Context, variantID int64) (*domain.StockBalance, error) {
	sum := domain.StockBalance{VariantID: variantID}
	for _, b := range m.balances {
		if b.VariantID == variantID {
			sum.QtyOnHand += b.QtyOnHand
			sum.QtyReserved += b.QtyReserved
		}
	}
	return &sum, nil
}

func (m memBalances) FindByVariantIDs(_ context.Context, ids []int64, warehouseID int64) ([]domain.StockBalance, error) {
	var out []domain.StockBalance
	for _, id := range ids {
		if b, ok := m.balances[domain.StockKey{VariantID: id, WarehouseID: warehouseID}]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m memBalances) FindByKeyForUpdate(ctx context.Context, _ *sql.Tx, key domain.StockKey) (*domain.StockBalance, error) {
	if len(m.lockErrs) > 0 {
		err := m.lockErrs[0]
		m.lockErrs = m.lockErrs[1:]
		return nil, err
	}
	return m.FindByKey(ctx, key)
}

func (m memBalances) EnsureForUpdate(ctx context.Context, tx *sql.Tx, key domain.StockKey) (*domain.StockBalance, error) {
	if _, ok := m.balances[key]; !ok {
		m.addBalance(key, 0, 0)
	}
	return m.FindByKeyForUpdate(ctx, tx, key)
}

func (m memBalances) AddReserved(_ context.Context, _ *sql.Tx, key domain.StockKey, delta int) error {
	b, ok := m.balances[key]
	if !ok || b.QtyReserved+delta < 0 || b.QtyReserved+delta > b.QtyOnHand {
		return apperrors.NewConflictError("reserved out of range")
	}
	b.QtyReserved += delta
	return nil
}

func (m memBalances) AddOnHand(_ context.Context, _ *sql.Tx, key domain.StockKey, delta int) error {
	b, ok := m.balances[key]
	if !ok || b.QtyOnHand+delta < b.QtyReserved {
		return apperrors.NewConflictError("on hand below reserved")
	}
	b.QtyOnHand += delta
	return nil
}

type memLots struct{ *memStore }

func (m memLots) FindAvailableForUpdate(_ context.Context, _ *sql.Tx, key domain.StockKey) ([]domain.Lot, error) {
	var out []domain.Lot
	for _, l := range m.lots {
		if l.VariantID == key.VariantID && l.WarehouseID == key.WarehouseID && l.QtyAvailable > 0 {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memLots) FindByIDForUpdate(_ context.Context, _ *sql.Tx, id string) (*domain.Lot, error) {
	l, ok := m.lots[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("lot " + id + " not found")
	}
	cp := *l
	return &cp, nil
}

func (m memLots) Insert(_ context.Context, _ *sql.Tx, lot domain.Lot) error {
	m.addLot(lot)
	return nil
}

func (m memLots) AddQty(_ context.Context, _ *sql.Tx, id string, delta int) error {
	l, ok := m.lots[id]
	if !ok || l.QtyAvailable+delta < 0 {
		return apperrors.NewConflictError("lot out of range")
	}
	l.QtyAvailable += delta
	return nil
}

type memReservations struct{ *memStore }

func (m memReservations) Insert(_ context.Context, _ *sql.Tx, res domain.Reservation) error {
	r := res
	m.reservations[r.ID] = &r
	m.memStore.resOrder = append(m.memStore.resOrder, r.ID)
	return nil
}

func (m memReservations) FindActiveByOrder(_ context.Context, orderID int64) ([]domain.Reservation, error) {
	return m.activeReservations(orderID), nil
}

func (m memReservations) FindActiveByOrderAndKeyForUpdate(_ context.Context, _ *sql.Tx, orderID int64, key domain.StockKey) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range m.activeReservations(orderID) {
		if r.Key() == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m memReservations) MarkReleased(_ context.Context, _ *sql.Tx, id string, at time.Time) (bool, error) {
	r, ok := m.reservations[id]
	if !ok || r.Status != domain.ReservationActive {
		return false, nil
	}
	r.Status = domain.ReservationReleased
	r.ReleasedAt = &at
	return true, nil
}

type memLines struct{ *memStore }

func (m memLines) FindByIDForUpdate(_ context.Context, _ *sql.Tx, id int64) (*domain.SalesOrderLine, error) {
	l, ok := m.lines[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("sales order line %d not found", id))
	}
	cp := *l
	return &cp, nil
}

func (m memLines) AddAllocated(_ context.Context, _ *sql.Tx, id int64, delta int) error {
	l := m.lines[id]
	if l.AllocatedQty+delta > l.OrderedQty {
		return apperrors.NewConflictError("over allocation")
	}
	l.AllocatedQty += delta
	return nil
}

func (m memLines) ResetAllocated(_ context.Context, _ *sql.Tx, id int64) error {
	m.lines[id].AllocatedQty = 0
	return nil
}

type memVariants struct{ *memStore }

func (m memVariants) FindByID(_ context.Context, id int64) (*domain.ProductVariant, error) {
	v, ok := m.variants[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("product variant %d not found", id))
	}
	return v, nil
}

func newTestLedgerService(t *testing.T, store *memStore) *LedgerService {
	t.Helper()

	svc := NewLedgerService(
		testutil.NewMockTxDB(t, 20),
		memBalances{store},
		memLots{store},
		memReservations{store},
		memLines{store},
		memVariants{store},
		zap.NewNop(),
		5*time.Second,
		3,
	)

	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("res-%03d", seq)
	}
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }
