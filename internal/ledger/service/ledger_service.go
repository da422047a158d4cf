package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/infrastructure/mysql"
)

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type BalanceRepository interface {
	FindByKeyForUpdate(ctx context.Context, tx *sql.Tx, key domain.StockKey) (*domain.StockBalance, error)
	EnsureForUpdate(ctx context.Context, tx *sql.Tx, key domain.StockKey) (*domain.StockBalance, error)
	AddReserved(ctx context.Context, tx *sql.Tx, key domain.StockKey, delta int) error
	AddOnHand(ctx context.Context, tx *sql.Tx, key domain.StockKey, delta int) error
}

type LotRepository interface {
	FindAvailableForUpdate(ctx context.Context, tx *sql.Tx, key domain.StockKey) ([]domain.Lot, error)
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Lot, error)
	Insert(ctx context.Context, tx *sql.Tx, lot domain.Lot) error
	AddQty(ctx context.Context, tx *sql.Tx, id string, delta int) error
}

type ReservationRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, res domain.Reservation) error
	FindActiveByOrder(ctx context.Context, orderID int64) ([]domain.Reservation, error)
	FindActiveByOrderAndKeyForUpdate(ctx context.Context, tx *sql.Tx, orderID int64, key domain.StockKey) ([]domain.Reservation, error)
	MarkReleased(ctx context.Context, tx *sql.Tx, id string, at time.Time) (bool, error)
}

// OrderLineRepository is the slice of the sales order store the ledger
// writes in the same transaction as the reservations it creates.
type OrderLineRepository interface {
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.SalesOrderLine, error)
	AddAllocated(ctx context.Context, tx *sql.Tx, id int64, delta int) error
	ResetAllocated(ctx context.Context, tx *sql.Tx, id int64) error
}

type VariantRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.ProductVariant, error)
}

// LedgerService owns every write to balances, lots and reservations. Each
// entry point runs one short transaction per (variant, warehouse) key with
// the key's balance row locked first.
type LedgerService struct {
	db           TransactionManager
	balances     BalanceRepository
	lots         LotRepository
	reservations ReservationRepository
	lines        OrderLineRepository
	variants     VariantRepository
	logger       *zap.Logger
	txSettings   mysql.TxSettings
	now          func() time.Time
	newID        func() string
}

func NewLedgerService(
	db TransactionManager,
	balances BalanceRepository,
	lots LotRepository,
	reservations ReservationRepository,
	lines OrderLineRepository,
	variants VariantRepository,
	logger *zap.Logger,
	txTimeout time.Duration,
	maxRetryAttempts int,
) *LedgerService {
	return &LedgerService{
		db:           db,
		balances:     balances,
		lots:         lots,
		reservations: reservations,
		lines:        lines,
		variants:     variants,
		logger:       logger,
		txSettings:   mysql.TxSettings{Timeout: txTimeout, MaxAttempts: maxRetryAttempts},
		now:          func() time.Time { return time.Now().UTC() },
		newID:        func() string { return uuid.New().String() },
	}
}

func (s *LedgerService) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return mysql.InTx(ctx, s.db, s.txSettings, s.logger, fn)
}
