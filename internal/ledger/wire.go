package ledger

import (
	"database/sql"

	"go.uber.org/zap"

	"stockwise/internal/config"
	"stockwise/internal/ledger/controller"
	"stockwise/internal/ledger/repository"
	"stockwise/internal/ledger/service"
)

// Module exposes the ledger to the rest of the application. Service is the
// only writer of balances, lots and reservations.
type Module struct {
	Service    *service.LedgerService
	Controller *controller.StockController
}

func NewModule(db *sql.DB, lines service.OrderLineRepository, cfg *config.Config, logger *zap.Logger) *Module {
	balances := repository.NewMySQLBalanceRepository(db)
	variants := repository.NewMySQLVariantRepository(db)

	ledgerSvc := service.NewLedgerService(
		db,
		balances,
		repository.NewMySQLLotRepository(db),
		repository.NewMySQLReservationRepository(db),
		lines,
		variants,
		logger,
		cfg.Order.ReservationTxTimeout,
		cfg.Order.MaxRetryAttempts,
	)
	atpSvc := service.NewATPService(balances, variants)

	return &Module{
		Service:    ledgerSvc,
		Controller: controller.NewStockController(atpSvc, ledgerSvc, logger),
	}
}
