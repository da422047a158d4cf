package order

import (
	"database/sql"

	"go.uber.org/zap"

	"stockwise/internal/order/controller"
	orderrepo "stockwise/internal/order/repository"
	"stockwise/internal/order/usecase"
)

type Module struct {
	UseCase    *usecase.AllocationUseCase
	Controller *controller.SalesOrderController
}

// NewLineRepository is handed to the ledger, which updates allocated
// quantities inside its own transactions.
func NewLineRepository(db *sql.DB) *orderrepo.MySQLSalesOrderLineRepository {
	return orderrepo.NewMySQLSalesOrderLineRepository(db)
}

func NewModule(db *sql.DB, ledger usecase.Ledger, logger *zap.Logger) *Module {
	uc := usecase.NewAllocationUseCase(orderrepo.NewMySQLSalesOrderRepository(db), ledger, logger)

	return &Module{
		UseCase:    uc,
		Controller: controller.NewSalesOrderController(uc, logger),
	}
}
