package replenishment

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"stockwise/internal/config"
	"stockwise/internal/domain"
	"stockwise/internal/infrastructure/mysql"
	"stockwise/internal/replenishment/controller"
	"stockwise/internal/replenishment/repository"
	"stockwise/internal/replenishment/service"
)

type Module struct {
	Service    *service.ReplenishmentService
	Controller *controller.ReplenishmentController
}

func NewModule(db *sqlx.DB, rules service.RuleSnapshotter, cfg *config.Config, logger *zap.Logger) *Module {
	svc := service.NewReplenishmentService(
		rules,
		repository.NewSuggestionRepository(db),
		repository.NewPurchaseOrderRepository(),
		logger,
		mysql.TxSettings{Timeout: cfg.Order.ReservationTxTimeout, MaxAttempts: cfg.Order.MaxRetryAttempts},
		domain.RetriggerPolicy(cfg.Replenishment.RetriggerPolicy),
		cfg.Replenishment.RetriggerCooldown,
	)

	return &Module{
		Service:    svc,
		Controller: controller.NewReplenishmentController(svc, logger),
	}
}
