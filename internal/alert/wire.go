package alert

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"stockwise/internal/alert/controller"
	"stockwise/internal/alert/notifier"
	"stockwise/internal/alert/repository"
	"stockwise/internal/alert/service"
	"stockwise/internal/config"
	"stockwise/internal/infrastructure/mysql"
)

type Module struct {
	Service    *service.AlertService
	Controller *controller.AlertController
}

func NewModule(db *sqlx.DB, rules service.RuleSnapshotter, cfg *config.Config, logger *zap.Logger) *Module {
	alertSvc := service.NewAlertService(
		rules,
		repository.NewAlertRepository(db),
		newNotifier(cfg.Notification, logger),
		logger,
		mysql.TxSettings{Timeout: cfg.Order.ReservationTxTimeout, MaxAttempts: cfg.Order.MaxRetryAttempts},
		cfg.Sweep.NotificationConcurrency,
	)

	return &Module{
		Service:    alertSvc,
		Controller: controller.NewAlertController(alertSvc, logger),
	}
}

func newNotifier(cfg config.NotificationConfig, logger *zap.Logger) service.Notifier {
	if cfg.WebhookURL == "" {
		return notifier.NewLogNotifier(logger)
	}
	return notifier.NewWebhookNotifier(cfg.WebhookURL, cfg.Timeout)
}
