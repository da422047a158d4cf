package notifier

import (
	"context"

	"go.uber.org/zap"

	"stockwise/internal/domain"
)

// LogNotifier writes alerts to the log. Used when no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, a domain.LowStockAlert) error {
	n.logger.Warn("low stock",
		zap.String("alertId", a.ID),
		zap.Int64("productVariantId", a.VariantID),
		zap.Int64("warehouseId", a.WarehouseID),
		zap.Int("currentQty", a.CurrentQty),
		zap.Int("minQty", a.MinQty),
		zap.String("severity", string(a.Severity)),
	)
	return nil
}
