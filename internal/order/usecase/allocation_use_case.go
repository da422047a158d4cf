package usecase

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
)

type SalesOrderRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.SalesOrder, error)
	SetAllocationStatus(ctx context.Context, id int64, status string) error
	ResetAllocationStatus(ctx context.Context, id int64) error
	MarkCancelled(ctx context.Context, id int64) error
}

type Ledger interface {
	AllocateLine(ctx context.Context, line domain.SalesOrderLine) (*dto.LineAllocation, error)
	ReleaseOrder(ctx context.Context, orderID int64) (*dto.ReleaseResult, error)
}

type AllocationUseCase struct {
	orders SalesOrderRepository
	ledger Ledger
	logger *zap.Logger
}

func NewAllocationUseCase(orders SalesOrderRepository, ledger Ledger, logger *zap.Logger) *AllocationUseCase {
	return &AllocationUseCase{
		orders: orders,
		ledger: ledger,
		logger: logger,
	}
}

// Allocate reserves stock for every unsatisfied line of the order. Lines
// are independent: a shortage or failure on one never undoes another.
func (uc *AllocationUseCase) Allocate(ctx context.Context, orderID int64) (*dto.AllocationResult, error) {
	uc.logger.Info("allocation started", zap.Int64("orderId", orderID))

	order, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanAllocate() {
		return nil, apperrors.NewConflictError("sales order is " + order.Status + " and cannot be allocated")
	}

	// Same lock order for every allocator.
	lines := append([]domain.SalesOrderLine(nil), order.Lines...)
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Key() != lines[j].Key() {
			return lines[i].Key().Less(lines[j].Key())
		}
		return lines[i].ID < lines[j].ID
	})

	results := make([]dto.LineAllocation, 0, len(lines))
	for _, line := range lines {
		if line.Remaining() == 0 {
			results = append(results, dto.LineAllocation{
				LineID:      line.ID,
				VariantID:   line.VariantID,
				WarehouseID: line.WarehouseID,
			})
			continue
		}

		res, err := uc.ledger.AllocateLine(ctx, line)
		if err != nil {
			uc.logger.Error("line allocation failed",
				zap.Int64("orderId", orderID),
				zap.Int64("lineId", line.ID),
				zap.Error(err),
			)
			results = append(results, dto.LineAllocation{
				LineID:      line.ID,
				VariantID:   line.VariantID,
				WarehouseID: line.WarehouseID,
				Requested:   line.Remaining(),
				Shortage:    line.Remaining(),
				Err:         err,
			})
			continue
		}
		results = append(results, *res)
	}

	order, err = uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	status := order.AllocationStatus()
	if err := uc.orders.SetAllocationStatus(ctx, orderID, status); err != nil {
		if _, ok := apperrors.IsConflictError(err); ok {
			// Cancelled while we were allocating: give the stock back.
			uc.logger.Warn("order left allocatable state during allocation, releasing", zap.Int64("orderId", orderID))
			if _, relErr := uc.ledger.ReleaseOrder(ctx, orderID); relErr != nil {
				uc.logger.Error("release after lost allocation failed", zap.Int64("orderId", orderID), zap.Error(relErr))
			}
		}
		return nil, err
	}
	order.Status = status

	uc.logger.Info("allocation finished",
		zap.Int64("orderId", orderID),
		zap.String("status", status),
		zap.Int("lines", len(results)),
	)

	return &dto.AllocationResult{
		Order:   *order,
		Lines:   results,
		Partial: status == domain.OrderStatusPartial,
	}, nil
}

// Release frees every active reservation of the order. Keys that fail are
// reported and the order keeps its allocation status until a retry
// succeeds.
func (uc *AllocationUseCase) Release(ctx context.Context, orderID int64) (*dto.ReleaseResult, error) {
	if _, err := uc.orders.FindByID(ctx, orderID); err != nil {
		return nil, err
	}

	result, err := uc.ledger.ReleaseOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if len(result.FailedKeys) == 0 {
		if err := uc.orders.ResetAllocationStatus(ctx, orderID); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Cancel marks the order cancelled and then releases its reservations.
// The status flips first so an allocation still in flight fails its final
// status update and gives its stock back. Cancelling twice is a no-op and
// a cancel that reported failed keys can be retried.
func (uc *AllocationUseCase) Cancel(ctx context.Context, orderID int64) (*dto.ReleaseResult, error) {
	if _, err := uc.orders.FindByID(ctx, orderID); err != nil {
		return nil, err
	}

	if err := uc.orders.MarkCancelled(ctx, orderID); err != nil {
		return nil, err
	}

	result, err := uc.ledger.ReleaseOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if len(result.FailedKeys) > 0 {
		uc.logger.Warn("sales order cancelled with unreleased reservations",
			zap.Int64("orderId", orderID),
			zap.Int("failedKeys", len(result.FailedKeys)),
		)
		return result, nil
	}

	uc.logger.Info("sales order cancelled", zap.Int64("orderId", orderID), zap.Int("released", result.Released))
	return result, nil
}
