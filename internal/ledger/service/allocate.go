package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
)

// AllocateLine reserves as much of the line's remaining quantity as the
// key can give. Insufficient stock is reported as a shortage, not an error.
func (s *LedgerService) AllocateLine(ctx context.Context, line domain.SalesOrderLine) (*dto.LineAllocation, error) {
	variant, err := s.variants.FindByID(ctx, line.VariantID)
	if err != nil {
		return nil, err
	}
	less := domain.LotOrdering(*variant)
	key := line.Key()

	var result *dto.LineAllocation
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := s.allocateLocked(ctx, tx, line, key, less)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Shortage > 0 {
		s.logger.Warn("line partially allocated",
			zap.Int64("orderId", line.OrderID),
			zap.Int64("lineId", line.ID),
			zap.String("key", key.String()),
			zap.Int("allocated", result.Allocated),
			zap.Int("shortage", result.Shortage),
		)
	} else if result.Allocated > 0 {
		s.logger.Info("line allocated",
			zap.Int64("orderId", line.OrderID),
			zap.Int64("lineId", line.ID),
			zap.String("key", key.String()),
			zap.Int("allocated", result.Allocated),
		)
	}

	return result, nil
}

func (s *LedgerService) allocateLocked(
	ctx context.Context,
	tx *sql.Tx,
	line domain.SalesOrderLine,
	key domain.StockKey,
	less domain.LotLess,
) (*dto.LineAllocation, error) {
	balance, err := s.balances.FindByKeyForUpdate(ctx, tx, key)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); !ok {
			return nil, err
		}
		balance = &domain.StockBalance{VariantID: key.VariantID, WarehouseID: key.WarehouseID}
	}

	locked, err := s.lines.FindByIDForUpdate(ctx, tx, line.ID)
	if err != nil {
		return nil, err
	}

	remaining := locked.Remaining()
	result := &dto.LineAllocation{
		LineID:      line.ID,
		VariantID:   key.VariantID,
		WarehouseID: key.WarehouseID,
		Requested:   remaining,
	}
	if remaining == 0 {
		return result, nil
	}

	available := domain.ComputeATP(*balance, remaining).Available
	if available <= 0 {
		result.Shortage = remaining
		return result, nil
	}

	lots, err := s.lots.FindAvailableForUpdate(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	domain.SortLots(lots, less)

	unlotted := available - domain.SumLots(lots)
	if unlotted < 0 {
		unlotted = 0
	}

	budget := remaining
	if available < budget {
		budget = available
	}

	now := s.now()
	reserve := func(lotID *string, qty int) error {
		res := domain.Reservation{
			ID:          s.newID(),
			OrderID:     locked.OrderID,
			OrderLineID: locked.ID,
			VariantID:   key.VariantID,
			WarehouseID: key.WarehouseID,
			LotID:       lotID,
			QtyReserved: qty,
			Status:      domain.ReservationActive,
			CreatedAt:   now,
		}
		if err := s.reservations.Insert(ctx, tx, res); err != nil {
			return err
		}
		result.Reservations = append(result.Reservations, res)
		result.Allocated += qty
		budget -= qty
		return nil
	}

	for _, lot := range lots {
		if budget == 0 {
			break
		}
		take := min(budget, lot.QtyAvailable)
		if take <= 0 {
			continue
		}
		if err := s.lots.AddQty(ctx, tx, lot.ID, -take); err != nil {
			return nil, err
		}
		lotID := lot.ID
		if err := reserve(&lotID, take); err != nil {
			return nil, err
		}
	}

	if budget > 0 && unlotted > 0 {
		if err := reserve(nil, min(budget, unlotted)); err != nil {
			return nil, err
		}
	}

	if result.Allocated > 0 {
		if err := s.balances.AddReserved(ctx, tx, key, result.Allocated); err != nil {
			return nil, err
		}
		if err := s.lines.AddAllocated(ctx, tx, locked.ID, result.Allocated); err != nil {
			return nil, err
		}
	}

	result.Shortage = remaining - result.Allocated
	return result, nil
}
