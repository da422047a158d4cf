package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
)

// Receive books incoming stock as a new lot and raises on hand by the same
// quantity.
func (s *LedgerService) Receive(ctx context.Context, req dto.ReceiptRequest) (*domain.StockBalance, *domain.Lot, error) {
	if req.Quantity <= 0 {
		return nil, nil, apperrors.NewValidationError("quantity must be positive", apperrors.ValidationDetail{
			Field:   "quantity",
			Message: "quantity must be positive",
		})
	}
	if _, err := s.variants.FindByID(ctx, req.ProductVariantID); err != nil {
		return nil, nil, err
	}

	key := domain.StockKey{VariantID: req.ProductVariantID, WarehouseID: req.WarehouseID}
	receivedAt := s.now()
	if req.ReceivedAt != nil {
		receivedAt = req.ReceivedAt.UTC()
	}

	var balance *domain.StockBalance
	var lot *domain.Lot
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		b, err := s.balances.EnsureForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}

		l := domain.Lot{
			ID:           s.newID(),
			VariantID:    key.VariantID,
			WarehouseID:  key.WarehouseID,
			LotNumber:    req.LotNumber,
			ExpiryDate:   req.ExpiryDate,
			QtyAvailable: req.Quantity,
			ReceivedAt:   receivedAt,
		}
		if err := s.lots.Insert(ctx, tx, l); err != nil {
			return err
		}
		if err := s.balances.AddOnHand(ctx, tx, key, req.Quantity); err != nil {
			return err
		}

		b.QtyOnHand += req.Quantity
		balance, lot = b, &l
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("stock received",
		zap.String("key", key.String()),
		zap.String("lotId", lot.ID),
		zap.Int("quantity", req.Quantity),
	)
	return balance, lot, nil
}

// Adjust corrects on hand by delta, optionally against one lot. Negative
// adjustments may not leave on hand below reserved, nor strand lot stock
// that on hand no longer covers.
func (s *LedgerService) Adjust(ctx context.Context, req dto.AdjustmentRequest) (*domain.StockBalance, *domain.Lot, error) {
	if req.Delta == 0 {
		return nil, nil, apperrors.NewValidationError("delta must not be zero", apperrors.ValidationDetail{
			Field:   "delta",
			Message: "delta must not be zero",
		})
	}

	key := domain.StockKey{VariantID: req.ProductVariantID, WarehouseID: req.WarehouseID}

	var balance *domain.StockBalance
	var lot *domain.Lot
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var b *domain.StockBalance
		var err error
		if req.Delta > 0 {
			b, err = s.balances.EnsureForUpdate(ctx, tx, key)
		} else {
			b, err = s.balances.FindByKeyForUpdate(ctx, tx, key)
		}
		if err != nil {
			return err
		}

		newOnHand := b.QtyOnHand + req.Delta
		if newOnHand < b.QtyReserved {
			return apperrors.NewConflictError(fmt.Sprintf("adjustment would leave %d on hand against %d reserved", newOnHand, b.QtyReserved))
		}

		var l *domain.Lot
		if req.LotID != nil {
			l, err = s.lots.FindByIDForUpdate(ctx, tx, *req.LotID)
			if err != nil {
				return err
			}
			if l.VariantID != key.VariantID || l.WarehouseID != key.WarehouseID {
				return apperrors.NewConflictError(fmt.Sprintf("lot %s does not belong to %s", l.ID, key))
			}
			if l.QtyAvailable+req.Delta < 0 {
				return apperrors.NewConflictError(fmt.Sprintf("lot %s holds only %d", l.ID, l.QtyAvailable))
			}
			if err := s.lots.AddQty(ctx, tx, l.ID, req.Delta); err != nil {
				return err
			}
			l.QtyAvailable += req.Delta
		} else if req.Delta < 0 {
			lots, err := s.lots.FindAvailableForUpdate(ctx, tx, key)
			if err != nil {
				return err
			}
			if domain.SumLots(lots) > newOnHand-b.QtyReserved {
				return apperrors.NewConflictError("adjustment would leave lots holding more than is available; adjust a specific lot")
			}
		}

		if err := s.balances.AddOnHand(ctx, tx, key, req.Delta); err != nil {
			return err
		}

		b.QtyOnHand = newOnHand
		balance, lot = b, l
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("stock adjusted",
		zap.String("key", key.String()),
		zap.Int("delta", req.Delta),
		zap.String("reason", req.Reason),
	)
	return balance, lot, nil
}
