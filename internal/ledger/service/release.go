package service

import (
	"context"
	"database/sql"
	"sort"

	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
)

// ReleaseOrder releases every active reservation of the order, one
// transaction per key. Reservations that are already released are skipped,
// so calling it again (or on an order with nothing allocated) is a no-op.
// A key that fails is reported in FailedKeys; the others still commit.
func (s *LedgerService) ReleaseOrder(ctx context.Context, orderID int64) (*dto.ReleaseResult, error) {
	active, err := s.reservations.FindActiveByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	seen := map[domain.StockKey]struct{}{}
	var keys []domain.StockKey
	for _, res := range active {
		if _, ok := seen[res.Key()]; !ok {
			seen[res.Key()] = struct{}{}
			keys = append(keys, res.Key())
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	result := &dto.ReleaseResult{OrderID: orderID}
	for _, key := range keys {
		var released []domain.Reservation
		err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			r, err := s.releaseKeyLocked(ctx, tx, orderID, key)
			if err != nil {
				return err
			}
			released = r
			return nil
		})
		if err != nil {
			s.logger.Error("release failed for key",
				zap.Int64("orderId", orderID),
				zap.String("key", key.String()),
				zap.Error(err),
			)
			result.FailedKeys = append(result.FailedKeys, key)
			continue
		}

		for _, res := range released {
			result.Released++
			result.ReleasedQty += res.QtyReserved
		}
		result.Reservations = append(result.Reservations, released...)
	}

	s.logger.Info("reservations released",
		zap.Int64("orderId", orderID),
		zap.Int("released", result.Released),
		zap.Int("releasedQty", result.ReleasedQty),
		zap.Int("failedKeys", len(result.FailedKeys)),
	)

	return result, nil
}

func (s *LedgerService) releaseKeyLocked(ctx context.Context, tx *sql.Tx, orderID int64, key domain.StockKey) ([]domain.Reservation, error) {
	if _, err := s.balances.FindByKeyForUpdate(ctx, tx, key); err != nil {
		return nil, err
	}

	active, err := s.reservations.FindActiveByOrderAndKeyForUpdate(ctx, tx, orderID, key)
	if err != nil {
		return nil, err
	}

	now := s.now()
	total := 0
	lineIDs := map[int64]struct{}{}
	var released []domain.Reservation

	for _, res := range active {
		ok, err := s.reservations.MarkReleased(ctx, tx, res.ID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if res.LotID != nil {
			if err := s.lots.AddQty(ctx, tx, *res.LotID, res.QtyReserved); err != nil {
				return nil, err
			}
		}
		total += res.QtyReserved
		lineIDs[res.OrderLineID] = struct{}{}

		res.Status = domain.ReservationReleased
		res.ReleasedAt = &now
		released = append(released, res)
	}

	if total == 0 {
		return nil, nil
	}

	if err := s.balances.AddReserved(ctx, tx, key, -total); err != nil {
		return nil, apperrors.NewInternalError("balance out of step with reservations", err)
	}

	ids := make([]int64, 0, len(lineIDs))
	for id := range lineIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := s.lines.ResetAllocated(ctx, tx, id); err != nil {
			return nil, err
		}
	}

	return released, nil
}
