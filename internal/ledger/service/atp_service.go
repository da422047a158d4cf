package service

import (
	"context"

	"stockwise/internal/domain"
	apperrors "stockwise/internal/errors"
)

type BalanceReader interface {
	FindByKey(ctx context.Context, key domain.StockKey) (*domain.StockBalance, error)
	SumByVariant(ctx context.Context, variantID int64) (*domain.StockBalance, error)
	FindByVariantIDs(ctx context.Context, ids []int64, warehouseID int64) ([]domain.StockBalance, error)
}

type ATPService struct {
	balances BalanceReader
	variants VariantRepository
}

func NewATPService(balances BalanceReader, variants VariantRepository) *ATPService {
	return &ATPService{balances: balances, variants: variants}
}

// Check answers whether requiredQty can be fulfilled. Without a warehouse
// the figures are summed over every warehouse holding the variant. An
// unknown variant is a NotFoundError; a known one without stock reads as
// zero. It reads without locks and reserves nothing.
func (s *ATPService) Check(ctx context.Context, variantID int64, warehouseID *int64, requiredQty int) (domain.ATP, error) {
	if requiredQty <= 0 {
		return domain.ATP{}, apperrors.NewValidationError("requiredQty must be positive", apperrors.ValidationDetail{
			Field:   "requiredQty",
			Message: "requiredQty must be positive",
		})
	}

	if _, err := s.variants.FindByID(ctx, variantID); err != nil {
		return domain.ATP{}, err
	}

	var balance *domain.StockBalance
	var err error
	if warehouseID == nil {
		balance, err = s.balances.SumByVariant(ctx, variantID)
	} else {
		balance, err = s.balances.FindByKey(ctx, domain.StockKey{VariantID: variantID, WarehouseID: *warehouseID})
		if _, ok := apperrors.IsNotFoundError(err); ok {
			balance, err = &domain.StockBalance{VariantID: variantID, WarehouseID: *warehouseID}, nil
		}
	}
	if err != nil {
		return domain.ATP{}, err
	}

	return domain.ComputeATP(*balance, requiredQty), nil
}

// SearchBalances returns the balances of the given variants in a warehouse
// along with the ids that have no balance row there.
func (s *ATPService) SearchBalances(ctx context.Context, ids []int64, warehouseID int64) ([]domain.StockBalance, []int64, error) {
	found, err := s.balances.FindByVariantIDs(ctx, ids, warehouseID)
	if err != nil {
		return nil, nil, err
	}

	foundSet := make(map[int64]struct{}, len(found))
	for _, b := range found {
		foundSet[b.VariantID] = struct{}{}
	}

	var notFound []int64
	for _, id := range ids {
		if _, ok := foundSet[id]; !ok {
			notFound = append(notFound, id)
		}
	}

	return found, notFound, nil
}
