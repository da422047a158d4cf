package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
	"stockwise/internal/httpio"
)

const maxSearchIDs = 100

type ATPService interface {
	Check(ctx context.Context, variantID int64, warehouseID *int64, requiredQty int) (domain.ATP, error)
	SearchBalances(ctx context.Context, ids []int64, warehouseID int64) ([]domain.StockBalance, []int64, error)
}

type StockMovementService interface {
	Receive(ctx context.Context, req dto.ReceiptRequest) (*domain.StockBalance, *domain.Lot, error)
	Adjust(ctx context.Context, req dto.AdjustmentRequest) (*domain.StockBalance, *domain.Lot, error)
}

type StockController struct {
	atp      ATPService
	movement StockMovementService
	logger   *zap.Logger
}

func NewStockController(atp ATPService, movement StockMovementService, logger *zap.Logger) *StockController {
	return &StockController{
		atp:      atp,
		movement: movement,
		logger:   logger,
	}
}

func (c *StockController) CheckATP(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	var req dto.ATPCheckRequest
	if !httpio.DecodeJSON(w, r, logger, traceID, &req) {
		return
	}

	var details []apperrors.ValidationDetail
	if req.ProductVariantID <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "productVariantId", Message: "productVariantId must be a positive integer"})
	}
	if req.WarehouseID != nil && *req.WarehouseID <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "warehouseId", Message: "warehouseId must be a positive integer"})
	}
	if req.RequiredQty <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "requiredQty", Message: "requiredQty must be positive"})
	}
	if len(details) > 0 {
		httpio.WriteValidationError(w, logger, traceID, "validation failed", details...)
		return
	}

	atp, err := c.atp.Check(r.Context(), req.ProductVariantID, req.WarehouseID, req.RequiredQty)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, dto.ATPCheckResponse{
		TraceID:          traceID,
		ProductVariantID: req.ProductVariantID,
		WarehouseID:      req.WarehouseID,
		CanFulfill:       atp.CanFulfill,
		Shortage:         atp.Shortage,
		OnHand:           atp.OnHand,
		Reserved:         atp.Reserved,
		Available:        atp.Available,
		Timestamp:        time.Now().UTC(),
	})
}

func (c *StockController) SearchStock(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	var req dto.StockSearchRequest
	if !httpio.DecodeJSON(w, r, logger, traceID, &req) {
		return
	}

	if err := validateSearchRequest(req); err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	found, notFound, err := c.atp.SearchBalances(r.Context(), req.ProductVariantIDs, req.WarehouseID)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	balances := make([]dto.StockBalanceDTO, len(found))
	for i, b := range found {
		balances[i] = toBalanceDTO(b)
	}
	if notFound == nil {
		notFound = []int64{}
	}

	httpio.WriteJSON(w, logger, http.StatusOK, dto.StockSearchResponse{
		TraceID:  traceID,
		Balances: balances,
		NotFound: notFound,
	})
}

func validateSearchRequest(req dto.StockSearchRequest) error {
	if req.WarehouseID <= 0 {
		msg := "warehouseId must be a positive integer"
		if req.WarehouseID == 0 {
			msg = "warehouseId is required"
		}
		return apperrors.NewValidationError(msg, apperrors.ValidationDetail{Field: "warehouseId", Message: msg})
	}

	if len(req.ProductVariantIDs) == 0 {
		return apperrors.NewValidationError("productVariantIds is required", apperrors.ValidationDetail{
			Field:   "productVariantIds",
			Message: "productVariantIds must not be empty",
		})
	}

	if len(req.ProductVariantIDs) > maxSearchIDs {
		msg := "productVariantIds exceeds maximum of " + strconv.Itoa(maxSearchIDs)
		return apperrors.NewValidationError(msg, apperrors.ValidationDetail{Field: "productVariantIds", Message: msg})
	}

	for _, id := range req.ProductVariantIDs {
		if id <= 0 {
			msg := "each productVariantId must be a positive integer"
			return apperrors.NewValidationError(msg, apperrors.ValidationDetail{Field: "productVariantIds", Message: msg})
		}
	}

	return nil
}

func (c *StockController) Receive(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	var req dto.ReceiptRequest
	if !httpio.DecodeJSON(w, r, logger, traceID, &req) {
		return
	}

	details := validateKey(req.ProductVariantID, req.WarehouseID)
	if req.Quantity <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: "quantity must be positive"})
	}
	if len(details) > 0 {
		httpio.WriteValidationError(w, logger, traceID, "validation failed", details...)
		return
	}

	balance, lot, err := c.movement.Receive(r.Context(), req)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusCreated, toMutationResponse(traceID, balance, lot))
}

func (c *StockController) Adjust(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	var req dto.AdjustmentRequest
	if !httpio.DecodeJSON(w, r, logger, traceID, &req) {
		return
	}

	details := validateKey(req.ProductVariantID, req.WarehouseID)
	if req.Delta == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "delta", Message: "delta must not be zero"})
	}
	if req.Reason == "" {
		details = append(details, apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}
	if len(details) > 0 {
		httpio.WriteValidationError(w, logger, traceID, "validation failed", details...)
		return
	}

	balance, lot, err := c.movement.Adjust(r.Context(), req)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, toMutationResponse(traceID, balance, lot))
}

func validateKey(variantID, warehouseID int64) []apperrors.ValidationDetail {
	var details []apperrors.ValidationDetail
	if variantID <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "productVariantId", Message: "productVariantId must be a positive integer"})
	}
	if warehouseID <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "warehouseId", Message: "warehouseId must be a positive integer"})
	}
	return details
}

func toBalanceDTO(b domain.StockBalance) dto.StockBalanceDTO {
	return dto.StockBalanceDTO{
		ProductVariantID: b.VariantID,
		WarehouseID:      b.WarehouseID,
		QtyOnHand:        b.QtyOnHand,
		QtyReserved:      b.QtyReserved,
		QtyAvailable:     b.Available(),
	}
}

func toMutationResponse(traceID string, balance *domain.StockBalance, lot *domain.Lot) dto.StockMutationResponse {
	resp := dto.StockMutationResponse{
		TraceID: traceID,
		Balance: toBalanceDTO(*balance),
	}
	if lot != nil {
		resp.Lot = &dto.LotDTO{
			ID:               lot.ID,
			ProductVariantID: lot.VariantID,
			WarehouseID:      lot.WarehouseID,
			LotNumber:        lot.LotNumber,
			ExpiryDate:       lot.ExpiryDate,
			QtyAvailable:     lot.QtyAvailable,
			ReceivedAt:       lot.ReceivedAt,
		}
	}
	return resp
}
