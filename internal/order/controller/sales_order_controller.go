package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
	"stockwise/internal/httpio"
)

type AllocationUseCase interface {
	Allocate(ctx context.Context, orderID int64) (*dto.AllocationResult, error)
	Release(ctx context.Context, orderID int64) (*dto.ReleaseResult, error)
	Cancel(ctx context.Context, orderID int64) (*dto.ReleaseResult, error)
}

type SalesOrderController struct {
	useCase AllocationUseCase
	logger  *zap.Logger
}

func NewSalesOrderController(useCase AllocationUseCase, logger *zap.Logger) *SalesOrderController {
	return &SalesOrderController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *SalesOrderController) Allocate(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	orderID, ok := c.parseOrderID(w, r, traceID, logger)
	if !ok {
		return
	}

	result, err := c.useCase.Allocate(r.Context(), orderID)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, toAllocateResponse(traceID, result))
}

func (c *SalesOrderController) ReleaseReservations(w http.ResponseWriter, r *http.Request) {
	c.release(w, r, c.useCase.Release)
}

func (c *SalesOrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.release(w, r, c.useCase.Cancel)
}

func (c *SalesOrderController) release(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (*dto.ReleaseResult, error)) {
	traceID, logger := httpio.NewTrace(c.logger)

	orderID, ok := c.parseOrderID(w, r, traceID, logger)
	if !ok {
		return
	}

	result, err := fn(r.Context(), orderID)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	status := http.StatusOK
	if len(result.FailedKeys) > 0 {
		status = http.StatusPartialContent
	}
	httpio.WriteJSON(w, logger, status, toReleaseResponse(traceID, result))
}

func (c *SalesOrderController) parseOrderID(w http.ResponseWriter, r *http.Request, traceID string, logger *zap.Logger) (int64, bool) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		logger.Warn("invalid orderId in path", zap.String("orderId", chi.URLParam(r, "orderId")))
		httpio.WriteValidationError(w, logger, traceID, "invalid orderId", apperrors.ValidationDetail{
			Field:   "orderId",
			Message: "orderId must be a positive integer",
		})
		return 0, false
	}
	return orderID, true
}

func toAllocateResponse(traceID string, result *dto.AllocationResult) dto.AllocateResponse {
	lines := make([]dto.LineAllocationDTO, len(result.Lines))
	for i, l := range result.Lines {
		lines[i] = dto.LineAllocationDTO{
			LineID:       l.LineID,
			Requested:    l.Requested,
			Allocated:    l.Allocated,
			Shortage:     l.Shortage,
			Reservations: toReservationDTOs(l.Reservations),
		}
		if l.Err != nil {
			lines[i].Error = l.Err.Error()
		}
	}

	return dto.AllocateResponse{
		TraceID:    traceID,
		SalesOrder: toSalesOrderDTO(result.Order),
		Partial:    result.Partial,
		Lines:      lines,
		Timestamp:  time.Now().UTC(),
	}
}

func toSalesOrderDTO(o domain.SalesOrder) dto.SalesOrderDTO {
	lines := make([]dto.SalesOrderLineDTO, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = dto.SalesOrderLineDTO{
			ID:               l.ID,
			ProductVariantID: l.VariantID,
			WarehouseID:      l.WarehouseID,
			OrderedQty:       l.OrderedQty,
			AllocatedQty:     l.AllocatedQty,
		}
	}
	return dto.SalesOrderDTO{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Lines:       lines,
	}
}

func toReservationDTOs(rs []domain.Reservation) []dto.ReservationDTO {
	out := make([]dto.ReservationDTO, len(rs))
	for i, r := range rs {
		out[i] = dto.ReservationDTO{ID: r.ID, LotID: r.LotID, Quantity: r.QtyReserved}
	}
	return out
}

func toReleaseResponse(traceID string, result *dto.ReleaseResult) dto.ReleaseResponse {
	failed := make([]string, len(result.FailedKeys))
	for i, k := range result.FailedKeys {
		failed[i] = k.String()
	}
	return dto.ReleaseResponse{
		TraceID:     traceID,
		OrderID:     result.OrderID,
		Released:    result.Released,
		ReleasedQty: result.ReleasedQty,
		FailedKeys:  failed,
		Timestamp:   time.Now().UTC(),
	}
}
