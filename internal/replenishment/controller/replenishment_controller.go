package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
	"stockwise/internal/httpio"
)

type ReplenishmentService interface {
	Generate(ctx context.Context) (*dto.SuggestionSweepResult, error)
	Dismiss(ctx context.Context, id, reason string) (*domain.ReplenishmentSuggestion, error)
	CreatePurchaseOrder(ctx context.Context, ids []string) (*dto.PurchaseOrderResult, error)
	List(ctx context.Context, f dto.SuggestionFilter) ([]domain.ReplenishmentSuggestion, error)
	Summary(ctx context.Context) (*dto.SuggestionSummary, error)
}

type ReplenishmentController struct {
	service ReplenishmentService
	logger  *zap.Logger
}

func NewReplenishmentController(service ReplenishmentService, logger *zap.Logger) *ReplenishmentController {
	return &ReplenishmentController{service: service, logger: logger}
}

type generateResponse struct {
	TraceID string `json:"traceId"`
	Count   int    `json:"count"`
	*dto.SuggestionSweepResult
}

func (c *ReplenishmentController) Generate(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	result, err := c.service.Generate(r.Context())
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, generateResponse{
		TraceID:               traceID,
		Count:                 result.Count(),
		SuggestionSweepResult: result,
	})
}

func (c *ReplenishmentController) List(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	filter, err := parseSuggestionFilter(r)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	suggestions, err := c.service.List(r.Context(), filter)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	out := make([]dto.ReplenishmentSuggestionDTO, len(suggestions))
	for i, s := range suggestions {
		out[i] = toSuggestionDTO(s)
	}
	httpio.WriteJSON(w, logger, http.StatusOK, dto.Envelope{TraceID: traceID, Data: out})
}

func (c *ReplenishmentController) Summary(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	summary, err := c.service.Summary(r.Context())
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, dto.Envelope{TraceID: traceID, Data: summary})
}

func (c *ReplenishmentController) Dismiss(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	var req dto.DismissRequest
	if !httpio.DecodeOptionalJSON(w, r, logger, traceID, &req) {
		return
	}

	suggestion, err := c.service.Dismiss(r.Context(), chi.URLParam(r, "suggestionId"), req.Reason)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, dto.Envelope{TraceID: traceID, Data: toSuggestionDTO(*suggestion)})
}

// CreatePurchaseOrder answers 201 when every group succeeded, 206 when
// only some did and 422 when none did.
func (c *ReplenishmentController) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	var req dto.CreatePurchaseOrderRequest
	if !httpio.DecodeJSON(w, r, logger, traceID, &req) {
		return
	}

	result, err := c.service.CreatePurchaseOrder(r.Context(), req.SuggestionIDs)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	status := http.StatusCreated
	switch {
	case result.Succeeded == 0:
		status = http.StatusUnprocessableEntity
	case result.Failed > 0:
		status = http.StatusPartialContent
	}
	httpio.WriteJSON(w, logger, status, dto.Envelope{TraceID: traceID, Data: result})
}

func parseSuggestionFilter(r *http.Request) (dto.SuggestionFilter, error) {
	var f dto.SuggestionFilter
	q := r.URL.Query()

	if v := q.Get("priority"); v != "" {
		p := domain.Priority(v)
		if !p.Valid() {
			return f, apperrors.NewValidationError("invalid priority", apperrors.ValidationDetail{
				Field:   "priority",
				Message: "priority must be one of critical, high, medium, low",
			})
		}
		f.Priority = &p
	}

	if v := q.Get("status"); v != "" {
		s := domain.SuggestionStatus(v)
		if !s.Valid() {
			return f, apperrors.NewValidationError("invalid status", apperrors.ValidationDetail{
				Field:   "status",
				Message: "status must be one of pending, ordered, dismissed",
			})
		}
		f.Status = &s
	}

	return f, nil
}

func toSuggestionDTO(s domain.ReplenishmentSuggestion) dto.ReplenishmentSuggestionDTO {
	return dto.ReplenishmentSuggestionDTO{
		ID:               s.ID,
		ProductVariantID: s.VariantID,
		WarehouseID:      s.WarehouseID,
		SupplierID:       s.SupplierID,
		CurrentQty:       s.CurrentQty,
		MinQty:           s.MinQty,
		SuggestedQty:     s.SuggestedQty,
		LeadTimeDays:     s.LeadTimeDays,
		Priority:         string(s.Priority),
		Status:           string(s.Status),
		DismissReason:    s.DismissReason,
		DismissedAt:      s.DismissedAt,
		PurchaseOrderID:  s.PurchaseOrderID,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}
