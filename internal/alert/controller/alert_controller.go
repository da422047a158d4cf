package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
	"stockwise/internal/httpio"
)

type AlertService interface {
	Generate(ctx context.Context) (*dto.AlertSweepResult, error)
	SendNotifications(ctx context.Context) (*dto.NotificationResult, error)
	Resolve(ctx context.Context, id string) (*domain.LowStockAlert, error)
	List(ctx context.Context, f dto.AlertFilter) ([]domain.LowStockAlert, error)
	Summary(ctx context.Context) (*dto.AlertSummary, error)
}

type AlertController struct {
	service AlertService
	logger  *zap.Logger
}

func NewAlertController(service AlertService, logger *zap.Logger) *AlertController {
	return &AlertController{service: service, logger: logger}
}

type generateResponse struct {
	TraceID string `json:"traceId"`
	Count   int    `json:"count"`
	*dto.AlertSweepResult
}

func (c *AlertController) Generate(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	result, err := c.service.Generate(r.Context())
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, generateResponse{
		TraceID:          traceID,
		Count:            result.Count(),
		AlertSweepResult: result,
	})
}

type notificationResponse struct {
	TraceID string `json:"traceId"`
	*dto.NotificationResult
}

func (c *AlertController) SendNotifications(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	result, err := c.service.SendNotifications(r.Context())
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, notificationResponse{TraceID: traceID, NotificationResult: result})
}

func (c *AlertController) Resolve(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	alert, err := c.service.Resolve(r.Context(), chi.URLParam(r, "alertId"))
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, dto.Envelope{TraceID: traceID, Data: toAlertDTO(*alert)})
}

func (c *AlertController) List(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	filter, err := parseAlertFilter(r)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	alerts, err := c.service.List(r.Context(), filter)
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	out := make([]dto.LowStockAlertDTO, len(alerts))
	for i, a := range alerts {
		out[i] = toAlertDTO(a)
	}
	httpio.WriteJSON(w, logger, http.StatusOK, dto.Envelope{TraceID: traceID, Data: out})
}

func (c *AlertController) Summary(w http.ResponseWriter, r *http.Request) {
	traceID, logger := httpio.NewTrace(c.logger)

	summary, err := c.service.Summary(r.Context())
	if err != nil {
		httpio.WriteError(w, logger, traceID, err)
		return
	}

	httpio.WriteJSON(w, logger, http.StatusOK, dto.Envelope{TraceID: traceID, Data: summary})
}

func parseAlertFilter(r *http.Request) (dto.AlertFilter, error) {
	var f dto.AlertFilter
	q := r.URL.Query()

	if v := q.Get("severity"); v != "" {
		sev := domain.Severity(v)
		if !sev.Valid() {
			return f, apperrors.NewValidationError("invalid severity", apperrors.ValidationDetail{
				Field:   "severity",
				Message: "severity must be one of critical, warning, info",
			})
		}
		f.Severity = &sev
	}

	if v := q.Get("is_resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperrors.NewValidationError("invalid is_resolved", apperrors.ValidationDetail{
				Field:   "is_resolved",
				Message: "is_resolved must be true or false",
			})
		}
		f.IsResolved = &resolved
	}

	return f, nil
}

func toAlertDTO(a domain.LowStockAlert) dto.LowStockAlertDTO {
	return dto.LowStockAlertDTO{
		ID:                 a.ID,
		ProductVariantID:   a.VariantID,
		WarehouseID:        a.WarehouseID,
		CurrentQty:         a.CurrentQty,
		MinQty:             a.MinQty,
		ShortageQty:        a.ShortageQty,
		Severity:           string(a.Severity),
		IsResolved:         a.IsResolved,
		ResolvedAt:         a.ResolvedAt,
		NotificationSent:   a.NotificationSent,
		NotificationSentAt: a.NotificationSentAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}
