package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockwise/internal/domain"
	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
)

type mockReplenishmentService struct {
	mock.Mock
}

func (m *mockReplenishmentService) Generate(ctx context.Context) (*dto.SuggestionSweepResult, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*dto.SuggestionSweepResult)
	return r, args.Error(1)
}

func (m *mockReplenishmentService) Dismiss(ctx context.Context, id, reason string) (*domain.ReplenishmentSuggestion, error) {
	args := m.Called(ctx, id, reason)
	r, _ := args.Get(0).(*domain.ReplenishmentSuggestion)
	return r, args.Error(1)
}

func (m *mockReplenishmentService) CreatePurchaseOrder(ctx context.Context, ids []string) (*dto.PurchaseOrderResult, error) {
	args := m.Called(ctx, ids)
	r, _ := args.Get(0).(*dto.PurchaseOrderResult)
	return r, args.Error(1)
}

func (m *mockReplenishmentService) List(ctx context.Context, f dto.SuggestionFilter) ([]domain.ReplenishmentSuggestion, error) {
	args := m.Called(ctx, f)
	r, _ := args.Get(0).([]domain.ReplenishmentSuggestion)
	return r, args.Error(1)
}

func (m *mockReplenishmentService) Summary(ctx context.Context) (*dto.SuggestionSummary, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*dto.SuggestionSummary)
	return r, args.Error(1)
}

func router(c *ReplenishmentController) http.Handler {
	r := chi.NewRouter()
	r.Post("/replenishment/suggestions/generate", c.Generate)
	r.Get("/replenishment/suggestions", c.List)
	r.Get("/replenishment/summary", c.Summary)
	r.Post("/replenishment/suggestions/{suggestionId}/dismiss", c.Dismiss)
	r.Post("/replenishment/create-purchase-order", c.CreatePurchaseOrder)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestGenerate(t *testing.T) {
	svc := new(mockReplenishmentService)
	svc.On("Generate", mock.Anything).Return(&dto.SuggestionSweepResult{Created: 2, Updated: 3, Suppressed: 1, Errors: []dto.RuleError{}}, nil)

	rec := do(router(NewReplenishmentController(svc, zap.NewNop())), http.MethodPost, "/replenishment/suggestions/generate", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["count"])
	assert.Equal(t, float64(1), body["suppressed"])
}

func TestList_Filter(t *testing.T) {
	svc := new(mockReplenishmentService)
	p := domain.PriorityHigh
	s := domain.SuggestionPending
	svc.On("List", mock.Anything, dto.SuggestionFilter{Priority: &p, Status: &s}).Return([]domain.ReplenishmentSuggestion{{ID: "s1"}}, nil)
	h := router(NewReplenishmentController(svc, zap.NewNop()))

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/replenishment/suggestions?priority=high&status=pending", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/replenishment/suggestions?priority=urgent", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/replenishment/suggestions?status=open", "").Code)
	svc.AssertExpectations(t)
}

func TestDismiss(t *testing.T) {
	svc := new(mockReplenishmentService)
	svc.On("Dismiss", mock.Anything, "s1", "too expensive").
		Return(&domain.ReplenishmentSuggestion{ID: "s1", Status: domain.SuggestionDismissed}, nil)
	svc.On("Dismiss", mock.Anything, "s2", "x").Return(nil, apperrors.NewConflictError("suggestion s2 is ordered, not pending"))
	h := router(NewReplenishmentController(svc, zap.NewNop()))

	rec := do(h, http.MethodPost, "/replenishment/suggestions/s1/dismiss", `{"reason":"too expensive"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"dismissed"`)

	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/replenishment/suggestions/s2/dismiss", `{"reason":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/replenishment/suggestions/s1/dismiss", `{`).Code)
}

func TestDismiss_ReasonIsOptional(t *testing.T) {
	svc := new(mockReplenishmentService)
	svc.On("Dismiss", mock.Anything, "s1", "").
		Return(&domain.ReplenishmentSuggestion{ID: "s1", Status: domain.SuggestionDismissed}, nil).Twice()
	h := router(NewReplenishmentController(svc, zap.NewNop()))

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/replenishment/suggestions/s1/dismiss", ``).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/replenishment/suggestions/s1/dismiss", `{}`).Code)
	svc.AssertExpectations(t)
}

func TestCreatePurchaseOrder_StatusReflectsGroups(t *testing.T) {
	tests := []struct {
		name      string
		succeeded int
		failed    int
		want      int
	}{
		{"all groups", 2, 0, http.StatusCreated},
		{"some groups", 1, 1, http.StatusPartialContent},
		{"no groups", 0, 2, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockReplenishmentService)
			svc.On("CreatePurchaseOrder", mock.Anything, []string{"a", "b"}).
				Return(&dto.PurchaseOrderResult{Succeeded: tt.succeeded, Failed: tt.failed}, nil)

			rec := do(router(NewReplenishmentController(svc, zap.NewNop())), http.MethodPost,
				"/replenishment/create-purchase-order", `{"suggestionIds":["a","b"]}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCreatePurchaseOrder_NotFound(t *testing.T) {
	svc := new(mockReplenishmentService)
	svc.On("CreatePurchaseOrder", mock.Anything, []string{"zzz"}).Return(nil, apperrors.NewNotFoundError("suggestions not found: zzz"))

	rec := do(router(NewReplenishmentController(svc, zap.NewNop())), http.MethodPost,
		"/replenishment/create-purchase-order", `{"suggestionIds":["zzz"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
