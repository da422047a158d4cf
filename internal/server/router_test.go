package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	alertcontroller "stockwise/internal/alert/controller"
	"stockwise/internal/dto"
	ledgercontroller "stockwise/internal/ledger/controller"
	ordercontroller "stockwise/internal/order/controller"
	replenishmentcontroller "stockwise/internal/replenishment/controller"
)

// idleOrders is never reached; path validation rejects every request first.
type idleOrders struct{}

func (idleOrders) Allocate(context.Context, int64) (*dto.AllocationResult, error) { return nil, nil }
func (idleOrders) Release(context.Context, int64) (*dto.ReleaseResult, error)     { return nil, nil }
func (idleOrders) Cancel(context.Context, int64) (*dto.ReleaseResult, error)      { return nil, nil }

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func newTestRouter(ping pingFunc) http.Handler {
	logger := zap.NewNop()
	return NewRouter(Controllers{
		Stock:         ledgercontroller.NewStockController(nil, nil, logger),
		SalesOrders:   ordercontroller.NewSalesOrderController(idleOrders{}, logger),
		Alerts:        alertcontroller.NewAlertController(nil, logger),
		Replenishment: replenishmentcontroller.NewReplenishmentController(nil, logger),
	}, ping, logger)
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	ok := newTestRouter(func(context.Context) error { return nil })
	rec := serve(ok, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	down := newTestRouter(func(context.Context) error { return errors.New("connection refused") })
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/health", "").Code)
}

func TestRoutesReachControllers(t *testing.T) {
	h := newTestRouter(func(context.Context) error { return nil })

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/atp/check", "{"},
		{http.MethodPost, "/stock/search", "{"},
		{http.MethodPost, "/stock/receipts", "{"},
		{http.MethodPost, "/stock/adjustments", "{"},
		{http.MethodPost, "/sales-orders/abc/allocate", ""},
		{http.MethodPost, "/sales-orders/abc/release-reservations", ""},
		{http.MethodPost, "/sales-orders/abc/cancel", ""},
		{http.MethodGet, "/low-stock-alerts?severity=loud", ""},
		{http.MethodGet, "/replenishment/suggestions?status=open", ""},
		{http.MethodPost, "/replenishment/suggestions/s1/dismiss", "{"},
		{http.MethodPost, "/replenishment/create-purchase-order", "{"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, serve(h, tt.method, tt.path, tt.body).Code)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(func(context.Context) error { return nil })
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/atp/check", "").Code)
}
