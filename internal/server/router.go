package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	alertcontroller "stockwise/internal/alert/controller"
	"stockwise/internal/httpio"
	ledgercontroller "stockwise/internal/ledger/controller"
	ordercontroller "stockwise/internal/order/controller"
	replenishmentcontroller "stockwise/internal/replenishment/controller"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Controllers struct {
	Stock         *ledgercontroller.StockController
	SalesOrders   *ordercontroller.SalesOrderController
	Alerts        *alertcontroller.AlertController
	Replenishment *replenishmentcontroller.ReplenishmentController
}

func NewRouter(c Controllers, db Pinger, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", health(db, logger))

	r.Post("/atp/check", c.Stock.CheckATP)
	r.Route("/stock", func(r chi.Router) {
		r.Post("/search", c.Stock.SearchStock)
		r.Post("/receipts", c.Stock.Receive)
		r.Post("/adjustments", c.Stock.Adjust)
	})

	r.Route("/sales-orders/{orderId}", func(r chi.Router) {
		r.Post("/allocate", c.SalesOrders.Allocate)
		r.Post("/release-reservations", c.SalesOrders.ReleaseReservations)
		r.Post("/cancel", c.SalesOrders.Cancel)
	})

	r.Route("/low-stock-alerts", func(r chi.Router) {
		r.Get("/", c.Alerts.List)
		r.Get("/summary", c.Alerts.Summary)
		r.Post("/generate", c.Alerts.Generate)
		r.Post("/send-notifications", c.Alerts.SendNotifications)
		r.Post("/{alertId}/resolve", c.Alerts.Resolve)
	})

	r.Route("/replenishment", func(r chi.Router) {
		r.Get("/suggestions", c.Replenishment.List)
		r.Post("/suggestions/generate", c.Replenishment.Generate)
		r.Post("/suggestions/{suggestionId}/dismiss", c.Replenishment.Dismiss)
		r.Get("/summary", c.Replenishment.Summary)
		r.Post("/create-purchase-order", c.Replenishment.CreatePurchaseOrder)
	})

	return r
}

func health(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			httpio.WriteJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpio.WriteJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("requestId", middleware.GetReqID(r.Context())),
			)
		})
	}
}
