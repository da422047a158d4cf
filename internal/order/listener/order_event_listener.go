package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"stockwise/internal/dto"
	apperrors "stockwise/internal/errors"
)

const (
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderCancelled = "OrderCancelled"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type AllocationUseCase interface {
	Allocate(ctx context.Context, orderID int64) (*dto.AllocationResult, error)
	Cancel(ctx context.Context, orderID int64) (*dto.ReleaseResult, error)
}

type OrderEvent struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	OrderID   int64     `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEventListener turns order lifecycle events into allocations and
// cancellations.
type OrderEventListener struct {
	reader     MessageReader
	uc         AllocationUseCase
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewOrderEventListener(reader MessageReader, uc AllocationUseCase, logger *zap.Logger) *OrderEventListener {
	return &OrderEventListener{
		reader:     reader,
		uc:         uc,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// NewKafkaReader builds a consumer-group reader for the order events topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Start consumes events until ctx ends. An offset is committed only after
// its event was handled or found unprocessable, so a transient failure is
// retried in place and redelivered after a restart.
func (l *OrderEventListener) Start(ctx context.Context) {
	l.logger.Info("starting order event listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping order event listener")
			return
		default:
			msg, err := l.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to fetch kafka message", zap.Error(err))
				if !l.wait(ctx) {
					return
				}
				continue
			}

			for {
				err := l.processMessage(ctx, msg.Value)
				if err == nil {
					break
				}
				l.logger.Warn("order event will be retried",
					zap.Int64("offset", msg.Offset),
					zap.Int("partition", msg.Partition),
					zap.Error(err),
				)
				if !l.wait(ctx) {
					return
				}
			}

			if err := l.reader.CommitMessages(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to commit kafka message", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
		}
	}
}

func (l *OrderEventListener) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(l.retryDelay):
		return true
	}
}

// processMessage returns an error only for failures worth retrying.
// Malformed events and client errors are logged and skipped.
func (l *OrderEventListener) processMessage(ctx context.Context, value []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("failed to unmarshal order event", zap.Error(err))
		return nil
	}

	logger := l.logger.With(
		zap.String("eventId", event.EventID),
		zap.String("eventType", event.EventType),
		zap.Int64("orderId", event.OrderID),
	)

	if event.OrderID <= 0 {
		logger.Warn("order event without order id")
		return nil
	}

	switch event.EventType {
	case EventOrderConfirmed:
		res, err := l.uc.Allocate(ctx, event.OrderID)
		if err != nil {
			return skipPermanent(logger, "allocation from event failed", err)
		}
		logger.Info("order allocated from event", zap.String("status", res.Order.Status))
	case EventOrderCancelled:
		res, err := l.uc.Cancel(ctx, event.OrderID)
		if err != nil {
			return skipPermanent(logger, "cancellation from event failed", err)
		}
		if len(res.FailedKeys) > 0 {
			logger.Warn("cancellation left reservations behind", zap.Int("failedKeys", len(res.FailedKeys)))
			return apperrors.NewConflictError("reservations left after cancellation")
		}
		logger.Info("order cancelled from event", zap.Int("released", res.Released))
	default:
		logger.Debug("ignoring order event")
	}
	return nil
}

func skipPermanent(logger *zap.Logger, msg string, err error) error {
	if _, ok := apperrors.IsNotFoundError(err); ok {
		logger.Warn(msg, zap.Error(err))
		return nil
	}
	if _, ok := apperrors.IsConflictError(err); ok {
		logger.Warn(msg, zap.Error(err))
		return nil
	}
	if _, ok := apperrors.IsValidationError(err); ok {
		logger.Warn(msg, zap.Error(err))
		return nil
	}
	logger.Error(msg, zap.Error(err))
	return err
}
