package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stockwise/internal/domain"
)

type alertPayload struct {
	AlertID          string    `json:"alertId"`
	ProductVariantID int64     `json:"productVariantId"`
	WarehouseID      int64     `json:"warehouseId"`
	CurrentQty       int       `json:"currentQty"`
	MinQty           int       `json:"minQty"`
	ShortageQty      int       `json:"shortageQty"`
	Severity         string    `json:"severity"`
	CreatedAt        time.Time `json:"createdAt"`
}

// WebhookNotifier posts each alert as JSON to a fixed URL. Any non-2xx
// answer counts as a failed delivery.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, a domain.LowStockAlert) error {
	body, err := json.Marshal(alertPayload{
		AlertID:          a.ID,
		ProductVariantID: a.VariantID,
		WarehouseID:      a.WarehouseID,
		CurrentQty:       a.CurrentQty,
		MinQty:           a.MinQty,
		ShortageQty:      a.ShortageQty,
		Severity:         string(a.Severity),
		CreatedAt:        a.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting alert webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook answered %d", resp.StatusCode)
	}
	return nil
}
