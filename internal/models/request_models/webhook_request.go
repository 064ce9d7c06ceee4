package request_models

// WebhookEnvelope is the gateway's event envelope. Only bill events carry
// the fields we read; everything else is acknowledged and dropped.
type WebhookEnvelope struct {
	Event WebhookEvent `json:"event"`
}

type WebhookEvent struct {
	Type      string           `json:"type"`
	CreatedAt string           `json:"created_at"`
	Data      WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	Bill *WebhookBill `json:"bill,omitempty"`
}

type WebhookBill struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Amount string `json:"amount"`
	Status string `json:"status"`

	Customer struct {
		ID   int64  `json:"id"`
		Code string `json:"code"`
	} `json:"customer"`
	Subscription *struct {
		ID int64 `json:"id"`
	} `json:"subscription"`
}
