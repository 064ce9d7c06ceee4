package controllers

import (
	"github.com/gin-gonic/gin"
	"log"
	"net/http"
	"time"

	"mentis/internal/models/request_models"
	"mentis/internal/services"
	mem "mentis/pkg/memcache"
)

// seenBillTTL is how long a processed bill code short-circuits webhook
// redeliveries before falling through to the ledger's own dedup.
const seenBillTTL = 10 * time.Minute

type WebhookController struct {
	billingService services.BillingServiceInterface
	seenBills      mem.SeenBillStore
}

func NewWebhookController(billingService services.BillingServiceInterface, seenBills mem.SeenBillStore) *WebhookController {
	return &WebhookController{
		billingService: billingService,
		seenBills:      seenBills,
	}
}

// HandleGatewayEvent godoc
// @Summary Receive payment gateway events
// @Tags Webhooks
// @Accept json
// @Produce json
// @Router /webhooks/gateway [post]
//
// The gateway retries on non-2xx, so malformed or unhandled events are
// acknowledged anyway; failures are logged for investigation.
func (w *WebhookController) HandleGatewayEvent(c *gin.Context) {

	var envelope request_models.WebhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.Printf("webhook: invalid payload: %v", err)
		c.JSON(http.StatusOK, gin.H{"message": "ignored"})
		return
	}

	event := envelope.Event
	switch event.Type {
	case "bill_paid":
		if event.Data.Bill == nil || event.Data.Bill.Code == "" {
			log.Printf("webhook: bill_paid event without bill code")
			break
		}
		code := event.Data.Bill.Code
		if w.seenBills != nil && w.seenBills.MarkSeen(code, seenBillTTL) {
			log.Printf("webhook: bill %s already processed, skipping", code)
			break
		}
		if err := w.billingService.ConfirmPayment(c.Request.Context(), code); err != nil {
			log.Printf("webhook: failed to confirm payment for bill %s: %v", code, err)
		}
	case "bill_created", "charge_rejected", "subscription_canceled":
		// Informational events; nothing to do locally.
	default:
		log.Printf("webhook: unhandled event type %q", event.Type)
	}

	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
