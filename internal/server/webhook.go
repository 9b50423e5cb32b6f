package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	renewaldomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/domain"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type billingWebhookRequest struct {
	EventID                string `json:"event_id"`
	EventType              string `json:"event_type"`
	ExternalSubscriptionID string `json:"external_subscription_id"`
	PeriodStart            int64  `json:"period_start"`
	PeriodEnd              int64  `json:"period_end"`
	ChargeAmount           int64  `json:"charge_amount"`
	Currency               string `json:"currency"`
}

// BillingWebhook ingests an already-verified provider delivery.
// Redeliveries and unknown event types are acknowledged with 200 so
// the provider stops retrying.
func (s *Server) BillingWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Request.Body = http.NoBody

	var req billingWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event := renewaldomain.WebhookEvent{
		Provider:               c.Param("provider"),
		EventID:                req.EventID,
		EventType:              req.EventType,
		ExternalSubscriptionID: req.ExternalSubscriptionID,
		ChargeAmount:           req.ChargeAmount,
		Currency:               req.Currency,
		Payload:                body,
	}
	if req.PeriodStart > 0 {
		event.PeriodStart = time.Unix(req.PeriodStart, 0).UTC()
	}
	if req.PeriodEnd > 0 {
		event.PeriodEnd = time.Unix(req.PeriodEnd, 0).UTC()
	}

	if err := s.renewalSvc.Process(c.Request.Context(), event); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
