package server

import (
	"net/http"
	"strconv"
	"strings"

	auditdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/domain"
	"github.com/gin-gonic/gin"
)

type adjustAllowanceRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// AdjustAllowance applies an operator correction to the subscription's
// active cycle. Used for plan repoints and support credits.
func (s *Server) AdjustAllowance(c *gin.Context) {
	var req adjustAllowanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Delta == 0 {
		AbortWithError(c, newValidationError("delta", "invalid_adjustment", "delta must be non-zero"))
		return
	}

	ctx := c.Request.Context()
	subscriptionID := c.Param("id")

	cycle, err := s.cycleSvc.Adjust(ctx, subscriptionID, req.Delta, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionAllowanceAdjusted,
		TargetType: "cycle",
		TargetID:   cycle.ID.String(),
		Metadata: map[string]any{
			"subscription_id": subscriptionID,
			"delta":           req.Delta,
			"reason":          req.Reason,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": cycle})
}

func (s *Server) ListUnmatchedWebhooks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := s.renewalSvc.ListUnmatched(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

type relinkWebhookRequest struct {
	Provider       string `json:"provider"`
	EventID        string `json:"event_id"`
	SubscriptionID string `json:"subscription_id"`
}

func (s *Server) RelinkWebhook(c *gin.Context) {
	var req relinkWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.renewalSvc.Relink(c.Request.Context(),
		strings.TrimSpace(req.Provider),
		strings.TrimSpace(req.EventID),
		strings.TrimSpace(req.SubscriptionID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListAuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListFilter{
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: strings.TrimSpace(c.Query("target_type")),
		TargetID:   strings.TrimSpace(c.Query("target_id")),
		Limit:      limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
