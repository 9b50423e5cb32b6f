package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createSubscriptionRequest struct {
	UserID            string    `json:"user_id"`
	PlanID            string    `json:"plan_id"`
	ExternalBillingID string    `json:"external_billing_id"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
}

// CreateSubscription registers a membership after the first successful
// charge and opens its first cycle with the plan's full allowance.
func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	plan, err := s.planSvc.GetByID(ctx, strings.TrimSpace(req.PlanID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if req.PeriodStart.IsZero() {
		req.PeriodStart = s.clock.Now()
	}
	if req.PeriodEnd.IsZero() {
		req.PeriodEnd = plan.PeriodEnd(req.PeriodStart)
	}

	sub, err := s.subSvc.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID:            strings.TrimSpace(req.UserID),
		PlanID:            plan.ID.String(),
		ExternalBillingID: strings.TrimSpace(req.ExternalBillingID),
		PeriodStart:       req.PeriodStart,
		PeriodEnd:         req.PeriodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cycle, err := s.cycleSvc.CreateInitialCycle(ctx, sub, plan)
	if err != nil && !errors.Is(err, cycledomain.ErrDuplicateCycle) {
		s.log.Error("initial cycle creation failed",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"subscription": sub,
		"cycle":        cycle,
	}})
}

func (s *Server) GetSubscription(c *gin.Context) {
	sub, err := s.subSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sub})
}

// GetUserSubscription returns the user's active membership and its
// current cycle, if any.
func (s *Server) GetUserSubscription(c *gin.Context) {
	ctx := c.Request.Context()
	sub, err := s.subSvc.GetActiveByUserID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"subscription": sub}
	cycle, err := s.cycleSvc.GetActiveBySubscription(ctx, sub.ID.String())
	if err == nil {
		resp["cycle"] = cycle
	} else if !errors.Is(err, cycledomain.ErrNoActiveCycle) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type reactivateSubscriptionRequest struct {
	PlanID            string    `json:"plan_id"`
	ExternalBillingID string    `json:"external_billing_id"`
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
}

// ReactivateSubscription opens a fresh lineage for a canceled
// membership. Old cycles stay closed.
func (s *Server) ReactivateSubscription(c *gin.Context) {
	var req reactivateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	canceled, err := s.subSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		planID = canceled.PlanID.String()
	}
	plan, err := s.planSvc.GetByID(ctx, planID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if req.PeriodStart.IsZero() {
		req.PeriodStart = s.clock.Now()
	}
	if req.PeriodEnd.IsZero() {
		req.PeriodEnd = plan.PeriodEnd(req.PeriodStart)
	}

	sub, err := s.subSvc.Reactivate(ctx, canceled.ID.String(), subscriptiondomain.CreateSubscriptionRequest{
		UserID:            canceled.UserID.String(),
		PlanID:            plan.ID.String(),
		ExternalBillingID: strings.TrimSpace(req.ExternalBillingID),
		PeriodStart:       req.PeriodStart,
		PeriodEnd:         req.PeriodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cycle, err := s.cycleSvc.CreateInitialCycle(ctx, sub, plan)
	if err != nil && !errors.Is(err, cycledomain.ErrDuplicateCycle) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"subscription": sub,
		"cycle":        cycle,
	}})
}
