package server

import (
	"net/http"
	"strconv"
	"strings"

	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListSubscriptionLedger(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_subscription_id", "invalid subscription id"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.ledgerSvc.ListBySubscription(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) GetCycle(c *gin.Context) {
	cycle, err := s.cycleSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cycle})
}

func (s *Server) ListCycleLedger(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		AbortWithError(c, cycledomain.ErrInvalidCycleID)
		return
	}

	entries, err := s.ledgerSvc.ListByCycle(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) ReconcileCycle(c *gin.Context) {
	report, err := s.cycleSvc.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}
