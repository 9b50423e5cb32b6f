package server

import (
	"net/http"
	"strings"

	coveragedomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/domain"
	"github.com/gin-gonic/gin"
)

type resolveCoverageRequest struct {
	UserID          string `json:"user_id"`
	DurationMinutes int    `json:"duration_minutes"`
}

// ResolveCoverage answers whether a booking would be covered. It never
// spends allowance; booking creation calls the covered-booking
// endpoint to spend and record in one transaction.
func (s *Server) ResolveCoverage(c *gin.Context) {
	var req resolveCoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resolution, err := s.coverageSvc.Resolve(c.Request.Context(), strings.TrimSpace(req.UserID), req.DurationMinutes)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resolution})
}

type commitCoveredRequest struct {
	AppointmentID   string `json:"appointment_id"`
	UserID          string `json:"user_id"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (s *Server) CommitCoveredBooking(c *gin.Context) {
	var req commitCoveredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.coverageSvc.CommitCovered(c.Request.Context(), coveragedomain.CommitCoveredRequest{
		AppointmentID: strings.TrimSpace(req.AppointmentID),
		UserID:        strings.TrimSpace(req.UserID),
		DurationMin:   req.DurationMinutes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

type commitPaidRequest struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
	AmountCharged int64  `json:"amount_charged"`
	Currency      string `json:"currency"`
}

func (s *Server) CommitPaidBooking(c *gin.Context) {
	var req commitPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.coverageSvc.CommitUncovered(c.Request.Context(), coveragedomain.CommitUncoveredRequest{
		AppointmentID: strings.TrimSpace(req.AppointmentID),
		UserID:        strings.TrimSpace(req.UserID),
		AmountCharged: req.AmountCharged,
		Currency:      req.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) GetAppointmentCoverage(c *gin.Context) {
	record, err := s.coverageSvc.GetByAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}
