package server

import (
	"errors"
	"net/http"
	"time"

	coveragedomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/domain"
	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/policy"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type cancelAppointmentRequest struct {
	Actor            string    `json:"actor"`
	Action           string    `json:"action"`
	AppointmentStart time.Time `json:"appointment_start"`
}

// CancelAppointment applies the restoration policy to a cancellation,
// reschedule, or no-show. The credit comes back at most once per
// appointment.
func (s *Server) CancelAppointment(c *gin.Context) {
	var req cancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Action == "" {
		req.Action = string(policy.ActionCancel)
	}
	if req.AppointmentStart.IsZero() {
		AbortWithError(c, newValidationError("appointment_start", "required", "appointment start is required"))
		return
	}

	ctx := c.Request.Context()
	appointmentID := c.Param("id")

	record, err := s.coverageSvc.GetByAppointment(ctx, appointmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if record.Outcome != coveragedomain.OutcomeCovered || record.CycleID == nil {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"restored": false,
			"reason":   "not_covered",
		}})
		return
	}

	until := req.AppointmentStart.Sub(s.clock.Now())
	decision, err := s.policy.Decide(policy.Actor(req.Actor), policy.Action(req.Action), until)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !decision.Restore {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"restored": false,
			"reason":   "policy",
		}})
		return
	}

	cycle, err := s.cycleSvc.Restore(ctx, record.CycleID.String(), appointmentID, decision.Reason)
	if errors.Is(err, cycledomain.ErrNothingToRestore) {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"restored": false,
			"reason":   "already_restored",
		}})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("credit restored",
		zap.String("appointment_id", appointmentID),
		zap.String("cycle_id", cycle.ID.String()),
		zap.String("reason", decision.Reason))
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"restored": true,
		"reason":   decision.Reason,
		"cycle":    cycle,
	}})
}
