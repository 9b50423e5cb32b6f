package server

import (
	"errors"
	"net/http"

	coveragedomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/domain"
	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	ledgerdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/domain"
	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/policy"
	renewaldomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/domain"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"github.com/gin-gonic/gin"
)

// APIError is the wire shape of every non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string { return e.Code }

var (
	ErrNotFound           = &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrUnauthorized       = &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "unauthorized"}
	ErrTooManyRequests    = &APIError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many requests"}
	ErrServiceUnavailable = &APIError{Status: http.StatusServiceUnavailable, Code: "service_unavailable", Message: "service unavailable"}
)

func invalidRequestError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request body"}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// notFoundErrors map to 404, conflictErrors to 409. Anything with an
// invalid_* code is a 400. Unknown errors are opaque 500s.
var notFoundErrors = []error{
	plandomain.ErrPlanNotFound,
	subscriptiondomain.ErrSubscriptionNotFound,
	cycledomain.ErrCycleNotFound,
	cycledomain.ErrNoActiveCycle,
	coveragedomain.ErrRecordNotFound,
	renewaldomain.ErrEventNotFound,
}

var conflictErrors = []error{
	subscriptiondomain.ErrDuplicateSubscription,
	subscriptiondomain.ErrInvalidTransition,
	subscriptiondomain.ErrSubscriptionNotCanceled,
	cycledomain.ErrDuplicateCycle,
	cycledomain.ErrCycleInactive,
	cycledomain.ErrInsufficientAllowance,
	cycledomain.ErrNothingToRestore,
	coveragedomain.ErrNotCovered,
	renewaldomain.ErrEventNotQueued,
}

var validationErrors = []error{
	plandomain.ErrInvalidPlanID,
	plandomain.ErrInvalidInterval,
	subscriptiondomain.ErrInvalidUser,
	subscriptiondomain.ErrInvalidPlan,
	subscriptiondomain.ErrInvalidExternalID,
	subscriptiondomain.ErrInvalidPeriod,
	subscriptiondomain.ErrInvalidSubscriptionID,
	cycledomain.ErrInvalidCycleID,
	cycledomain.ErrInvalidSubscription,
	cycledomain.ErrInvalidAppointmentID,
	cycledomain.ErrInvalidAllowance,
	cycledomain.ErrInvalidPeriod,
	cycledomain.ErrInvalidAdjustment,
	coveragedomain.ErrInvalidUser,
	coveragedomain.ErrInvalidAppointmentID,
	coveragedomain.ErrInvalidDuration,
	coveragedomain.ErrInvalidAmount,
	ledgerdomain.ErrInvalidSubscription,
	ledgerdomain.ErrInvalidCycle,
	ledgerdomain.ErrInvalidReason,
	renewaldomain.ErrInvalidProvider,
	renewaldomain.ErrInvalidEvent,
	renewaldomain.ErrInvalidEventType,
	renewaldomain.ErrInvalidPeriod,
	policy.ErrUnknownActor,
	policy.ErrUnknownAction,
}

// AbortWithError translates a service error into an HTTP response.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			abortWithCode(c, http.StatusNotFound, target.Error())
			return
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			abortWithCode(c, http.StatusConflict, target.Error())
			return
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			abortWithCode(c, http.StatusBadRequest, target.Error())
			return
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": &APIError{Code: "internal_error", Message: "internal server error"},
	})
}

func abortWithCode(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": &APIError{Status: status, Code: code, Message: code},
	})
}
