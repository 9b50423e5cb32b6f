package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// CreateSubscriptionRequest registers a membership after the first
// successful charge at the billing provider.
type CreateSubscriptionRequest struct {
	UserID            string
	PlanID            string
	ExternalBillingID string
	PeriodStart       time.Time
	PeriodEnd         time.Time
}

// Service owns the subscription record and its status state machine.
type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error)
	GetByID(ctx context.Context, id string) (Subscription, error)
	GetByExternalID(ctx context.Context, externalID string) (Subscription, error)
	GetActiveByUserID(ctx context.Context, userID string) (Subscription, error)
	Transition(ctx context.Context, id string, next SubscriptionStatus) (Subscription, error)
	// TransitionTx applies a status change inside a caller-owned transaction.
	TransitionTx(ctx context.Context, tx *gorm.DB, id string, next SubscriptionStatus) (Subscription, error)
	// UpdatePeriodTx moves the current billing period inside a caller-owned
	// transaction, as part of renewal processing.
	UpdatePeriodTx(ctx context.Context, tx *gorm.DB, id string, periodStart, periodEnd time.Time) error
	// Reactivate opens a fresh subscription lineage for a canceled
	// membership. The canceled row is never resurrected.
	Reactivate(ctx context.Context, canceledID string, req CreateSubscriptionRequest) (Subscription, error)
}

var (
	ErrInvalidUser             = errors.New("invalid_user")
	ErrInvalidPlan             = errors.New("invalid_plan")
	ErrInvalidExternalID       = errors.New("invalid_external_billing_id")
	ErrInvalidPeriod           = errors.New("invalid_period")
	ErrInvalidSubscriptionID   = errors.New("invalid_subscription_id")
	ErrSubscriptionNotFound    = errors.New("subscription_not_found")
	ErrDuplicateSubscription   = errors.New("duplicate_subscription")
	ErrInvalidTransition       = errors.New("invalid_status_transition")
	ErrSubscriptionNotCanceled = errors.New("subscription_not_canceled")
)
