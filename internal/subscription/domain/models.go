package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SubscriptionStatus tracks the billing lifecycle of a membership.
type SubscriptionStatus string

const (
	SubscriptionStatusPending             SubscriptionStatus = "pending"
	SubscriptionStatusActive              SubscriptionStatus = "active"
	SubscriptionStatusPastDue             SubscriptionStatus = "past_due"
	SubscriptionStatusPendingCancellation SubscriptionStatus = "pending_cancellation"
	SubscriptionStatusCanceled            SubscriptionStatus = "canceled"
)

// Subscription links a patient to a plan and to the external billing
// provider's subscription record. The external id is the idempotency
// key used to match webhook deliveries.
type Subscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	UserID             snowflake.ID       `gorm:"not null;index" json:"user_id"`
	PlanID             snowflake.ID       `gorm:"not null;index" json:"plan_id"`
	ExternalBillingID  string             `gorm:"type:text;not null;uniqueIndex" json:"external_billing_id"`
	Status             SubscriptionStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	CurrentPeriodStart time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `gorm:"not null" json:"current_period_end"`
	CanceledAt         *time.Time         `gorm:"column:canceled_at" json:"canceled_at,omitempty"`
	Metadata           datatypes.JSONMap  `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// CanTransition reports whether the status state machine allows moving
// from the current status to next. Canceled is terminal; reactivation
// always creates a new subscription lineage.
func (s Subscription) CanTransition(next SubscriptionStatus) bool {
	switch s.Status {
	case SubscriptionStatusPending:
		return next == SubscriptionStatusActive || next == SubscriptionStatusCanceled
	case SubscriptionStatusActive:
		return next == SubscriptionStatusPastDue ||
			next == SubscriptionStatusPendingCancellation ||
			next == SubscriptionStatusCanceled
	case SubscriptionStatusPastDue:
		return next == SubscriptionStatusActive || next == SubscriptionStatusCanceled
	case SubscriptionStatusPendingCancellation:
		return next == SubscriptionStatusActive || next == SubscriptionStatusCanceled
	default:
		return false
	}
}
