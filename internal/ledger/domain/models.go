package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AllowanceEventType classifies a balance-affecting event.
type AllowanceEventType string

const (
	EventTypeGranted   AllowanceEventType = "granted"
	EventTypeConsumed  AllowanceEventType = "consumed"
	EventTypeRestored  AllowanceEventType = "restored"
	EventTypeCorrected AllowanceEventType = "corrected"
	EventTypeExpired   AllowanceEventType = "expired"
)

// Reasons recorded on ledger events.
const (
	ReasonInitialGrant        = "initial_grant"
	ReasonRenewalGrant        = "renewal_grant"
	ReasonBookingCovered      = "booking_covered"
	ReasonDoctorCancelled     = "doctor_cancelled"
	ReasonPatientCancelled    = "patient_cancelled"
	ReasonDoctorNoShow        = "doctor_no_show"
	ReasonCycleRolledOver     = "cycle_rolled_over"
	ReasonCancellationForfeit = "cancellation_forfeit"
	ReasonAdminAdjustment     = "admin_adjustment"
)

// AllowanceEvent is one immutable row of the allowance ledger. Rows are
// only ever appended; replaying a cycle's rows in order reconstructs
// its balance exactly.
type AllowanceEvent struct {
	ID              snowflake.ID       `gorm:"primaryKey" json:"id"`
	SubscriptionID  snowflake.ID       `gorm:"not null;index" json:"subscription_id"`
	CycleID         snowflake.ID       `gorm:"not null;index" json:"cycle_id"`
	EventType       AllowanceEventType `gorm:"type:text;not null" json:"event_type"`
	AllowanceChange int                `gorm:"not null" json:"allowance_change"`
	AllowanceBefore int                `gorm:"not null" json:"allowance_before"`
	AllowanceAfter  int                `gorm:"not null" json:"allowance_after"`
	Reason          string             `gorm:"type:text;not null" json:"reason"`
	AppointmentID   *snowflake.ID      `gorm:"index" json:"appointment_id,omitempty"`
	CreatedAt       time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (AllowanceEvent) TableName() string { return "allowance_events" }
