package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CoverageOutcome is the booking-time decision recorded for an appointment.
type CoverageOutcome string

const (
	OutcomeCovered    CoverageOutcome = "covered"
	OutcomeNotCovered CoverageOutcome = "not_covered"
)

// CoverageRecord is written once per appointment and never mutated.
// A cancellation that restores the credit appends a ledger event
// instead of touching this row.
type CoverageRecord struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	AppointmentID  snowflake.ID    `gorm:"not null;uniqueIndex:ux_coverage_appointment" json:"appointment_id"`
	UserID         snowflake.ID    `gorm:"not null;index" json:"user_id"`
	SubscriptionID *snowflake.ID   `gorm:"index" json:"subscription_id,omitempty"`
	CycleID        *snowflake.ID   `gorm:"index" json:"cycle_id,omitempty"`
	Outcome        CoverageOutcome `gorm:"type:text;not null" json:"outcome"`
	AmountCharged  int64           `gorm:"not null;default:0" json:"amount_charged"`
	Currency       string          `gorm:"type:text;not null;default:'EUR'" json:"currency"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CoverageRecord) TableName() string { return "coverage_records" }

// Resolution is the answer to "would this booking be covered".
type Resolution struct {
	Covered            bool   `json:"covered"`
	SubscriptionID     string `json:"subscription_id,omitempty"`
	CycleID            string `json:"cycle_id,omitempty"`
	AllowanceRemaining int    `json:"allowance_remaining,omitempty"`
}
