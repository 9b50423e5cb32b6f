package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Cycle is one billing period of a subscription and the only place an
// allowance balance is stored. At most one cycle per subscription is
// active at any time; `allowance_remaining == allowance_granted -
// allowance_used` holds after every mutation.
type Cycle struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_cycles_period,priority:1" json:"subscription_id"`
	CycleStart         time.Time    `gorm:"not null;uniqueIndex:ux_cycles_period,priority:2" json:"cycle_start"`
	CycleEnd           time.Time    `gorm:"not null" json:"cycle_end"`
	AllowanceGranted   int          `gorm:"not null" json:"allowance_granted"`
	AllowanceUsed      int          `gorm:"not null;default:0" json:"allowance_used"`
	AllowanceRemaining int          `gorm:"not null" json:"allowance_remaining"`
	IsActive           bool         `gorm:"not null;default:true;index" json:"is_active"`
	DeactivatedAt      *time.Time   `gorm:"column:deactivated_at" json:"deactivated_at,omitempty"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Cycle) TableName() string { return "cycles" }

// ReconciliationReport compares a cycle's stored balance against the
// balance replayed from its ledger events.
type ReconciliationReport struct {
	CycleID           snowflake.ID `json:"cycle_id"`
	SubscriptionID    snowflake.ID `json:"subscription_id"`
	StoredRemaining   int          `json:"stored_remaining"`
	ReplayedRemaining int          `json:"replayed_remaining"`
	Drift             int          `json:"drift"`
	Consistent        bool         `json:"consistent"`
	EventCount        int          `json:"event_count"`
}
