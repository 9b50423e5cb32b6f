package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Provider event types this processor acts on. Anything else is
// acknowledged and ignored.
const (
	EventTypeInvoicePaid         = "invoice.paid"
	EventTypePaymentFailed       = "invoice.payment_failed"
	EventTypeSubscriptionDeleted = "customer.subscription.deleted"
)

// WebhookEvent is one already-verified delivery from the billing provider.
type WebhookEvent struct {
	Provider               string
	EventID                string
	EventType              string
	ExternalSubscriptionID string
	PeriodStart            time.Time
	PeriodEnd              time.Time
	ChargeAmount           int64
	Currency               string
	Payload                []byte
}

// ProviderEvent is the stored idempotency record for a delivery. The
// unique (provider, provider_event_id) index is what makes concurrent
// redeliveries safe: only one insert wins.
type ProviderEvent struct {
	ID                     snowflake.ID   `gorm:"primaryKey"`
	Provider               string         `gorm:"type:text;not null;uniqueIndex:ux_provider_events,priority:1"`
	ProviderEventID        string         `gorm:"type:text;not null;uniqueIndex:ux_provider_events,priority:2"`
	EventType              string         `gorm:"type:text;not null"`
	ExternalSubscriptionID string         `gorm:"type:text;not null;index"`
	PeriodStart            *time.Time     `gorm:"column:period_start"`
	PeriodEnd              *time.Time     `gorm:"column:period_end"`
	ChargeAmount           int64          `gorm:"not null;default:0"`
	Currency               string         `gorm:"type:text;not null;default:'EUR'"`
	Payload                datatypes.JSON `gorm:"type:jsonb"`
	Unmatched              bool           `gorm:"not null;default:false;index"`
	ReceivedAt             time.Time      `gorm:"not null"`
	ProcessedAt            *time.Time     `gorm:"column:processed_at"`
}

// TableName sets the database table name.
func (ProviderEvent) TableName() string { return "provider_events" }
