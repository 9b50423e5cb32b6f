package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service is the append-only writer and reader of the allowance ledger.
type Service interface {
	// AppendTx validates and appends one event inside a caller-owned
	// transaction; ledger writes never commit separately from the
	// balance mutation they record.
	AppendTx(ctx context.Context, tx *gorm.DB, event *AllowanceEvent) error
	ListByCycle(ctx context.Context, cycleID snowflake.ID) ([]AllowanceEvent, error)
	ListBySubscription(ctx context.Context, subscriptionID snowflake.ID, limit int) ([]AllowanceEvent, error)
	// FindByAppointment returns the events a given appointment produced
	// on a cycle, oldest first.
	FindByAppointment(ctx context.Context, tx *gorm.DB, cycleID snowflake.ID, appointmentID snowflake.ID) ([]AllowanceEvent, error)
}

// Service errors.
var (
	ErrInvalidSubscription  = errors.New("invalid_subscription_id")
	ErrInvalidCycle         = errors.New("invalid_cycle_id")
	ErrInvalidEventType     = errors.New("invalid_event_type")
	ErrInvalidChange        = errors.New("invalid_allowance_change")
	ErrInvalidReason        = errors.New("invalid_reason")
	ErrNegativeBalance      = errors.New("negative_allowance_balance")
	ErrBalanceDiscontinuity = errors.New("allowance_balance_discontinuity")
	ErrMissingTransaction   = errors.New("missing_transaction")
)
