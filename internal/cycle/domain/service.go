package domain

import (
	"context"
	"errors"
	"time"

	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"gorm.io/gorm"
)

// Service owns every allowance balance mutation. All writes run inside
// a transaction with guarded updates so concurrent bookings cannot
// overdraw a cycle.
type Service interface {
	// CreateInitialCycle opens the first cycle of a subscription with
	// the plan's full allowance. Fails with ErrDuplicateCycle if the
	// subscription already has one.
	CreateInitialCycle(ctx context.Context, sub subscriptiondomain.Subscription, plan plandomain.Plan) (Cycle, error)

	// Consume spends one credit for an appointment. Idempotent per
	// appointment id: replays return the current cycle without a second
	// ledger write.
	Consume(ctx context.Context, cycleID, appointmentID string) (Cycle, error)
	// ConsumeTx is Consume inside a caller-owned transaction, so a
	// booking insert and its consumption commit or roll back together.
	ConsumeTx(ctx context.Context, tx *gorm.DB, cycleID, appointmentID string) (Cycle, error)

	// Restore returns a previously consumed credit. Restoring an
	// appointment that never consumed from the cycle, or was already
	// restored, fails with ErrNothingToRestore and writes nothing.
	Restore(ctx context.Context, cycleID, appointmentID, reason string) (Cycle, error)

	// Rollover deactivates the active cycle(s), expires their leftover
	// balance, and opens a new cycle with the full allowance. Idempotent
	// on (subscription, newStart): a replay returns the existing cycle.
	Rollover(ctx context.Context, subscriptionID string, newStart, newEnd time.Time, allowanceGranted int) (Cycle, error)
	// RolloverTx is Rollover inside a caller-owned transaction.
	RolloverTx(ctx context.Context, tx *gorm.DB, subscriptionID string, newStart, newEnd time.Time, allowanceGranted int) (Cycle, error)

	// Adjust applies an administrative correction to the active cycle's
	// granted allowance and writes a `corrected` ledger event.
	Adjust(ctx context.Context, subscriptionID string, delta int, reason string) (Cycle, error)

	// ExpireRemaining forfeits the active cycle's leftover balance,
	// recording an `expired` ledger event. No-op when nothing remains.
	ExpireRemaining(ctx context.Context, subscriptionID string, reason string) (Cycle, error)
	// ExpireRemainingTx is ExpireRemaining inside a caller-owned transaction.
	ExpireRemainingTx(ctx context.Context, tx *gorm.DB, subscriptionID string, reason string) (Cycle, error)

	GetByID(ctx context.Context, cycleID string) (Cycle, error)
	GetActiveBySubscription(ctx context.Context, subscriptionID string) (Cycle, error)

	// Reconcile replays the cycle's ledger and reports drift between the
	// replayed and stored balances. Drift is never auto-corrected.
	Reconcile(ctx context.Context, cycleID string) (ReconciliationReport, error)
}

var (
	ErrInvalidCycleID        = errors.New("invalid_cycle_id")
	ErrInvalidSubscription   = errors.New("invalid_subscription_id")
	ErrInvalidAppointmentID  = errors.New("invalid_appointment_id")
	ErrInvalidAllowance      = errors.New("invalid_allowance")
	ErrInvalidPeriod         = errors.New("invalid_period")
	ErrCycleNotFound         = errors.New("cycle_not_found")
	ErrNoActiveCycle         = errors.New("no_active_cycle")
	ErrCycleInactive         = errors.New("cycle_inactive")
	ErrDuplicateCycle        = errors.New("duplicate_cycle")
	ErrInsufficientAllowance = errors.New("insufficient_allowance")
	ErrNothingToRestore      = errors.New("nothing_to_restore")
	ErrInvalidAdjustment     = errors.New("invalid_adjustment")
)
