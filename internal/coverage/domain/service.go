package domain

import (
	"context"
	"errors"
)

// CommitCoveredRequest atomically spends a credit for an appointment
// and records the covered outcome.
type CommitCoveredRequest struct {
	AppointmentID string
	UserID        string
	DurationMin   int
}

// CommitUncoveredRequest records a full-price booking.
type CommitUncoveredRequest struct {
	AppointmentID string
	UserID        string
	AmountCharged int64
	Currency      string
}

// Service answers and records coverage decisions.
type Service interface {
	// Resolve is a pure read: it reports whether a booking of the given
	// duration would be covered right now, without spending anything.
	Resolve(ctx context.Context, userID string, durationMin int) (Resolution, error)

	// CommitCovered re-resolves, consumes one credit, and writes the
	// CoverageRecord in a single transaction. Replays for the same
	// appointment return the existing record.
	CommitCovered(ctx context.Context, req CommitCoveredRequest) (CoverageRecord, error)

	// CommitUncovered records a paid booking. Idempotent per appointment.
	CommitUncovered(ctx context.Context, req CommitUncoveredRequest) (CoverageRecord, error)

	GetByAppointment(ctx context.Context, appointmentID string) (CoverageRecord, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidAppointmentID = errors.New("invalid_appointment_id")
	ErrInvalidDuration      = errors.New("invalid_duration")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrNotCovered           = errors.New("booking_not_covered")
	ErrRecordNotFound       = errors.New("coverage_record_not_found")
)
