package domain

import (
	"context"
	"errors"
)

// Service processes renewal-relevant events from the billing provider.
type Service interface {
	// Process applies one delivery. Replays of an already-processed
	// event id return nil without side effects. Deliveries that match
	// no subscription are queued for an operator instead of failing.
	Process(ctx context.Context, event WebhookEvent) error

	// ListUnmatched returns queued deliveries awaiting operator review.
	ListUnmatched(ctx context.Context, limit int) ([]ProviderEvent, error)

	// Relink points a queued delivery's external subscription id at an
	// existing subscription, then processes the delivery.
	Relink(ctx context.Context, provider, providerEventID, subscriptionID string) error
}

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidPeriod    = errors.New("invalid_event_period")
	ErrEventNotFound    = errors.New("event_not_found")
	ErrEventNotQueued   = errors.New("event_not_queued")
)
