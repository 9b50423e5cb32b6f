package domain

import (
	"context"
	"errors"
)

// Service is the read-only plan catalog.
type Service interface {
	GetByID(ctx context.Context, id string) (Plan, error)
	GetByInterval(ctx context.Context, unit IntervalUnit, count int) (Plan, error)
	List(ctx context.Context) ([]Plan, error)
}

var (
	ErrInvalidPlanID   = errors.New("invalid_plan_id")
	ErrInvalidInterval = errors.New("invalid_interval")
	ErrPlanNotFound    = errors.New("plan_not_found")
)
