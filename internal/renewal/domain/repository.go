package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent stores a delivery record. Returns false when another
	// delivery of the same (provider, event id) already won the insert.
	InsertEvent(ctx context.Context, db *gorm.DB, event *ProviderEvent) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*ProviderEvent, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	SetUnmatched(ctx context.Context, db *gorm.DB, id snowflake.ID, unmatched bool) error
	ListUnmatched(ctx context.Context, db *gorm.DB, limit int) ([]ProviderEvent, error)
}
