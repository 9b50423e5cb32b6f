package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	renewaldomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() renewaldomain.Repository { return &repository{} }

func (r *repository) InsertEvent(ctx context.Context, db *gorm.DB, event *renewaldomain.ProviderEvent) (bool, error) {
	err := db.WithContext(ctx).Create(event).Error
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*renewaldomain.ProviderEvent, error) {
	var record renewaldomain.ProviderEvent
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&renewaldomain.ProviderEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed_at": processedAt,
			"unmatched":    false,
		}).Error
}

func (r *repository) SetUnmatched(ctx context.Context, db *gorm.DB, id snowflake.ID, unmatched bool) error {
	return db.WithContext(ctx).
		Model(&renewaldomain.ProviderEvent{}).
		Where("id = ?", id).
		Update("unmatched", unmatched).Error
}

func (r *repository) ListUnmatched(ctx context.Context, db *gorm.DB, limit int) ([]renewaldomain.ProviderEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var records []renewaldomain.ProviderEvent
	err := db.WithContext(ctx).
		Where("unmatched = ? AND processed_at IS NULL", true).
		Order("received_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
