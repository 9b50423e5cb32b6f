package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	userID, err := parseID(req.UserID, subscriptiondomain.ErrInvalidUser)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	planID, err := parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	externalID := strings.TrimSpace(req.ExternalBillingID)
	if externalID == "" {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidExternalID
	}
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() || !req.PeriodEnd.After(req.PeriodStart) {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidPeriod
	}

	now := s.clock.Now()
	record := subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		UserID:             userID,
		PlanID:             planID,
		ExternalBillingID:  externalID,
		Status:             subscriptiondomain.SubscriptionStatusActive,
		CurrentPeriodStart: req.PeriodStart.UTC(),
		CurrentPeriodEnd:   req.PeriodEnd.UTC(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&subscriptiondomain.Subscription{}).
			Where("user_id = ? AND plan_id = ? AND status IN ?", userID, planID, liveStatuses()).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return subscriptiondomain.ErrDuplicateSubscription
		}

		if err := tx.WithContext(ctx).
			Model(&subscriptiondomain.Subscription{}).
			Where("external_billing_id = ?", externalID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return subscriptiondomain.ErrDuplicateSubscription
		}

		return tx.WithContext(ctx).Create(&record).Error
	})
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (subscriptiondomain.Subscription, error) {
	subID, err := parseID(id, subscriptiondomain.ErrInvalidSubscriptionID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return s.findOne(ctx, s.db, "id = ?", subID)
}

func (s *Service) GetByExternalID(ctx context.Context, externalID string) (subscriptiondomain.Subscription, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidExternalID
	}
	return s.findOne(ctx, s.db, "external_billing_id = ?", externalID)
}

func (s *Service) GetActiveByUserID(ctx context.Context, userID string) (subscriptiondomain.Subscription, error) {
	uid, err := parseID(userID, subscriptiondomain.ErrInvalidUser)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return s.findOne(ctx, s.db, "user_id = ? AND status = ?", uid, subscriptiondomain.SubscriptionStatusActive)
}

func (s *Service) Transition(ctx context.Context, id string, next subscriptiondomain.SubscriptionStatus) (subscriptiondomain.Subscription, error) {
	var updated subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = s.TransitionTx(ctx, tx, id, next)
		return err
	})
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return updated, nil
}

func (s *Service) TransitionTx(ctx context.Context, tx *gorm.DB, id string, next subscriptiondomain.SubscriptionStatus) (subscriptiondomain.Subscription, error) {
	subID, err := parseID(id, subscriptiondomain.ErrInvalidSubscriptionID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	current, err := s.findOne(ctx, tx, "id = ?", subID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if current.Status == next {
		return current, nil
	}
	if !current.CanTransition(next) {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTransition
	}

	now := s.clock.Now()
	updates := map[string]any{
		"status":     next,
		"updated_at": now,
	}
	if next == subscriptiondomain.SubscriptionStatusCanceled {
		updates["canceled_at"] = now
	}

	// Guarded update: a concurrent writer that already moved the status
	// away loses the race and the transition is re-evaluated by the caller.
	result := tx.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ? AND status = ?", subID, current.Status).
		Updates(updates)
	if result.Error != nil {
		return subscriptiondomain.Subscription{}, result.Error
	}
	if result.RowsAffected == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTransition
	}

	current.Status = next
	current.UpdatedAt = now
	if next == subscriptiondomain.SubscriptionStatusCanceled {
		current.CanceledAt = &now
	}
	return current, nil
}

func (s *Service) UpdatePeriodTx(ctx context.Context, tx *gorm.DB, id string, periodStart, periodEnd time.Time) error {
	subID, err := parseID(id, subscriptiondomain.ErrInvalidSubscriptionID)
	if err != nil {
		return err
	}
	if periodStart.IsZero() || periodEnd.IsZero() || !periodEnd.After(periodStart) {
		return subscriptiondomain.ErrInvalidPeriod
	}

	result := tx.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", subID).
		Updates(map[string]any{
			"current_period_start": periodStart.UTC(),
			"current_period_end":   periodEnd.UTC(),
			"updated_at":           s.clock.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return subscriptiondomain.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Service) Reactivate(ctx context.Context, canceledID string, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	prior, err := s.GetByID(ctx, canceledID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if prior.Status != subscriptiondomain.SubscriptionStatusCanceled {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotCanceled
	}

	s.log.Info("reactivating canceled membership as new lineage",
		zap.String("prior_subscription_id", prior.ID.String()),
		zap.String("user_id", prior.UserID.String()),
	)
	return s.Create(ctx, req)
}

func (s *Service) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (subscriptiondomain.Subscription, error) {
	var record subscriptiondomain.Subscription
	err := db.WithContext(ctx).Where(query, args...).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
		}
		return subscriptiondomain.Subscription{}, err
	}
	return record, nil
}

func liveStatuses() []subscriptiondomain.SubscriptionStatus {
	return []subscriptiondomain.SubscriptionStatus{
		subscriptiondomain.SubscriptionStatusPending,
		subscriptiondomain.SubscriptionStatusActive,
		subscriptiondomain.SubscriptionStatusPastDue,
		subscriptiondomain.SubscriptionStatusPendingCancellation,
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
