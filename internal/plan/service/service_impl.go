package service

import (
	"context"
	"errors"
	"strings"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/cache"
	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cache cache.Cache[snowflake.ID, plandomain.Plan] `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	cache cache.Cache[snowflake.ID, plandomain.Plan]
}

func NewService(p Params) plandomain.Service {
	planCache := p.Cache
	if planCache == nil {
		planCache = cache.NoopCache[snowflake.ID, plandomain.Plan]{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		cache: planCache,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (plandomain.Plan, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || planID == 0 {
		return plandomain.Plan{}, plandomain.ErrInvalidPlanID
	}

	if cached, ok := s.cache.Get(planID); ok {
		return cached, nil
	}

	var plan plandomain.Plan
	err = s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", planID, true).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return plandomain.Plan{}, plandomain.ErrPlanNotFound
		}
		return plandomain.Plan{}, err
	}

	s.cache.Set(planID, plan, cache.PlanCacheTTL)
	return plan, nil
}

func (s *Service) GetByInterval(ctx context.Context, unit plandomain.IntervalUnit, count int) (plandomain.Plan, error) {
	if unit == "" || count <= 0 {
		return plandomain.Plan{}, plandomain.ErrInvalidInterval
	}

	var plan plandomain.Plan
	err := s.db.WithContext(ctx).
		Where("interval_unit = ? AND interval_count = ? AND is_active = ?", unit, count, true).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return plandomain.Plan{}, plandomain.ErrPlanNotFound
		}
		return plandomain.Plan{}, err
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context) ([]plandomain.Plan, error) {
	var plans []plandomain.Plan
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("interval_unit, interval_count").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}
