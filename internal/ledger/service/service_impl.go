package service

import (
	"context"

	ledgerdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Metrics *metrics.AllowanceMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *metrics.AllowanceMetrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, event *ledgerdomain.AllowanceEvent) error {
	if tx == nil {
		return ledgerdomain.ErrMissingTransaction
	}
	if err := ledgerdomain.ValidateEvent(event); err != nil {
		return err
	}
	if event.ID == 0 {
		event.ID = s.genID.Generate()
	}

	if err := tx.WithContext(ctx).Create(event).Error; err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncAllowanceEvent(string(event.EventType))
	}
	return nil
}

func (s *Service) ListByCycle(ctx context.Context, cycleID snowflake.ID) ([]ledgerdomain.AllowanceEvent, error) {
	if cycleID == 0 {
		return nil, ledgerdomain.ErrInvalidCycle
	}
	var events []ledgerdomain.AllowanceEvent
	err := s.db.WithContext(ctx).
		Where("cycle_id = ?", cycleID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionID snowflake.ID, limit int) ([]ledgerdomain.AllowanceEvent, error) {
	if subscriptionID == 0 {
		return nil, ledgerdomain.ErrInvalidSubscription
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []ledgerdomain.AllowanceEvent
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) FindByAppointment(ctx context.Context, tx *gorm.DB, cycleID snowflake.ID, appointmentID snowflake.ID) ([]ledgerdomain.AllowanceEvent, error) {
	if tx == nil {
		tx = s.db
	}
	if cycleID == 0 {
		return nil, ledgerdomain.ErrInvalidCycle
	}
	var events []ledgerdomain.AllowanceEvent
	err := tx.WithContext(ctx).
		Where("cycle_id = ? AND appointment_id = ?", cycleID, appointmentID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
