package service

import (
	"context"
	"errors"
	"strings"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	coveragedomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/domain"
	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        config.Config
	Subscriptions subscriptiondomain.Service
	Cycles        cycledomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	coveredMin    int
	subscriptions subscriptiondomain.Service
	cycles        cycledomain.Service
}

func NewService(p Params) coveragedomain.Service {
	coveredMin := p.Config.CoveredDurationMinutes
	if coveredMin <= 0 {
		coveredMin = 30
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("coverage.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		coveredMin:    coveredMin,
		subscriptions: p.Subscriptions,
		cycles:        p.Cycles,
	}
}

func (s *Service) Resolve(ctx context.Context, userID string, durationMin int) (coveragedomain.Resolution, error) {
	if _, err := parseID(userID, coveragedomain.ErrInvalidUser); err != nil {
		return coveragedomain.Resolution{}, err
	}
	if durationMin <= 0 {
		return coveragedomain.Resolution{}, coveragedomain.ErrInvalidDuration
	}
	if durationMin != s.coveredMin {
		// Longer sessions are always full price.
		return coveragedomain.Resolution{}, nil
	}

	sub, err := s.subscriptions.GetActiveByUserID(ctx, userID)
	if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		return coveragedomain.Resolution{}, nil
	}
	if err != nil {
		return coveragedomain.Resolution{}, err
	}

	cycle, err := s.cycles.GetActiveBySubscription(ctx, sub.ID.String())
	if errors.Is(err, cycledomain.ErrNoActiveCycle) {
		return coveragedomain.Resolution{}, nil
	}
	if err != nil {
		return coveragedomain.Resolution{}, err
	}
	if cycle.AllowanceRemaining <= 0 {
		return coveragedomain.Resolution{}, nil
	}

	return coveragedomain.Resolution{
		Covered:            true,
		SubscriptionID:     sub.ID.String(),
		CycleID:            cycle.ID.String(),
		AllowanceRemaining: cycle.AllowanceRemaining,
	}, nil
}

func (s *Service) CommitCovered(ctx context.Context, req coveragedomain.CommitCoveredRequest) (coveragedomain.CoverageRecord, error) {
	apptID, err := parseID(req.AppointmentID, coveragedomain.ErrInvalidAppointmentID)
	if err != nil {
		return coveragedomain.CoverageRecord{}, err
	}
	userID, err := parseID(req.UserID, coveragedomain.ErrInvalidUser)
	if err != nil {
		return coveragedomain.CoverageRecord{}, err
	}

	var out coveragedomain.CoverageRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findByAppointment(ctx, tx, apptID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, coveragedomain.ErrRecordNotFound) {
			return err
		}

		resolution, err := s.Resolve(ctx, req.UserID, req.DurationMin)
		if err != nil {
			return err
		}
		if !resolution.Covered {
			return coveragedomain.ErrNotCovered
		}

		cycle, err := s.cycles.ConsumeTx(ctx, tx, resolution.CycleID, req.AppointmentID)
		if err != nil {
			if errors.Is(err, cycledomain.ErrInsufficientAllowance) {
				// The last credit went to a concurrent booking between
				// the read and the guarded decrement.
				return coveragedomain.ErrNotCovered
			}
			return err
		}

		record := coveragedomain.CoverageRecord{
			ID:             s.genID.Generate(),
			AppointmentID:  apptID,
			UserID:         userID,
			SubscriptionID: &cycle.SubscriptionID,
			CycleID:        &cycle.ID,
			Outcome:        coveragedomain.OutcomeCovered,
			AmountCharged:  0,
			Currency:       "EUR",
			CreatedAt:      s.clock.Now(),
		}
		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		return coveragedomain.CoverageRecord{}, err
	}
	return out, nil
}

func (s *Service) CommitUncovered(ctx context.Context, req coveragedomain.CommitUncoveredRequest) (coveragedomain.CoverageRecord, error) {
	apptID, err := parseID(req.AppointmentID, coveragedomain.ErrInvalidAppointmentID)
	if err != nil {
		return coveragedomain.CoverageRecord{}, err
	}
	userID, err := parseID(req.UserID, coveragedomain.ErrInvalidUser)
	if err != nil {
		return coveragedomain.CoverageRecord{}, err
	}
	if req.AmountCharged < 0 {
		return coveragedomain.CoverageRecord{}, coveragedomain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "EUR"
	}

	var out coveragedomain.CoverageRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findByAppointment(ctx, tx, apptID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, coveragedomain.ErrRecordNotFound) {
			return err
		}

		record := coveragedomain.CoverageRecord{
			ID:            s.genID.Generate(),
			AppointmentID: apptID,
			UserID:        userID,
			Outcome:       coveragedomain.OutcomeNotCovered,
			AmountCharged: req.AmountCharged,
			Currency:      currency,
			CreatedAt:     s.clock.Now(),
		}
		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
		out = record
		return nil
	})
	if err != nil {
		return coveragedomain.CoverageRecord{}, err
	}
	return out, nil
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID string) (coveragedomain.CoverageRecord, error) {
	apptID, err := parseID(appointmentID, coveragedomain.ErrInvalidAppointmentID)
	if err != nil {
		return coveragedomain.CoverageRecord{}, err
	}
	return s.findByAppointment(ctx, s.db, apptID)
}

func (s *Service) findByAppointment(ctx context.Context, db *gorm.DB, apptID snowflake.ID) (coveragedomain.CoverageRecord, error) {
	var record coveragedomain.CoverageRecord
	err := db.WithContext(ctx).Where("appointment_id = ?", apptID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return coveragedomain.CoverageRecord{}, coveragedomain.ErrRecordNotFound
	}
	if err != nil {
		return coveragedomain.CoverageRecord{}, err
	}
	return record, nil
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
