package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	auditdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/events"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/metrics"
	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	renewaldomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/domain"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Webhook processing results recorded on the counter.
const (
	resultProcessed = "processed"
	resultDuplicate = "duplicate"
	resultUnmatched = "unmatched"
	resultIgnored   = "ignored"
	resultFailed    = "failed"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        config.Config
	Repo          renewaldomain.Repository
	Subscriptions subscriptiondomain.Service
	Cycles        cycledomain.Service
	Plans         plandomain.Service
	Outbox        *events.Outbox
	Audit         auditdomain.Service
	Metrics       *metrics.AllowanceMetrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	forfeitOnCancel bool
	repo            renewaldomain.Repository
	subscriptions   subscriptiondomain.Service
	cycles          cycledomain.Service
	plans           plandomain.Service
	outbox          *events.Outbox
	audit           auditdomain.Service
	metrics         *metrics.AllowanceMetrics
}

func NewService(p Params) renewaldomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("renewal.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		forfeitOnCancel: p.Config.ForfeitOnCancel,
		repo:            p.Repo,
		subscriptions:   p.Subscriptions,
		cycles:          p.Cycles,
		plans:           p.Plans,
		outbox:          p.Outbox,
		audit:           p.Audit,
		metrics:         p.Metrics,
	}
}

func (s *Service) Process(ctx context.Context, event renewaldomain.WebhookEvent) error {
	if err := normalize(&event); err != nil {
		return err
	}

	switch event.EventType {
	case renewaldomain.EventTypeInvoicePaid,
		renewaldomain.EventTypePaymentFailed,
		renewaldomain.EventTypeSubscriptionDeleted:
	default:
		// Providers send far more event types than this subsystem
		// cares about. Acknowledge so they stop redelivering.
		s.recordResult(resultIgnored)
		return nil
	}

	stored, fresh, err := s.storeDelivery(ctx, event)
	if err != nil {
		return err
	}
	if stored.ProcessedAt != nil {
		s.log.Info("webhook replay skipped",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.EventID))
		s.recordResult(resultDuplicate)
		return nil
	}
	if !fresh {
		s.log.Warn("retrying partially processed webhook",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.EventID))
	}

	sub, err := s.subscriptions.GetByExternalID(ctx, event.ExternalSubscriptionID)
	if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		// Likely a sync gap with the provider. Queue for an operator
		// instead of bouncing the delivery forever.
		if qerr := s.repo.SetUnmatched(ctx, s.db, stored.ID, true); qerr != nil {
			return qerr
		}
		s.log.Error("webhook matches no subscription",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.EventID),
			zap.String("external_subscription_id", event.ExternalSubscriptionID))
		s.recordResult(resultUnmatched)
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.dispatch(ctx, stored, sub); err != nil {
		s.recordResult(resultFailed)
		return err
	}
	s.recordResult(resultProcessed)
	return nil
}

func (s *Service) ListUnmatched(ctx context.Context, limit int) ([]renewaldomain.ProviderEvent, error) {
	return s.repo.ListUnmatched(ctx, s.db, limit)
}

func (s *Service) Relink(ctx context.Context, provider, providerEventID, subscriptionID string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	providerEventID = strings.TrimSpace(providerEventID)
	if provider == "" || providerEventID == "" {
		return renewaldomain.ErrInvalidEvent
	}

	stored, err := s.repo.FindEvent(ctx, s.db, provider, providerEventID)
	if err != nil {
		return err
	}
	if stored == nil {
		return renewaldomain.ErrEventNotFound
	}
	if !stored.Unmatched || stored.ProcessedAt != nil {
		return renewaldomain.ErrEventNotQueued
	}

	sub, err := s.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return err
	}

	// Repoint the subscription at the provider's id so future
	// deliveries match on their own.
	res := s.db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", sub.ID).
		Update("external_billing_id", stored.ExternalSubscriptionID)
	if res.Error != nil {
		return res.Error
	}

	s.audit.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionSubscriptionRelinked,
		TargetType: "subscription",
		TargetID:   sub.ID.String(),
		Metadata: map[string]any{
			"provider":                 stored.Provider,
			"provider_event_id":        stored.ProviderEventID,
			"external_subscription_id": stored.ExternalSubscriptionID,
		},
	})

	sub.ExternalBillingID = stored.ExternalSubscriptionID
	return s.dispatch(ctx, stored, sub)
}

// storeDelivery records the delivery and reports whether this call won
// the insert. Losing the insert race is not an error.
func (s *Service) storeDelivery(ctx context.Context, event renewaldomain.WebhookEvent) (*renewaldomain.ProviderEvent, bool, error) {
	record := &renewaldomain.ProviderEvent{
		ID:                     s.genID.Generate(),
		Provider:               event.Provider,
		ProviderEventID:        event.EventID,
		EventType:              event.EventType,
		ExternalSubscriptionID: event.ExternalSubscriptionID,
		ChargeAmount:           event.ChargeAmount,
		Currency:               event.Currency,
		ReceivedAt:             s.clock.Now(),
	}
	if !event.PeriodStart.IsZero() {
		start := event.PeriodStart.UTC()
		record.PeriodStart = &start
	}
	if !event.PeriodEnd.IsZero() {
		end := event.PeriodEnd.UTC()
		record.PeriodEnd = &end
	}
	if len(event.Payload) > 0 {
		record.Payload = datatypes.JSON(event.Payload)
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return record, true, nil
	}

	stored, err := s.repo.FindEvent(ctx, s.db, event.Provider, event.EventID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, renewaldomain.ErrInvalidEvent
	}
	return stored, false, nil
}

func (s *Service) dispatch(ctx context.Context, stored *renewaldomain.ProviderEvent, sub subscriptiondomain.Subscription) error {
	switch stored.EventType {
	case renewaldomain.EventTypeInvoicePaid:
		return s.applyRenewal(ctx, stored, sub)
	case renewaldomain.EventTypePaymentFailed:
		return s.applyPaymentFailure(ctx, stored, sub)
	case renewaldomain.EventTypeSubscriptionDeleted:
		return s.applyCancellation(ctx, stored, sub)
	default:
		return renewaldomain.ErrInvalidEventType
	}
}

// applyRenewal rolls the subscription into the paid period. The
// rollover, the period move, and the processed marker commit together;
// a crash in between leaves the marker unset and the retry re-runs the
// idempotent rollover.
func (s *Service) applyRenewal(ctx context.Context, stored *renewaldomain.ProviderEvent, sub subscriptiondomain.Subscription) error {
	if stored.PeriodStart == nil || stored.PeriodEnd == nil || !stored.PeriodEnd.After(*stored.PeriodStart) {
		return renewaldomain.ErrInvalidPeriod
	}

	plan, err := s.plans.GetByID(ctx, sub.PlanID.String())
	if err != nil {
		return fmt.Errorf("resolving plan for renewal: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cycle, err := s.cycles.RolloverTx(ctx, tx, sub.ID.String(), *stored.PeriodStart, *stored.PeriodEnd, plan.AllowancePerCycle)
		if err != nil {
			return err
		}

		if err := s.subscriptions.UpdatePeriodTx(ctx, tx, sub.ID.String(), *stored.PeriodStart, *stored.PeriodEnd); err != nil {
			return err
		}
		if sub.Status == subscriptiondomain.SubscriptionStatusPending ||
			sub.Status == subscriptiondomain.SubscriptionStatusPastDue {
			if _, err := s.subscriptions.TransitionTx(ctx, tx, sub.ID.String(), subscriptiondomain.SubscriptionStatusActive); err != nil {
				return err
			}
		}

		err = s.audit.RecordTx(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionCycleRolledOver,
			TargetType: "cycle",
			TargetID:   cycle.ID.String(),
			Metadata: map[string]any{
				"subscription_id":   sub.ID.String(),
				"provider_event_id": stored.ProviderEventID,
				"cycle_start":       stored.PeriodStart,
				"cycle_end":         stored.PeriodEnd,
			},
		})
		if err != nil {
			return err
		}

		s.log.Info("renewal applied",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("cycle_id", cycle.ID.String()),
			zap.String("provider_event_id", stored.ProviderEventID))
		return s.repo.MarkProcessed(ctx, tx, stored.ID, s.clock.Now())
	})
	return err
}

func (s *Service) applyPaymentFailure(ctx context.Context, stored *renewaldomain.ProviderEvent, sub subscriptiondomain.Subscription) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sub.Status == subscriptiondomain.SubscriptionStatusActive {
			if _, err := s.subscriptions.TransitionTx(ctx, tx, sub.ID.String(), subscriptiondomain.SubscriptionStatusPastDue); err != nil {
				return err
			}
			s.log.Warn("subscription past due",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("provider_event_id", stored.ProviderEventID))
		}
		return s.repo.MarkProcessed(ctx, tx, stored.ID, s.clock.Now())
	})
}

func (s *Service) applyCancellation(ctx context.Context, stored *renewaldomain.ProviderEvent, sub subscriptiondomain.Subscription) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sub.Status != subscriptiondomain.SubscriptionStatusCanceled {
			if _, err := s.subscriptions.TransitionTx(ctx, tx, sub.ID.String(), subscriptiondomain.SubscriptionStatusCanceled); err != nil {
				return err
			}
		}

		if s.forfeitOnCancel {
			cycle, err := s.cycles.ExpireRemainingTx(ctx, tx, sub.ID.String(), "")
			if err != nil && !errors.Is(err, cycledomain.ErrNoActiveCycle) {
				return err
			}
			if err == nil {
				err = s.audit.RecordTx(ctx, tx, auditdomain.Entry{
					Action:     auditdomain.ActionAllowanceForfeited,
					TargetType: "cycle",
					TargetID:   cycle.ID.String(),
					Metadata: map[string]any{
						"subscription_id":   sub.ID.String(),
						"provider_event_id": stored.ProviderEventID,
					},
				})
				if err != nil {
					return err
				}
			}
		}

		err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventSubscriptionCanceled,
			Payload: map[string]any{
				"subscription_id": sub.ID.String(),
				"event_type":      events.EventSubscriptionCanceled,
			},
			DedupeKey: fmt.Sprintf("%s:%s", events.EventSubscriptionCanceled, sub.ID),
		})
		if err != nil {
			return err
		}

		s.log.Info("subscription canceled by provider",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("provider_event_id", stored.ProviderEventID))
		return s.repo.MarkProcessed(ctx, tx, stored.ID, s.clock.Now())
	})
}

func (s *Service) recordResult(result string) {
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(result)
	}
}

func normalize(event *renewaldomain.WebhookEvent) error {
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return renewaldomain.ErrInvalidProvider
	}
	event.EventID = strings.TrimSpace(event.EventID)
	event.EventType = strings.TrimSpace(event.EventType)
	event.ExternalSubscriptionID = strings.TrimSpace(event.ExternalSubscriptionID)
	if event.EventID == "" || event.EventType == "" || event.ExternalSubscriptionID == "" {
		return renewaldomain.ErrInvalidEvent
	}
	currency := strings.ToUpper(strings.TrimSpace(event.Currency))
	if currency == "" {
		currency = "EUR"
	}
	event.Currency = currency

	if event.EventType == renewaldomain.EventTypeInvoicePaid {
		if event.PeriodStart.IsZero() || !event.PeriodEnd.After(event.PeriodStart) {
			return renewaldomain.ErrInvalidPeriod
		}
	}
	return nil
}
