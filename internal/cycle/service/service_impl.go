package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/events"
	ledgerdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/metrics"
	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errConcurrentUpdate signals that a guarded update lost a race and the
// caller should retry the whole operation.
var errConcurrentUpdate = errors.New("concurrent_cycle_update")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Ledger  ledgerdomain.Service
	Outbox  *events.Outbox
	Metrics *metrics.AllowanceMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	ledger  ledgerdomain.Service
	outbox  *events.Outbox
	metrics *metrics.AllowanceMetrics
}

func NewService(p Params) cycledomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("cycle.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		ledger:  p.Ledger,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

func (s *Service) CreateInitialCycle(ctx context.Context, sub subscriptiondomain.Subscription, plan plandomain.Plan) (cycledomain.Cycle, error) {
	if sub.ID == 0 {
		return cycledomain.Cycle{}, cycledomain.ErrInvalidSubscription
	}
	if plan.AllowancePerCycle <= 0 {
		return cycledomain.Cycle{}, cycledomain.ErrInvalidAllowance
	}
	if sub.CurrentPeriodStart.IsZero() || !sub.CurrentPeriodEnd.After(sub.CurrentPeriodStart) {
		return cycledomain.Cycle{}, cycledomain.ErrInvalidPeriod
	}

	var created cycledomain.Cycle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&cycledomain.Cycle{}).
			Where("subscription_id = ?", sub.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return cycledomain.ErrDuplicateCycle
		}

		var err error
		created, err = s.openCycle(ctx, tx, sub.ID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, plan.AllowancePerCycle, ledgerdomain.ReasonInitialGrant)
		return err
	})
	if err != nil {
		return cycledomain.Cycle{}, err
	}

	s.log.Info("initial cycle created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("cycle_id", created.ID.String()),
		zap.Int("allowance_granted", created.AllowanceGranted))
	return created, nil
}

func (s *Service) Consume(ctx context.Context, cycleID, appointmentID string) (cycledomain.Cycle, error) {
	var out cycledomain.Cycle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.ConsumeTx(ctx, tx, cycleID, appointmentID)
		return err
	})
	return out, err
}

func (s *Service) ConsumeTx(ctx context.Context, tx *gorm.DB, cycleID, appointmentID string) (cycledomain.Cycle, error) {
	if tx == nil {
		return cycledomain.Cycle{}, ledgerdomain.ErrMissingTransaction
	}
	id, err := parseID(cycleID, cycledomain.ErrInvalidCycleID)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	apptID, err := parseID(appointmentID, cycledomain.ErrInvalidAppointmentID)
	if err != nil {
		return cycledomain.Cycle{}, err
	}

	cur, err := s.loadCycle(ctx, tx, id)
	if err != nil {
		return cycledomain.Cycle{}, err
	}

	prior, err := s.ledger.FindByAppointment(ctx, tx, id, apptID)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	if netConsumed(prior) > 0 {
		// Replay of an already-recorded booking.
		return cur, nil
	}
	if !cur.IsActive {
		return cycledomain.Cycle{}, cycledomain.ErrCycleInactive
	}

	res := tx.WithContext(ctx).
		Model(&cycledomain.Cycle{}).
		Where("id = ? AND is_active = ? AND allowance_remaining > 0", id, true).
		Updates(map[string]any{
			"allowance_used":      gorm.Expr("allowance_used + 1"),
			"allowance_remaining": gorm.Expr("allowance_remaining - 1"),
			"updated_at":          s.clock.Now(),
		})
	if res.Error != nil {
		return cycledomain.Cycle{}, res.Error
	}
	if res.RowsAffected == 0 {
		cur, err = s.loadCycle(ctx, tx, id)
		if err != nil {
			return cycledomain.Cycle{}, err
		}
		if !cur.IsActive {
			return cycledomain.Cycle{}, cycledomain.ErrCycleInactive
		}
		if s.metrics != nil {
			s.metrics.IncInsufficientAllowance()
		}
		return cycledomain.Cycle{}, cycledomain.ErrInsufficientAllowance
	}

	cur, err = s.loadCycle(ctx, tx, id)
	if err != nil {
		return cycledomain.Cycle{}, err
	}

	event := &ledgerdomain.AllowanceEvent{
		SubscriptionID:  cur.SubscriptionID,
		CycleID:         cur.ID,
		EventType:       ledgerdomain.EventTypeConsumed,
		AllowanceChange: -1,
		AllowanceBefore: cur.AllowanceRemaining + 1,
		AllowanceAfter:  cur.AllowanceRemaining,
		Reason:          ledgerdomain.ReasonBookingCovered,
		AppointmentID:   &apptID,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.ledger.AppendTx(ctx, tx, event); err != nil {
		return cycledomain.Cycle{}, err
	}

	if cur.AllowanceRemaining == 0 {
		err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventAllowanceExhausted,
			Payload: events.AllowancePayload{
				SubscriptionID: cur.SubscriptionID.String(),
				CycleID:        cur.ID.String(),
				EventType:      events.EventAllowanceExhausted,
			}.ToMap(),
			DedupeKey: fmt.Sprintf("%s:%s", events.EventAllowanceExhausted, cur.ID),
		})
		if err != nil {
			return cycledomain.Cycle{}, err
		}
	}
	return cur, nil
}

func (s *Service) Restore(ctx context.Context, cycleID, appointmentID, reason string) (cycledomain.Cycle, error) {
	id, err := parseID(cycleID, cycledomain.ErrInvalidCycleID)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	apptID, err := parseID(appointmentID, cycledomain.ErrInvalidAppointmentID)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return cycledomain.Cycle{}, ledgerdomain.ErrInvalidReason
	}

	var out cycledomain.Cycle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.loadCycle(ctx, tx, id)
		if err != nil {
			return err
		}

		prior, err := s.ledger.FindByAppointment(ctx, tx, id, apptID)
		if err != nil {
			return err
		}
		if netConsumed(prior) <= 0 {
			return cycledomain.ErrNothingToRestore
		}
		if !cur.IsActive {
			// The credit already expired with the cycle; restoring
			// would resurrect balance on a closed period.
			s.log.Warn("restore on inactive cycle rejected",
				zap.String("cycle_id", cur.ID.String()),
				zap.String("appointment_id", apptID.String()))
			return cycledomain.ErrNothingToRestore
		}

		res := tx.WithContext(ctx).
			Model(&cycledomain.Cycle{}).
			Where("id = ? AND is_active = ? AND allowance_used > 0 AND allowance_remaining < allowance_granted", id, true).
			Updates(map[string]any{
				"allowance_used":      gorm.Expr("allowance_used - 1"),
				"allowance_remaining": gorm.Expr("allowance_remaining + 1"),
				"updated_at":          s.clock.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return cycledomain.ErrNothingToRestore
		}

		cur, err = s.loadCycle(ctx, tx, id)
		if err != nil {
			return err
		}

		event := &ledgerdomain.AllowanceEvent{
			SubscriptionID:  cur.SubscriptionID,
			CycleID:         cur.ID,
			EventType:       ledgerdomain.EventTypeRestored,
			AllowanceChange: 1,
			AllowanceBefore: cur.AllowanceRemaining - 1,
			AllowanceAfter:  cur.AllowanceRemaining,
			Reason:          reason,
			AppointmentID:   &apptID,
			CreatedAt:       s.clock.Now(),
		}
		if err := s.ledger.AppendTx(ctx, tx, event); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	return out, nil
}

func (s *Service) Rollover(ctx context.Context, subscriptionID string, newStart, newEnd time.Time, allowanceGranted int) (cycledomain.Cycle, error) {
	var out cycledomain.Cycle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.RolloverTx(ctx, tx, subscriptionID, newStart, newEnd, allowanceGranted)
		return err
	})
	return out, err
}

func (s *Service) RolloverTx(ctx context.Context, tx *gorm.DB, subscriptionID string, newStart, newEnd time.Time, allowanceGranted int) (cycledomain.Cycle, error) {
	if tx == nil {
		return cycledomain.Cycle{}, ledgerdomain.ErrMissingTransaction
	}
	subID, err := parseID(subscriptionID, cycledomain.ErrInvalidSubscription)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	if allowanceGranted <= 0 {
		return cycledomain.Cycle{}, cycledomain.ErrInvalidAllowance
	}
	if newStart.IsZero() || !newEnd.After(newStart) {
		return cycledomain.Cycle{}, cycledomain.ErrInvalidPeriod
	}
	newStart = newStart.UTC()
	newEnd = newEnd.UTC()

	var existing cycledomain.Cycle
	err = tx.WithContext(ctx).
		Where("subscription_id = ? AND cycle_start = ?", subID, newStart).
		First(&existing).Error
	switch {
	case err == nil:
		// A replayed renewal. The period was already rolled over.
		return existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return cycledomain.Cycle{}, err
	}

	var active []cycledomain.Cycle
	err = tx.WithContext(ctx).
		Where("subscription_id = ? AND is_active = ?", subID, true).
		Order("cycle_start ASC").
		Find(&active).Error
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	for i := range active {
		if err := s.deactivate(ctx, tx, &active[i], ledgerdomain.ReasonCycleRolledOver); err != nil {
			return cycledomain.Cycle{}, err
		}
	}

	created, err := s.openCycle(ctx, tx, subID, newStart, newEnd, allowanceGranted, ledgerdomain.ReasonRenewalGrant)
	if err != nil {
		if isDuplicateKey(err) {
			// Two deliveries raced past the existence check. The first
			// writer's cycle is the cycle.
			var winner cycledomain.Cycle
			ferr := tx.WithContext(ctx).
				Where("subscription_id = ? AND cycle_start = ?", subID, newStart).
				First(&winner).Error
			if ferr != nil {
				return cycledomain.Cycle{}, err
			}
			return winner, nil
		}
		return cycledomain.Cycle{}, err
	}

	err = s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventCycleRenewed,
		Payload: events.AllowancePayload{
			SubscriptionID: subID.String(),
			CycleID:        created.ID.String(),
			EventType:      events.EventCycleRenewed,
		}.ToMap(),
		DedupeKey: fmt.Sprintf("%s:%s:%d", events.EventCycleRenewed, subID, newStart.Unix()),
	})
	if err != nil {
		return cycledomain.Cycle{}, err
	}

	if s.metrics != nil {
		s.metrics.IncCycleRollover()
	}
	s.log.Info("cycle rolled over",
		zap.String("subscription_id", subID.String()),
		zap.String("cycle_id", created.ID.String()),
		zap.Time("cycle_start", newStart),
		zap.Time("cycle_end", newEnd))
	return created, nil
}

func (s *Service) Adjust(ctx context.Context, subscriptionID string, delta int, reason string) (cycledomain.Cycle, error) {
	subID, err := parseID(subscriptionID, cycledomain.ErrInvalidSubscription)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	if delta == 0 {
		return cycledomain.Cycle{}, cycledomain.ErrInvalidAdjustment
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ledgerdomain.ReasonAdminAdjustment
	}

	var out cycledomain.Cycle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.activeCycle(ctx, tx, subID)
		if err != nil {
			return err
		}

		newGranted := cur.AllowanceGranted + delta
		newRemaining := cur.AllowanceRemaining + delta
		if newGranted < 0 || newRemaining < 0 || cur.AllowanceUsed > newGranted {
			return cycledomain.ErrInvalidAdjustment
		}

		res := tx.WithContext(ctx).
			Model(&cycledomain.Cycle{}).
			Where("id = ? AND is_active = ? AND allowance_granted = ? AND allowance_remaining = ?",
				cur.ID, true, cur.AllowanceGranted, cur.AllowanceRemaining).
			Updates(map[string]any{
				"allowance_granted":   newGranted,
				"allowance_remaining": newRemaining,
				"updated_at":          s.clock.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errConcurrentUpdate
		}

		event := &ledgerdomain.AllowanceEvent{
			SubscriptionID:  cur.SubscriptionID,
			CycleID:         cur.ID,
			EventType:       ledgerdomain.EventTypeCorrected,
			AllowanceChange: delta,
			AllowanceBefore: cur.AllowanceRemaining,
			AllowanceAfter:  newRemaining,
			Reason:          reason,
			CreatedAt:       s.clock.Now(),
		}
		if err := s.ledger.AppendTx(ctx, tx, event); err != nil {
			return err
		}

		cur.AllowanceGranted = newGranted
		cur.AllowanceRemaining = newRemaining
		out = cur
		return nil
	})
	if err != nil {
		return cycledomain.Cycle{}, err
	}

	s.log.Info("allowance adjusted",
		zap.String("subscription_id", subID.String()),
		zap.String("cycle_id", out.ID.String()),
		zap.Int("delta", delta),
		zap.String("reason", reason))
	return out, nil
}

func (s *Service) ExpireRemaining(ctx context.Context, subscriptionID string, reason string) (cycledomain.Cycle, error) {
	var out cycledomain.Cycle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.ExpireRemainingTx(ctx, tx, subscriptionID, reason)
		return err
	})
	return out, err
}

func (s *Service) ExpireRemainingTx(ctx context.Context, tx *gorm.DB, subscriptionID string, reason string) (cycledomain.Cycle, error) {
	if tx == nil {
		return cycledomain.Cycle{}, ledgerdomain.ErrMissingTransaction
	}
	subID, err := parseID(subscriptionID, cycledomain.ErrInvalidSubscription)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ledgerdomain.ReasonCancellationForfeit
	}

	cur, err := s.activeCycle(ctx, tx, subID)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	if cur.AllowanceRemaining == 0 {
		return cur, nil
	}

	res := tx.WithContext(ctx).
		Model(&cycledomain.Cycle{}).
		Where("id = ? AND is_active = ? AND allowance_remaining = ?", cur.ID, true, cur.AllowanceRemaining).
		Updates(map[string]any{
			"allowance_used":      cur.AllowanceGranted,
			"allowance_remaining": 0,
			"updated_at":          s.clock.Now(),
		})
	if res.Error != nil {
		return cycledomain.Cycle{}, res.Error
	}
	if res.RowsAffected == 0 {
		return cycledomain.Cycle{}, errConcurrentUpdate
	}

	event := &ledgerdomain.AllowanceEvent{
		SubscriptionID:  cur.SubscriptionID,
		CycleID:         cur.ID,
		EventType:       ledgerdomain.EventTypeExpired,
		AllowanceChange: -cur.AllowanceRemaining,
		AllowanceBefore: cur.AllowanceRemaining,
		AllowanceAfter:  0,
		Reason:          reason,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.ledger.AppendTx(ctx, tx, event); err != nil {
		return cycledomain.Cycle{}, err
	}

	cur.AllowanceUsed = cur.AllowanceGranted
	cur.AllowanceRemaining = 0
	return cur, nil
}

func (s *Service) GetByID(ctx context.Context, cycleID string) (cycledomain.Cycle, error) {
	id, err := parseID(cycleID, cycledomain.ErrInvalidCycleID)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	return s.loadCycle(ctx, s.db, id)
}

func (s *Service) GetActiveBySubscription(ctx context.Context, subscriptionID string) (cycledomain.Cycle, error) {
	subID, err := parseID(subscriptionID, cycledomain.ErrInvalidSubscription)
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	return s.activeCycle(ctx, s.db, subID)
}

func (s *Service) Reconcile(ctx context.Context, cycleID string) (cycledomain.ReconciliationReport, error) {
	id, err := parseID(cycleID, cycledomain.ErrInvalidCycleID)
	if err != nil {
		return cycledomain.ReconciliationReport{}, err
	}
	cur, err := s.loadCycle(ctx, s.db, id)
	if err != nil {
		return cycledomain.ReconciliationReport{}, err
	}

	entries, err := s.ledger.ListByCycle(ctx, id)
	if err != nil {
		return cycledomain.ReconciliationReport{}, err
	}

	report := cycledomain.ReconciliationReport{
		CycleID:         cur.ID,
		SubscriptionID:  cur.SubscriptionID,
		StoredRemaining: cur.AllowanceRemaining,
		EventCount:      len(entries),
	}

	replayed, replayErr := ledgerdomain.ReplayBalance(entries)
	report.ReplayedRemaining = replayed
	report.Drift = cur.AllowanceRemaining - replayed
	report.Consistent = replayErr == nil && report.Drift == 0

	if s.metrics != nil {
		s.metrics.SetLedgerDrift(cur.ID.String(), float64(report.Drift))
	}
	if !report.Consistent {
		s.log.Error("ledger drift detected",
			zap.String("cycle_id", cur.ID.String()),
			zap.String("subscription_id", cur.SubscriptionID.String()),
			zap.Int("stored_remaining", report.StoredRemaining),
			zap.Int("replayed_remaining", report.ReplayedRemaining),
			zap.Error(replayErr))
		err := s.outbox.Publish(ctx, events.Event{
			Type: events.EventLedgerDriftDetected,
			Payload: events.AllowancePayload{
				SubscriptionID: cur.SubscriptionID.String(),
				CycleID:        cur.ID.String(),
				EventType:      events.EventLedgerDriftDetected,
			}.ToMap(),
			DedupeKey: fmt.Sprintf("%s:%s:%d:%d", events.EventLedgerDriftDetected, cur.ID, report.StoredRemaining, report.ReplayedRemaining),
		})
		if err != nil {
			s.log.Warn("drift notification failed", zap.Error(err))
		}
	}
	return report, nil
}

// openCycle inserts a fresh cycle and its granted event.
func (s *Service) openCycle(ctx context.Context, tx *gorm.DB, subID snowflake.ID, start, end time.Time, granted int, reason string) (cycledomain.Cycle, error) {
	now := s.clock.Now()
	record := cycledomain.Cycle{
		ID:                 s.genID.Generate(),
		SubscriptionID:     subID,
		CycleStart:         start.UTC(),
		CycleEnd:           end.UTC(),
		AllowanceGranted:   granted,
		AllowanceUsed:      0,
		AllowanceRemaining: granted,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return cycledomain.Cycle{}, err
	}

	event := &ledgerdomain.AllowanceEvent{
		SubscriptionID:  subID,
		CycleID:         record.ID,
		EventType:       ledgerdomain.EventTypeGranted,
		AllowanceChange: granted,
		AllowanceBefore: 0,
		AllowanceAfter:  granted,
		Reason:          reason,
		CreatedAt:       now,
	}
	if err := s.ledger.AppendTx(ctx, tx, event); err != nil {
		return cycledomain.Cycle{}, err
	}
	return record, nil
}

// deactivate closes one cycle, expiring whatever balance it still held
// so its ledger replays to the stored zero remaining.
func (s *Service) deactivate(ctx context.Context, tx *gorm.DB, cur *cycledomain.Cycle, reason string) error {
	now := s.clock.Now()
	res := tx.WithContext(ctx).
		Model(&cycledomain.Cycle{}).
		Where("id = ? AND is_active = ? AND allowance_remaining = ?", cur.ID, true, cur.AllowanceRemaining).
		Updates(map[string]any{
			"allowance_used":      cur.AllowanceGranted,
			"allowance_remaining": 0,
			"is_active":           false,
			"deactivated_at":      now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errConcurrentUpdate
	}

	if cur.AllowanceRemaining > 0 {
		event := &ledgerdomain.AllowanceEvent{
			SubscriptionID:  cur.SubscriptionID,
			CycleID:         cur.ID,
			EventType:       ledgerdomain.EventTypeExpired,
			AllowanceChange: -cur.AllowanceRemaining,
			AllowanceBefore: cur.AllowanceRemaining,
			AllowanceAfter:  0,
			Reason:          reason,
			CreatedAt:       now,
		}
		if err := s.ledger.AppendTx(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadCycle(ctx context.Context, db *gorm.DB, id snowflake.ID) (cycledomain.Cycle, error) {
	var record cycledomain.Cycle
	err := db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cycledomain.Cycle{}, cycledomain.ErrCycleNotFound
	}
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	return record, nil
}

func (s *Service) activeCycle(ctx context.Context, db *gorm.DB, subID snowflake.ID) (cycledomain.Cycle, error) {
	var record cycledomain.Cycle
	err := db.WithContext(ctx).
		Where("subscription_id = ? AND is_active = ?", subID, true).
		Order("cycle_start DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cycledomain.Cycle{}, cycledomain.ErrNoActiveCycle
	}
	if err != nil {
		return cycledomain.Cycle{}, err
	}
	return record, nil
}

// netConsumed counts consumed events not yet matched by a restore.
func netConsumed(entries []ledgerdomain.AllowanceEvent) int {
	net := 0
	for _, entry := range entries {
		switch entry.EventType {
		case ledgerdomain.EventTypeConsumed:
			net++
		case ledgerdomain.EventTypeRestored:
			net--
		}
	}
	return net
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
