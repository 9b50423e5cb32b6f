package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	coveragedomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/domain"
	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	cycleservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/service"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/events"
	ledgerdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/domain"
	ledgerservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/service"
	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	subscriptionservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/service"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type coverageEnv struct {
	db     *gorm.DB
	node   *snowflake.Node
	svc    coveragedomain.Service
	cycles cycledomain.Service
	subs   subscriptiondomain.Service
}

func setupCoverageTest(t *testing.T) *coverageEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&cycledomain.Cycle{},
		&ledgerdomain.AllowanceEvent{},
		&coveragedomain.CoverageRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS membership_events (
			id INTEGER PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			dedupe_key TEXT UNIQUE,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create membership_events: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	log := zap.NewNop()
	sysClock := clock.SystemClock{}

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node})
	cycleSvc := cycleservice.NewService(cycleservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  sysClock,
		Ledger: ledgerSvc,
		Outbox: events.NewOutbox(db, node),
	})
	subSvc := subscriptionservice.NewService(subscriptionservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: sysClock,
	})
	svc := NewService(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         sysClock,
		Config:        config.Config{CoveredDurationMinutes: 30},
		Subscriptions: subSvc,
		Cycles:        cycleSvc,
	})

	return &coverageEnv{db: db, node: node, svc: svc, cycles: cycleSvc, subs: subSvc}
}

func (e *coverageEnv) memberWithCredits(t *testing.T, allowance int) subscriptiondomain.Subscription {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	sub, err := e.subs.Create(context.Background(), subscriptiondomain.CreateSubscriptionRequest{
		UserID:            e.node.Generate().String(),
		PlanID:            e.node.Generate().String(),
		ExternalBillingID: "sub_" + e.node.Generate().String(),
		PeriodStart:       now,
		PeriodEnd:         now.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	plan := plandomain.Plan{
		ID:                sub.PlanID,
		Name:              "Monthly Membership",
		IntervalUnit:      plandomain.IntervalUnitMonth,
		IntervalCount:     1,
		AllowancePerCycle: allowance,
		IsActive:          true,
	}
	if _, err := e.cycles.CreateInitialCycle(context.Background(), sub, plan); err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	return sub
}

func TestResolveCoveredMember(t *testing.T) {
	env := setupCoverageTest(t)
	sub := env.memberWithCredits(t, 2)

	resolution, err := env.svc.Resolve(context.Background(), sub.UserID.String(), 30)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolution.Covered {
		t.Fatalf("expected covered, got %+v", resolution)
	}
	if resolution.SubscriptionID != sub.ID.String() {
		t.Fatalf("subscription = %s, want %s", resolution.SubscriptionID, sub.ID)
	}
	if resolution.AllowanceRemaining != 2 {
		t.Fatalf("remaining = %d, want 2", resolution.AllowanceRemaining)
	}
}

func TestResolveLongSessionNeverCovered(t *testing.T) {
	env := setupCoverageTest(t)
	sub := env.memberWithCredits(t, 2)

	resolution, err := env.svc.Resolve(context.Background(), sub.UserID.String(), 60)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Covered {
		t.Fatal("60 minute sessions are full price")
	}
}

func TestResolveWithoutMembership(t *testing.T) {
	env := setupCoverageTest(t)

	resolution, err := env.svc.Resolve(context.Background(), env.node.Generate().String(), 30)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Covered {
		t.Fatal("expected not covered without a membership")
	}
}

func TestResolveExhaustedAllowance(t *testing.T) {
	env := setupCoverageTest(t)
	sub := env.memberWithCredits(t, 1)

	if _, err := env.svc.CommitCovered(context.Background(), coveragedomain.CommitCoveredRequest{
		AppointmentID: env.node.Generate().String(),
		UserID:        sub.UserID.String(),
		DurationMin:   30,
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	resolution, err := env.svc.Resolve(context.Background(), sub.UserID.String(), 30)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Covered {
		t.Fatal("expected not covered once the allowance is spent")
	}
}

func TestCommitCoveredSpendsAndRecords(t *testing.T) {
	env := setupCoverageTest(t)
	sub := env.memberWithCredits(t, 2)
	appt := env.node.Generate()

	record, err := env.svc.CommitCovered(context.Background(), coveragedomain.CommitCoveredRequest{
		AppointmentID: appt.String(),
		UserID:        sub.UserID.String(),
		DurationMin:   30,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if record.Outcome != coveragedomain.OutcomeCovered || record.AmountCharged != 0 {
		t.Fatalf("unexpected record: %+v", record)
	}

	cycle, err := env.cycles.GetActiveBySubscription(context.Background(), sub.ID.String())
	if err != nil {
		t.Fatalf("active cycle: %v", err)
	}
	if cycle.AllowanceRemaining != 1 {
		t.Fatalf("remaining = %d, want 1", cycle.AllowanceRemaining)
	}
}

func TestCommitCoveredReplaySpendsOnce(t *testing.T) {
	env := setupCoverageTest(t)
	sub := env.memberWithCredits(t, 2)
	appt := env.node.Generate()

	req := coveragedomain.CommitCoveredRequest{
		AppointmentID: appt.String(),
		UserID:        sub.UserID.String(),
		DurationMin:   30,
	}
	first, err := env.svc.CommitCovered(context.Background(), req)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	second, err := env.svc.CommitCovered(context.Background(), req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new record: %s vs %s", first.ID, second.ID)
	}

	cycle, err := env.cycles.GetActiveBySubscription(context.Background(), sub.ID.String())
	if err != nil {
		t.Fatalf("active cycle: %v", err)
	}
	if cycle.AllowanceRemaining != 1 {
		t.Fatalf("replay double-spent: remaining = %d", cycle.AllowanceRemaining)
	}
}

func TestCommitCoveredWithoutCoverage(t *testing.T) {
	env := setupCoverageTest(t)

	_, err := env.svc.CommitCovered(context.Background(), coveragedomain.CommitCoveredRequest{
		AppointmentID: env.node.Generate().String(),
		UserID:        env.node.Generate().String(),
		DurationMin:   30,
	})
	if !errors.Is(err, coveragedomain.ErrNotCovered) {
		t.Fatalf("expected ErrNotCovered, got %v", err)
	}
}

func TestCommitUncoveredIdempotent(t *testing.T) {
	env := setupCoverageTest(t)
	appt := env.node.Generate()

	req := coveragedomain.CommitUncoveredRequest{
		AppointmentID: appt.String(),
		UserID:        env.node.Generate().String(),
		AmountCharged: 3500,
		Currency:      "eur",
	}
	first, err := env.svc.CommitUncovered(context.Background(), req)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if first.Outcome != coveragedomain.OutcomeNotCovered || first.Currency != "EUR" {
		t.Fatalf("unexpected record: %+v", first)
	}

	second, err := env.svc.CommitUncovered(context.Background(), req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay created a new record")
	}
}
