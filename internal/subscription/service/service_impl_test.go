package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSubscriptionTest(t *testing.T) (subscriptiondomain.Service, *snowflake.Node) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&subscriptiondomain.Subscription{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.SystemClock{},
	})
	return svc, node
}

func createRequest(node *snowflake.Node) subscriptiondomain.CreateSubscriptionRequest {
	now := time.Now().UTC().Truncate(time.Second)
	return subscriptiondomain.CreateSubscriptionRequest{
		UserID:            node.Generate().String(),
		PlanID:            node.Generate().String(),
		ExternalBillingID: "sub_" + node.Generate().String(),
		PeriodStart:       now,
		PeriodEnd:         now.AddDate(0, 1, 0),
	}
}

func TestCreateSubscription(t *testing.T) {
	svc, node := setupSubscriptionTest(t)

	sub, err := svc.Create(context.Background(), createRequest(node))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.Status != subscriptiondomain.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}

	got, err := svc.GetByExternalID(context.Background(), sub.ExternalBillingID)
	if err != nil {
		t.Fatalf("get by external id: %v", err)
	}
	if got.ID != sub.ID {
		t.Fatalf("got %s, want %s", got.ID, sub.ID)
	}
}

func TestCreateRejectsDuplicateExternalID(t *testing.T) {
	svc, node := setupSubscriptionTest(t)

	req := createRequest(node)
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := createRequest(node)
	dup.ExternalBillingID = req.ExternalBillingID
	if _, err := svc.Create(context.Background(), dup); !errors.Is(err, subscriptiondomain.ErrDuplicateSubscription) {
		t.Fatalf("expected ErrDuplicateSubscription, got %v", err)
	}
}

func TestCreateRejectsSecondLiveMembership(t *testing.T) {
	svc, node := setupSubscriptionTest(t)

	req := createRequest(node)
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := createRequest(node)
	second.UserID = req.UserID
	second.PlanID = req.PlanID
	if _, err := svc.Create(context.Background(), second); !errors.Is(err, subscriptiondomain.ErrDuplicateSubscription) {
		t.Fatalf("expected ErrDuplicateSubscription, got %v", err)
	}
}

func TestTransitionStateMachine(t *testing.T) {
	svc, node := setupSubscriptionTest(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, createRequest(node))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// active -> past_due -> active -> canceled.
	if _, err := svc.Transition(ctx, sub.ID.String(), subscriptiondomain.SubscriptionStatusPastDue); err != nil {
		t.Fatalf("to past_due: %v", err)
	}
	if _, err := svc.Transition(ctx, sub.ID.String(), subscriptiondomain.SubscriptionStatusActive); err != nil {
		t.Fatalf("recover to active: %v", err)
	}
	got, err := svc.Transition(ctx, sub.ID.String(), subscriptiondomain.SubscriptionStatusCanceled)
	if err != nil {
		t.Fatalf("to canceled: %v", err)
	}
	if got.CanceledAt == nil {
		t.Fatal("expected canceled_at to be set")
	}

	// canceled is terminal.
	if _, err := svc.Transition(ctx, sub.ID.String(), subscriptiondomain.SubscriptionStatusActive); !errors.Is(err, subscriptiondomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionSameStatusIsNoop(t *testing.T) {
	svc, node := setupSubscriptionTest(t)

	sub, err := svc.Create(context.Background(), createRequest(node))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Transition(context.Background(), sub.ID.String(), subscriptiondomain.SubscriptionStatusActive)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != subscriptiondomain.SubscriptionStatusActive {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestReactivateCreatesNewLineage(t *testing.T) {
	svc, node := setupSubscriptionTest(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, createRequest(node))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Transition(ctx, sub.ID.String(), subscriptiondomain.SubscriptionStatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	req := createRequest(node)
	req.UserID = sub.UserID.String()
	fresh, err := svc.Reactivate(ctx, sub.ID.String(), req)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if fresh.ID == sub.ID {
		t.Fatal("reactivation must not resurrect the canceled row")
	}

	// The old row stays canceled.
	old, err := svc.GetByID(ctx, sub.ID.String())
	if err != nil {
		t.Fatalf("get old: %v", err)
	}
	if old.Status != subscriptiondomain.SubscriptionStatusCanceled {
		t.Fatalf("old status = %s, want canceled", old.Status)
	}
}

func TestReactivateRequiresCanceled(t *testing.T) {
	svc, node := setupSubscriptionTest(t)

	sub, err := svc.Create(context.Background(), createRequest(node))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Reactivate(context.Background(), sub.ID.String(), createRequest(node)); !errors.Is(err, subscriptiondomain.ErrSubscriptionNotCanceled) {
		t.Fatalf("expected ErrSubscriptionNotCanceled, got %v", err)
	}
}

func TestGetActiveByUserID(t *testing.T) {
	svc, node := setupSubscriptionTest(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, createRequest(node))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.GetActiveByUserID(ctx, sub.UserID.String())
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.ID != sub.ID {
		t.Fatalf("got %s, want %s", got.ID, sub.ID)
	}

	if _, err := svc.GetActiveByUserID(ctx, node.Generate().String()); !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}
