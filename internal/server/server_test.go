package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	auditdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/domain"
	auditrepository "github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/repository"
	auditservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/service"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	coveragedomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/domain"
	coverageservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/service"
	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	cycleservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/service"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/events"
	ledgerdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/domain"
	ledgerservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/service"
	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	planservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/service"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/policy"
	renewaldomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/domain"
	renewalrepository "github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/repository"
	renewalservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/service"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	subscriptionservice "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/service"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testAdminToken = "test-admin-token"

type serverEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	router   *gin.Engine
	subs     subscriptiondomain.Service
	cycles   cycledomain.Service
	coverage coveragedomain.Service
}

func setupServerTest(t *testing.T, cfg config.Config) *serverEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&cycledomain.Cycle{},
		&ledgerdomain.AllowanceEvent{},
		&coveragedomain.CoverageRecord{},
		&renewaldomain.ProviderEvent{},
		&auditdomain.AuditLog{},
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
	outbox := events.NewOutbox(db, node)

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node})
	cycleSvc := cycleservice.NewService(cycleservice.Params{
		DB: db, Log: log, GenID: node, Clock: sysClock, Ledger: ledgerSvc, Outbox: outbox,
	})
	subSvc := subscriptionservice.NewService(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Clock: sysClock,
	})
	planSvc := planservice.NewService(planservice.Params{DB: db, Log: log})
	coverageSvc := coverageservice.NewService(coverageservice.Params{
		DB: db, Log: log, GenID: node, Clock: sysClock, Config: cfg,
		Subscriptions: subSvc, Cycles: cycleSvc,
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Repo: auditrepository.Provide(),
	})
	renewalSvc := renewalservice.NewService(renewalservice.Params{
		DB: db, Log: log, GenID: node, Clock: sysClock, Config: cfg,
		Repo:          renewalrepository.Provide(),
		Subscriptions: subSvc, Cycles: cycleSvc, Plans: planSvc,
		Outbox: outbox, Audit: auditSvc,
	})

	srv := NewServer(Params{
		Config:        cfg,
		DB:            db,
		Log:           log,
		Clock:         sysClock,
		Plans:         planSvc,
		Subscriptions: subSvc,
		Cycles:        cycleSvc,
		Ledger:        ledgerSvc,
		Coverage:      coverageSvc,
		Renewals:      renewalSvc,
		Policy:        policy.New(cfg),
		Audit:         auditSvc,
	})

	return &serverEnv{
		db:       db,
		node:     node,
		router:   srv.Router(),
		subs:     subSvc,
		cycles:   cycleSvc,
		coverage: coverageSvc,
	}
}

func testConfig() config.Config {
	return config.Config{
		AdminToken:                testAdminToken,
		CoveredDurationMinutes:    30,
		CancellationCutoffMinutes: 60,
	}
}

func (e *serverEnv) request(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range header {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return envelope.Data
}

// member seeds a plan, an active subscription, and its first cycle.
func (e *serverEnv) member(t *testing.T, allowance int) subscriptiondomain.Subscription {
	t.Helper()
	plan := plandomain.Plan{
		ID:                e.node.Generate(),
		Name:              "Monthly Membership",
		IntervalUnit:      plandomain.IntervalUnitMonth,
		IntervalCount:     1,
		PriceAmount:       4500,
		Currency:          "EUR",
		AllowancePerCycle: allowance,
		IsActive:          true,
	}
	if err := e.db.Create(&plan).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	sub, err := e.subs.Create(context.Background(), subscriptiondomain.CreateSubscriptionRequest{
		UserID:            e.node.Generate().String(),
		PlanID:            plan.ID.String(),
		ExternalBillingID: "sub_" + e.node.Generate().String(),
		PeriodStart:       now,
		PeriodEnd:         now.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if _, err := e.cycles.CreateInitialCycle(context.Background(), sub, plan); err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	return sub
}

// coveredBooking spends one credit on a new appointment.
func (e *serverEnv) coveredBooking(t *testing.T, sub subscriptiondomain.Subscription) string {
	t.Helper()
	appointmentID := e.node.Generate().String()
	_, err := e.coverage.CommitCovered(context.Background(), coveragedomain.CommitCoveredRequest{
		AppointmentID: appointmentID,
		UserID:        sub.UserID.String(),
		DurationMin:   30,
	})
	if err != nil {
		t.Fatalf("covered booking: %v", err)
	}
	return appointmentID
}

func TestHealthz(t *testing.T) {
	env := setupServerTest(t, testConfig())

	w := env.request(t, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestResolveCoverageEndpoint(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)

	w := env.request(t, http.MethodPost, "/v1/coverage/resolve", gin.H{
		"user_id":          sub.UserID.String(),
		"duration_minutes": 30,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["covered"] != true {
		t.Fatalf("response = %v", data)
	}
}

func TestCancelAppointmentRestoresCredit(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)
	appointmentID := env.coveredBooking(t, sub)

	w := env.request(t, http.MethodPost, "/v1/appointments/"+appointmentID+"/cancel", gin.H{
		"actor":             "patient",
		"action":            "cancel",
		"appointment_start": time.Now().UTC().Add(3 * time.Hour),
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["restored"] != true {
		t.Fatalf("response = %v", data)
	}

	cycle, err := env.cycles.GetActiveBySubscription(context.Background(), sub.ID.String())
	if err != nil {
		t.Fatalf("active cycle: %v", err)
	}
	if cycle.AllowanceRemaining != 2 {
		t.Fatalf("remaining = %d, want 2", cycle.AllowanceRemaining)
	}
}

func TestCancelAppointmentInsideCutoff(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)
	appointmentID := env.coveredBooking(t, sub)

	w := env.request(t, http.MethodPost, "/v1/appointments/"+appointmentID+"/cancel", gin.H{
		"actor":             "patient",
		"action":            "cancel",
		"appointment_start": time.Now().UTC().Add(10 * time.Minute),
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["restored"] != false || data["reason"] != "policy" {
		t.Fatalf("response = %v", data)
	}
}

func TestCancelAppointmentNotCovered(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)

	appointmentID := env.node.Generate().String()
	_, err := env.coverage.CommitUncovered(context.Background(), coveragedomain.CommitUncoveredRequest{
		AppointmentID: appointmentID,
		UserID:        sub.UserID.String(),
		AmountCharged: 3500,
		Currency:      "EUR",
	})
	if err != nil {
		t.Fatalf("paid booking: %v", err)
	}

	w := env.request(t, http.MethodPost, "/v1/appointments/"+appointmentID+"/cancel", gin.H{
		"actor":             "patient",
		"action":            "cancel",
		"appointment_start": time.Now().UTC().Add(3 * time.Hour),
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["restored"] != false || data["reason"] != "not_covered" {
		t.Fatalf("response = %v", data)
	}
}

func TestCancelAppointmentTwice(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)
	appointmentID := env.coveredBooking(t, sub)
	body := gin.H{
		"actor":             "doctor",
		"action":            "cancel",
		"appointment_start": time.Now().UTC().Add(3 * time.Hour),
	}

	first := env.request(t, http.MethodPost, "/v1/appointments/"+appointmentID+"/cancel", body, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first cancel: %d %s", first.Code, first.Body.String())
	}

	second := env.request(t, http.MethodPost, "/v1/appointments/"+appointmentID+"/cancel", body, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("second cancel: %d %s", second.Code, second.Body.String())
	}
	data := decodeData(t, second)
	if data["restored"] != false || data["reason"] != "already_restored" {
		t.Fatalf("response = %v", data)
	}
}

func TestBillingWebhookAppliesRenewal(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)

	start := time.Now().UTC().AddDate(0, 1, 0).Truncate(time.Second)
	body := gin.H{
		"event_id":                 "evt_http_1",
		"event_type":               "invoice.paid",
		"external_subscription_id": sub.ExternalBillingID,
		"period_start":             start.Unix(),
		"period_end":               start.AddDate(0, 1, 0).Unix(),
		"charge_amount":            4500,
		"currency":                 "eur",
	}

	for i := 0; i < 2; i++ {
		w := env.request(t, http.MethodPost, "/v1/webhooks/billing/stripe", body, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: %d %s", i, w.Code, w.Body.String())
		}
	}

	cycle, err := env.cycles.GetActiveBySubscription(context.Background(), sub.ID.String())
	if err != nil {
		t.Fatalf("active cycle: %v", err)
	}
	if !cycle.CycleStart.Equal(start) || cycle.AllowanceRemaining != 2 {
		t.Fatalf("cycle after renewal: %+v", cycle)
	}
}

func TestBillingWebhookRejectsBadBody(t *testing.T) {
	env := setupServerTest(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/billing/stripe", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookRateLimit = 1
	cfg.WebhookRateWindow = time.Minute
	env := setupServerTest(t, cfg)

	body := gin.H{
		"event_id":                 "evt_rl",
		"event_type":               "unknown.event",
		"external_subscription_id": "sub_x",
	}
	first := env.request(t, http.MethodPost, "/v1/webhooks/billing/stripe", body, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first delivery: %d %s", first.Code, first.Body.String())
	}
	second := env.request(t, http.MethodPost, "/v1/webhooks/billing/stripe", body, nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", second.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)

	w := env.request(t, http.MethodPost, "/admin/subscriptions/"+sub.ID.String()+"/adjust", gin.H{
		"delta":  1,
		"reason": "support_credit",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w = env.request(t, http.MethodPost, "/admin/subscriptions/"+sub.ID.String()+"/adjust", gin.H{
		"delta":  1,
		"reason": "support_credit",
	}, map[string]string{"Authorization": "Bearer wrong-token"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for a bad token", w.Code)
	}
}

func TestAdminAdjustAllowance(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)

	w := env.request(t, http.MethodPost, "/admin/subscriptions/"+sub.ID.String()+"/adjust", gin.H{
		"delta":  1,
		"reason": "support_credit",
	}, map[string]string{"Authorization": "Bearer " + testAdminToken})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	cycle, err := env.cycles.GetActiveBySubscription(context.Background(), sub.ID.String())
	if err != nil {
		t.Fatalf("active cycle: %v", err)
	}
	if cycle.AllowanceGranted != 3 || cycle.AllowanceRemaining != 3 {
		t.Fatalf("cycle after adjust: %+v", cycle)
	}

	var count int64
	err = env.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", auditdomain.ActionAllowanceAdjusted).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count audit entries: %v", err)
	}
	if count != 1 {
		t.Fatalf("audit entries = %d, want 1", count)
	}
}

func TestGetPlanEndpoint(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)

	w := env.request(t, http.MethodGet, "/v1/plans/"+sub.PlanID.String(), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	w = env.request(t, http.MethodGet, "/v1/plans/"+env.node.Generate().String(), nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetUserSubscriptionEndpoint(t *testing.T) {
	env := setupServerTest(t, testConfig())
	sub := env.member(t, 2)

	w := env.request(t, http.MethodGet, "/v1/users/"+sub.UserID.String()+"/subscription", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	w = env.request(t, http.MethodGet, "/v1/users/"+env.node.Generate().String()+"/subscription", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
