package server

import (
	"context"
	"net"
	"net/http"
	"time"

	auditdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	coveragedomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/domain"
	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	ledgerdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/logger"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/metrics"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability/tracing"
	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/policy"
	renewaldomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/domain"
	subscriptiondomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config        config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Plans         plandomain.Service
	Subscriptions subscriptiondomain.Service
	Cycles        cycledomain.Service
	Ledger        ledgerdomain.Service
	Coverage      coveragedomain.Service
	Renewals      renewaldomain.Service
	Policy        policy.Policy
	Audit         auditdomain.Service
	HTTPMetrics   *metrics.HTTPMetrics `optional:"true"`
}

type Server struct {
	cfg            config.Config
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	planSvc        plandomain.Service
	subSvc         subscriptiondomain.Service
	cycleSvc       cycledomain.Service
	ledgerSvc      ledgerdomain.Service
	coverageSvc    coveragedomain.Service
	renewalSvc     renewaldomain.Service
	policy         policy.Policy
	auditSvc       auditdomain.Service
	httpMetrics    *metrics.HTTPMetrics
	webhookLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	limit := p.Config.WebhookRateLimit
	if limit <= 0 {
		limit = 60
	}
	window := p.Config.WebhookRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return &Server{
		cfg:            p.Config,
		db:             p.DB,
		log:            p.Log.Named("server"),
		clock:          p.Clock,
		planSvc:        p.Plans,
		subSvc:         p.Subscriptions,
		cycleSvc:       p.Cycles,
		ledgerSvc:      p.Ledger,
		coverageSvc:    p.Coverage,
		renewalSvc:     p.Renewals,
		policy:         p.Policy,
		auditSvc:       p.Audit,
		httpMetrics:    p.HTTPMetrics,
		webhookLimiter: newRateLimiter(limit, window),
	}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(tracing.GinMiddleware("membership/http"))
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	if s.httpMetrics != nil {
		r.Use(metrics.GinMiddleware(s.httpMetrics))
	}

	r.GET("/healthz", s.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.GET("/plans", s.ListPlans)
		v1.GET("/plans/:id", s.GetPlan)

		v1.POST("/subscriptions", s.CreateSubscription)
		v1.GET("/subscriptions/:id", s.GetSubscription)
		v1.GET("/subscriptions/:id/ledger", s.ListSubscriptionLedger)
		v1.POST("/subscriptions/:id/reactivate", s.ReactivateSubscription)
		v1.GET("/users/:id/subscription", s.GetUserSubscription)

		v1.POST("/coverage/resolve", s.ResolveCoverage)
		v1.POST("/bookings/covered", s.CommitCoveredBooking)
		v1.POST("/bookings/paid", s.CommitPaidBooking)
		v1.POST("/appointments/:id/cancel", s.CancelAppointment)
		v1.GET("/appointments/:id/coverage", s.GetAppointmentCoverage)

		v1.GET("/cycles/:id", s.GetCycle)
		v1.GET("/cycles/:id/ledger", s.ListCycleLedger)
		v1.GET("/cycles/:id/reconciliation", s.ReconcileCycle)

		v1.POST("/webhooks/billing/:provider", s.webhookRateLimit(), s.BillingWebhook)
	}

	admin := r.Group("/admin", s.adminAuth())
	{
		admin.POST("/subscriptions/:id/adjust", s.AdjustAllowance)
		admin.GET("/webhooks/unmatched", s.ListUnmatchedWebhooks)
		admin.POST("/webhooks/relink", s.RelinkWebhook)
		admin.GET("/audit", s.ListAuditLog)
	}

	return r
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(Run),
)

// Run wires the HTTP listener into the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
