package main

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/clock"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/events"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/migration"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/observability"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/policy"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/reconcile"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/seed"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/server"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription"
	"github.com/AntoineVagnon/DoktuTracker-sub005/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(log *zap.Logger) {
			log.Info("starting membership service", zap.String("version", version))
		}),
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			return seed.EnsurePlans(conn)
		}),
		events.Module,
		plan.Module,
		subscription.Module,
		ledger.Module,
		cycle.Module,
		coverage.Module,
		policy.Module,
		audit.Module,
		renewal.Module,
		reconcile.Module,
		server.Module,
	)
	app.Run()
}
