package db

import (
	"context"
	"errors"
	"time"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured postgres database.
func Open(cfg config.Config) (*gorm.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("missing_database_dsn")
	}

	logLevel := gormlogger.Warn
	if cfg.IsProduction() {
		logLevel = gormlogger.Error
	}

	conn, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return conn, nil
}

var Module = fx.Module("db",
	fx.Provide(func(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
		conn, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				log.Named("db").Info("closing database connection")
				return sqlDB.Close()
			},
		})
		return conn, nil
	}),
)
