package reconcile

import (
	"context"
	"errors"
	"time"

	cycledomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Cycles cycledomain.Service
	Config Config `optional:"true"`
}

// Worker periodically replays every active cycle's ledger and reports
// drift against the stored balance. It only observes; drift is fixed
// by hand after investigation.
type Worker struct {
	db     *gorm.DB
	log    *zap.Logger
	cycles cycledomain.Service
	cfg    Config
}

func NewWorker(p Params) *Worker {
	cfg := p.Config.withDefaults()
	return &Worker{
		db:     p.DB,
		log:    p.Log.Named("reconcile.worker"),
		cycles: p.Cycles,
		cfg:    cfg,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("reconciliation run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps active cycles and returns how many reported drift.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if w.db == nil || w.cycles == nil {
		return 0, errors.New("reconcile_worker_unavailable")
	}

	drifted := 0
	var lastID snowflake.ID
	for {
		var ids []snowflake.ID
		err := w.db.WithContext(ctx).
			Model(&cycledomain.Cycle{}).
			Where("is_active = ? AND id > ?", true, lastID).
			Order("id ASC").
			Limit(w.cfg.BatchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return drifted, err
		}
		if len(ids) == 0 {
			return drifted, nil
		}

		for _, id := range ids {
			report, err := w.cycles.Reconcile(ctx, id.String())
			if err != nil {
				if errors.Is(err, cycledomain.ErrCycleNotFound) {
					continue
				}
				return drifted, err
			}
			if !report.Consistent {
				drifted++
			}
		}
		lastID = ids[len(ids)-1]

		select {
		case <-ctx.Done():
			return drifted, ctx.Err()
		default:
		}
	}
}
