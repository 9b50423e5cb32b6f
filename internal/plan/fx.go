package plan

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/cache"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(cache.NewPlanCache),
	fx.Provide(service.NewService),
)
