package cycle

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/cycle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cycle.service",
	fx.Provide(service.NewService),
)
