package coverage

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/coverage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("coverage.service",
	fx.Provide(service.NewService),
)
