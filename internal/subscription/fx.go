package subscription

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(service.NewService),
)
