package ledger

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
