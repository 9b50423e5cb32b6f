package audit

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/repository"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
