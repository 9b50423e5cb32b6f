package renewal

import (
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/repository"
	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/renewal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("renewal.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
