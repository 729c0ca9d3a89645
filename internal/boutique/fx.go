package boutique

import (
	"github.com/smallbiznis/atelier/internal/boutique/repository"
	"github.com/smallbiznis/atelier/internal/boutique/service"
	"go.uber.org/fx"
)

var Module = fx.Module("boutique.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
