package inbox

import (
	"github.com/smallbiznis/atelier/internal/inbox/repository"
	"github.com/smallbiznis/atelier/internal/inbox/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inbox.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
