package auth

import (
	"github.com/smallbiznis/atelier/internal/auth/local"
	"github.com/smallbiznis/atelier/internal/auth/repository"
	"github.com/smallbiznis/atelier/internal/auth/service"
	"github.com/smallbiznis/atelier/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
	fx.Provide(local.NewHandler),
)
