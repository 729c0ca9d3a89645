package email

import (
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Email.Provider != "smtp" || cfg.Email.Host == "" {
		log.Info("email delivery disabled, using no-op provider")
		return &NoOpProvider{Log: log.Named("email")}
	}
	return NewSMTP(Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.FromEmail,
		FromName: cfg.Email.FromName,
	})
}
