package seed

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module seeds at startup; list it after migration.Module.
var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, db *gorm.DB, node *snowflake.Node, cfg config.Config, clk clock.Clock, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				report, err := Run(ctx, db, node, Options{
					AdminUsername: cfg.Admin.Username,
					AdminPassword: cfg.Admin.Password,
					SampleData:    cfg.SeedSampleData,
					Now:           clk.Now(),
				})
				if err != nil {
					return err
				}
				if report.AdminCreated {
					log.Warn("default admin created; change its password", zap.String("username", cfg.Admin.Username))
				}
				if report.Products > 0 {
					log.Info("sample products seeded", zap.Int("count", report.Products))
				}
				return nil
			},
		})
	}),
)
