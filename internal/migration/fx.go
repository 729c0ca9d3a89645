package migration

import (
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates the schema during startup. List it before seed and the
// domain modules.
var Module = fx.Module("migration",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		res, err := Up(sqlDB, cfg.DBType)
		if err != nil {
			return err
		}
		log.Info("schema ready",
			zap.String("dialect", cfg.DBType),
			zap.Uint("version", res.Version),
			zap.Bool("migrated", res.Applied),
		)
		return nil
	}),
)
