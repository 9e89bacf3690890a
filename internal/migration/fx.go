package migration

import (
	"github.com/smallbiznis/aula/internal/config"
	"github.com/smallbiznis/aula/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		if err := seed.EnsureSchoolConfiguration(conn, cfg.SnowflakeNode); err != nil {
			return err
		}
		if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
			return seed.EnsureAdmin(conn, cfg.SnowflakeNode, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		}
		return nil
	}),
)
