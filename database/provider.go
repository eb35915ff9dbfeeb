package database

import (
	"fmt"

	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ModelsOption struct {
	models []any
}

func WithModels(models ...any) *ModelsOption {
	return &ModelsOption{models: models}
}

func (o *ModelsOption) Models() []any {
	if o == nil {
		return nil
	}
	return o.models
}

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Driver)
	}
}

func ProvideDatabase(cfg config.Config, modelsOpt *ModelsOption, logger *logging.Service) (*gorm.DB, error) {
	dial, err := dialector(cfg.Database)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{}
	if logger != nil {
		gormCfg.Logger = logging.NewGormLogger(logger, cfg.Log.SlowThreshold)
	}

	db, err := gorm.Open(dial, gormCfg)
	if err != nil {
		logger.Error("failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite allows one writer; a single connection also keeps :memory: coherent
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.Database.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		}
	}

	if models := modelsOpt.Models(); cfg.Database.AutoMigrate && len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
		}
		logger.Info("database migrated", zap.Int("models", len(models)))
	}

	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))
	return db, nil
}
