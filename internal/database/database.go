package database

import (
	"context"
	"fmt"
	"time"

	"github.com/perse-cms/perse/internal/config"
	"github.com/perse-cms/perse/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connMaxLifetime = 30 * time.Minute

// Connect opens the configured database and applies the schema when
// database.auto_migrate is set.
func Connect(cfg *config.AppConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := EnsureSchema(db, cfg); err != nil {
			_ = Close(db)
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		log.Info("database schema is up to date", zap.String("driver", cfg.Database.Driver))
	}
	return db, nil
}

// Open creates the connection pool without touching the schema.
func Open(cfg *config.AppConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.Database.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(resolveLogLevel(cfg)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db: %w", err)
	}
	maxConns := cfg.Database.MaxConnections
	if cfg.Database.Driver == config.DriverSQLite {
		// one writer at a time; a second connection would hit SQLITE_BUSY inside transactions
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

// EnsureSchema brings the schema up to date. Postgres goes through the
// versioned SQL migrations; the other drivers use GORM auto-migration.
func EnsureSchema(db *gorm.DB, cfg *config.AppConfig) error {
	if cfg.Database.Driver == config.DriverPostgres {
		return MigrateUp(cfg.Database.MigrateURL())
	}
	return AutoMigrate(db)
}

// AutoMigrate runs GORM auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ViewModel{})
}

// Ping checks that the pool can reach the database.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	case config.DriverMySQL:
		return mysql.New(mysql.Config{
			DSN:               dsn,
			DefaultStringSize: 191,
		}), nil
	case config.DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func resolveLogLevel(cfg *config.AppConfig) logger.LogLevel {
	switch {
	case cfg.LogLevel == "debug":
		return logger.Info
	case cfg.Env == "test":
		return logger.Silent
	default:
		return logger.Warn
	}
}
