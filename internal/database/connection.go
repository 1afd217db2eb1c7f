package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/omis-2025/strangerwave-sub000/internal/config"
	"github.com/omis-2025/strangerwave-sub000/internal/models"
	"github.com/omis-2025/strangerwave-sub000/pkg/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	logLevel := gormlogger.Error
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	}
	return Open(cfg.StoreDriver, cfg.GetDSN(), logLevel)
}

// Open connects to a postgres or mysql database and sizes the pool.
func Open(driver, dsn string, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.StoreDriverPostgres:
		dialector = postgres.Open(dsn)
	case config.StoreDriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Every chat message is one insert; keep enough warm connections for
	// bursts across many sessions.
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Info("Database connected", "driver", driver)
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.UserInterest{},
		&models.InteractionMetrics{},
		&models.MatchingAlgorithm{},
		&models.ChatSession{},
		&models.Message{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}
