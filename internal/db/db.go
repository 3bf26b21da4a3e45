package db

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/USA-RedDragon/crashula/internal/config"
	"github.com/USA-RedDragon/crashula/internal/db/models"
	"github.com/glebarez/sqlite"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func sqliteDSN(database string) string {
	sep := "?"
	if strings.Contains(database, "?") {
		sep = "&"
	}
	return database + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func singleWriter(cfg config.Database) bool {
	return cfg.Driver == config.DatabaseDriverSQLite
}

func dialector(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DatabaseDriverSQLite:
		return sqlite.Open(sqliteDSN(cfg.Database)), nil
	case config.DatabaseDriverMySQL:
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.Username, cfg.Password, cfg.Host, port, cfg.Database)
		if cfg.ExtraParameters != "" {
			dsn += "&" + cfg.ExtraParameters
		}
		return mysql.Open(dsn), nil
	case config.DatabaseDriverPostgres:
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			cfg.Host, port, cfg.Username, cfg.Password, cfg.Database)
		if cfg.ExtraParameters != "" {
			dsn += " " + cfg.ExtraParameters
		}
		return postgres.Open(dsn), nil
	default:
		return nil, config.ErrDatabaseDriverInvalid
	}
}

func MakeDB(config *config.Config) (db *gorm.DB, err error) {
	dialect, err := dialector(config.Persistence.Database)
	if err != nil {
		return nil, err
	}
	db, err = gorm.Open(dialect, &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return db, fmt.Errorf("failed to open database: %w", err)
	}
	if config.HTTP.Tracing.Enabled {
		if err = db.Use(otelgorm.NewPlugin()); err != nil {
			return db, fmt.Errorf("failed to trace database: %w", err)
		}
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Company{},
		&models.Application{},
		&models.Version{},
		&models.CrashReport{},
		&models.CrashLog{})
	if err != nil {
		return db, fmt.Errorf("failed to migrate database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return db, fmt.Errorf("failed to open database: %w", err)
	}
	if singleWriter(config.Persistence.Database) {
		// SQLite has a single writer and a deferred transaction cannot
		// upgrade its read lock, so every statement shares one connection.
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(runtime.GOMAXPROCS(0))
		const connsPerCPU = 10
		sqlDB.SetMaxOpenConns(runtime.GOMAXPROCS(0) * connsPerCPU)
	}
	const maxIdleTime = 10 * time.Minute
	sqlDB.SetConnMaxIdleTime(maxIdleTime)

	return
}
