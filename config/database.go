package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"magiclink/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "magiclink.db"
)

var ErrUnknownDriver = errors.New("unknown database driver")

type dialectorFactory func(dsn string) gorm.Dialector

var dialectors = map[string]dialectorFactory{
	DriverPostgres: func(dsn string) gorm.Dialector {
		return postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	},
	DriverSQLite: func(dsn string) gorm.Dialector {
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		return sqlite.Open(dsn)
	},
}

// OpenDatabase connects with the configured driver and migrates the schema
// unless SkipAutoMigrate is set.
func OpenDatabase(cfg *Config, log logger.Interface) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	factory, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownDriver, cfg.DBDriver, strings.Join(driverNames(), ", "))
	}
	if driver == DriverPostgres && cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for postgres")
	}
	if log == nil {
		log = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(factory(cfg.DatabaseURL), &gorm.Config{
		PrepareStmt: false,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if !cfg.SkipAutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

func driverNames() []string {
	names := make([]string, 0, len(dialectors))
	for name := range dialectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
