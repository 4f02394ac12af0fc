package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Backtest run history
// ═══════════════════════════════════════════════════════════════════════════════

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

type Database struct {
	db *gorm.DB
}

// New opens dsn. postgres:// and postgresql:// URLs use PostgreSQL, anything
// else is a SQLite file path whose directory is created if needed.
func New(dsn string) (*Database, error) {
	var db *gorm.DB
	var err error

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Run history connected (PostgreSQL)")
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dsn).Msg("💾 Run history initialized (SQLite)")
	}

	if err := db.AutoMigrate(
		&ParameterSet{},
		&BacktestRun{},
		&RunMetrics{},
		&RunTrade{},
		&WalkForwardWindowRecord{},
		&ValidationRecord{},
	); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Close releases the underlying connection pool
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
