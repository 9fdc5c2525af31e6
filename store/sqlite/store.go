// Package sqlite opens a tally store on SQLite. It suits single-process
// deployments and tests; amounts are stored with NUMERIC affinity.
package sqlite

import (
	"fmt"

	sqlitedriver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xraph/tally/store/sqlstore"
)

// Open opens the database file at path. ":memory:" gives a private
// in-memory database.
func Open(path string, opts ...Option) (*sqlstore.Store, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(sqlitedriver.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("tally/sqlite: open: %w", err)
	}

	// one connection, so ":memory:" is one database and writers serialize
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("tally/sqlite: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return sqlstore.New(db, sqlstore.WithName("sqlite")), nil
}

// Option adjusts the gorm configuration used by Open.
type Option func(*gorm.Config)

// WithLogger routes gorm's query log to l.
func WithLogger(l logger.Interface) Option {
	return func(c *gorm.Config) { c.Logger = l }
}
