// Package postgres opens a tally store on PostgreSQL.
package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xraph/tally/store/sqlstore"
)

// Open connects to the database at dsn.
func Open(dsn string, opts ...Option) (*sqlstore.Store, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(pgdriver.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("tally/postgres: open: %w", err)
	}
	return New(db), nil
}

// New wraps an open gorm database using the postgres dialect.
func New(db *gorm.DB) *sqlstore.Store {
	return sqlstore.New(db,
		sqlstore.WithName("postgres"),
		sqlstore.WithRowLocks(),
		sqlstore.WithClassifier(Classify),
	)
}

// Classify returns the SQLSTATE of a server error, or "unavailable" when the
// connection failed or timed out.
func Classify(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return "unavailable"
	}
	return ""
}

// Option adjusts the gorm configuration used by Open.
type Option func(*gorm.Config)

// WithLogger routes gorm's query log to l.
func WithLogger(l logger.Interface) Option {
	return func(c *gorm.Config) { c.Logger = l }
}
