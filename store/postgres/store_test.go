package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/xraph/tally"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/postgres"
	"github.com/xraph/tally/store/sqlstore"
	"github.com/xraph/tally/store/storetest"
)

// newMockStore returns a store over a mocked connection.
func newMockStore(t *testing.T) (*sqlstore.Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(pgdriver.New(pgdriver.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return postgres.New(db), mock, mockDB
}

func TestMutateCounterLostRace(t *testing.T) {
	s, mock, mockDB := newMockStore(t)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"name", "next_number", "updated_at"}).
		AddRow(sequence.Invoices, 1005, time.Now())
	mock.ExpectQuery(`SELECT \* FROM "counters" WHERE name = \$1`).
		WithArgs(sequence.Invoices, 1).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "counters" SET .* WHERE name = \$\d+ AND next_number = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	var seen int64
	err := s.MutateCounter(context.Background(), sequence.Invoices, func(cur *sequence.Counter) (*sequence.Counter, error) {
		seen = cur.NextNumber
		return &sequence.Counter{Name: cur.Name, NextNumber: cur.NextNumber + 1, UpdatedAt: time.Now()}, nil
	})

	assert.ErrorIs(t, err, sequence.ErrConflict)
	assert.Equal(t, int64(1005), seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateCounterSerializationFailure(t *testing.T) {
	s, mock, mockDB := newMockStore(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "counters"`).
		WillReturnError(&pgconn.PgError{Code: sqlstore.CodeConflict, Message: "could not serialize access"})

	err := s.MutateCounter(context.Background(), sequence.Invoices, func(*sequence.Counter) (*sequence.Counter, error) {
		t.Fatal("mutation must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, sequence.ErrConflict)
}

func TestStoreErrorsCarryCode(t *testing.T) {
	s, mock, mockDB := newMockStore(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "clients"`).
		WillReturnError(&pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"})

	_, err := s.ListClients(context.Background())
	require.Error(t, err)

	var se *tally.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "57P01", se.Code)
	assert.True(t, tally.IsRetryable(err))
	assert.Equal(t, "57P01", tally.ErrorCode(err))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "23505", postgres.Classify(&pgconn.PgError{Code: "23505"}))
	assert.Equal(t, "", postgres.Classify(errors.New("boom")))
}

func TestConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a PostgreSQL container")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tally_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := postgres.Open(dsn)
		require.NoError(t, err)
		require.NoError(t, s.DB().Exec(`DROP TABLE IF EXISTS stock_movements, stock, clients, suppliers, client_invoices, supplier_invoices, counters CASCADE`).Error)
		require.NoError(t, s.Migrate(ctx))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
