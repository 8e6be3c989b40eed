package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/infrastructure/persistence"
	"flight-alert-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var noRetry = persistence.RetryPolicy{Attempts: 1}

// setupSQLiteDB opens a migrated file-backed SQLite database.
// A single connection serializes transactions the way row locks do on PostgreSQL.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "flights.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db), "failed to migrate")

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// setupPostgresDB starts a PostgreSQL container and migrates it.
// Skipped in -short mode or when no container runtime is available.
func setupPostgresDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	db, err := persistence.OpenPostgres(ctx, dsn, persistence.RetryPolicy{Attempts: 3, Delay: time.Second}, logger.NewNop())
	require.NoError(t, err, "failed to connect")
	require.NoError(t, AutoMigrate(db), "failed to migrate")

	cleanup := func() {
		persistence.Close(db)
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return db, cleanup
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func observation(t *testing.T, from, to, dep, ret string, price string) entity.PriceObservation {
	t.Helper()
	return entity.PriceObservation{
		RouteKey: entity.RouteKey{
			Origin:        from,
			Destination:   to,
			DepartureDate: date(t, dep),
			ReturnDate:    date(t, ret),
			TripType:      entity.RoundTrip,
		},
		Price:    decimal.RequireFromString(price),
		Currency: entity.DefaultCurrency,
	}
}

func newTestPriceRepo(db *gorm.DB) *GormPriceRepository {
	return NewGormPriceRepository(db, noRetry, logger.NewNop()).(*GormPriceRepository)
}
