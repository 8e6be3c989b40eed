package persistence

import (
	"context"
	"fmt"
	"time"

	"flight-alert-service/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres connects to PostgreSQL, retrying the initial connection a fixed
// number of times with a fixed delay.
func OpenPostgres(ctx context.Context, dsn string, policy RetryPolicy, log logger.Logger) (*gorm.DB, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err == nil {
			if err = Ping(ctx, db); err == nil {
				return db, nil
			}
		}

		lastErr = err
		log.Warn("Database connection failed",
			"attempt", attempt,
			"maxAttempts", attempts,
			"error", err)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(policy.Delay):
			}
		}
	}

	log.Error("Unable to connect to database", "attempts", attempts, "error", lastErr)
	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", attempts, lastErr)
}

// Ping verifies the database is reachable
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// ListTables returns the table names visible to the connection
func ListTables(ctx context.Context, db *gorm.DB) ([]string, error) {
	tables, err := db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
