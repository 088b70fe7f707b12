package db

import (
	"context"
	"fmt"
	"time"

	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 10

// Connect opens the Postgres pool, retrying while the database container is
// still starting. It gives up early if ctx is cancelled.
func Connect(ctx context.Context, dsn string) (*gorm.DB, error) {
	var err error
	for i := 0; i < connectAttempts; i++ {
		var gdb *gorm.DB
		gdb, err = open(ctx, dsn)
		if err == nil {
			return gdb, nil
		}
		wait := time.Duration(500+i*200) * time.Millisecond
		log.Warn().Err(err).Int("attempt", i+1).Dur("retry_in", wait).Msg("database not ready")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect after %d attempts: %w", connectAttempts, err)
}

func open(ctx context.Context, dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return gdb, nil
}

// Migrate creates or updates every table the chat backend uses.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &models.Session{}, &models.RefreshToken{}, &models.Message{})
}
