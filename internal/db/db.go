package db

import (
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNoDatabase means DATABASE_URL is unset; the server runs
// memory-only in that case.
var ErrNoDatabase = errors.New("DATABASE_URL is not set")

// Open connects to Postgres using DATABASE_URL.
func Open() (*gorm.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, ErrNoDatabase
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

// Configure applies connection-pool limits to the underlying sql.DB.
func Configure(conn *gorm.DB, maxOpen, maxIdle, maxLifetimeSeconds, maxIdleTimeSeconds int) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(maxLifetimeSeconds) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(maxIdleTimeSeconds) * time.Second)
	return nil
}

// Migrate runs GORM auto-migrations for the journal tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	if err := conn.AutoMigrate(
		&Room{},
		&Event{},
	); err != nil {
		return err
	}
	log.Println("database migration complete")
	return nil
}
