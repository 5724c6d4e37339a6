package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// InitDB opens a database handle for the configured driver and migrates the
// schema. The caller owns the returned handle.
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(config.Driver) {
	case "", "mysql":
		dialector = mysql.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	default:
		return nil, fmt.Errorf("models: unsupported database driver %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table owned by the service.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Availability{},
		&Appointment{},
		&CreditTransaction{},
		&Payout{},
	)
	if err != nil {
		return err
	}

	// Only PostgreSQL has partial indexes; MySQL relies on the doctor row
	// lock taken by the payout transaction.
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_payouts_one_processing
			ON payouts (doctor_id) WHERE status = 'PROCESSING'`).Error
	}
	return nil
}
