package config

import (
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shuttle_tracker/internal/models"
)

// openWaitRequestIndex enforces at most one pending request per bus and
// user at the database level.
const openWaitRequestIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_wait_requests_open
	ON wait_requests (bus_id, user_id)
	WHERE NOT acknowledged AND NOT declined AND deleted_at IS NULL`

// OpenDB connects to Postgres through lib/pq and migrates the schema.
func OpenDB(cfg DatabaseConfig, log gormlogger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        cfg.DSN(),
	}), &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// migrate creates or updates every table the tracker uses.
func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Bus{},
		&models.Route{},
		&models.Stop{},
		&models.WaitRequest{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	if err := db.Exec(openWaitRequestIndex).Error; err != nil {
		return fmt.Errorf("create open wait request index: %w", err)
	}
	return nil
}
