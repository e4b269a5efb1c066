package db

import (
	"errors"

	"gorm.io/gorm"
)

// SyncSchema creates/updates tables and indexes from models. Table structure
// changes do not use versioned migrations.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(
		&CommandHistory{},
	); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_command_history_chat_created_at ON command_history(chat_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_command_history_action_created_at ON command_history(action, created_at DESC);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// MigrateUp syncs schema. Kept as the single entry point for
// OpenSQLiteWithMigrations and the migrate subcommand.
func MigrateUp(db *gorm.DB) error {
	return SyncSchema(db)
}
