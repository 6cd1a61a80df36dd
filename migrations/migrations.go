package migrations

import (
	"database/sql"
	"fmt"
)

var db *sql.DB

// Init sets the DB connection for migrations and queries
func Init(database *sql.DB) {
	db = database
}

// Migrate creates required tables if they do not exist
func Migrate() error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	createCaseRecords := `
	CREATE TABLE IF NOT EXISTS case_records (
		id INT AUTO_INCREMENT PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL UNIQUE,
		summary TEXT NOT NULL,
		transcript JSON NOT NULL,
		rounds_completed INT NOT NULL DEFAULT 0,
		prompt_tokens INT NOT NULL DEFAULT 0,
		completion_tokens INT NOT NULL DEFAULT 0,
		cost_usd DECIMAL(10,6) NOT NULL DEFAULT 0,
		model VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createCaseRecords); err != nil {
		return err
	}

	createUsageLog := `
	CREATE TABLE IF NOT EXISTS usage_log (
		id INT AUTO_INCREMENT PRIMARY KEY,
		model VARCHAR(64) NOT NULL,
		prompt_tokens INT NOT NULL DEFAULT 0,
		completion_tokens INT NOT NULL DEFAULT 0,
		cost_usd DECIMAL(10,6) NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createUsageLog); err != nil {
		return err
	}
	return nil
}
