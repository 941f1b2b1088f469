package database

import (
	"database/sql"
	"fmt"
	"log"
)

// CreateTables creates all necessary tables for the VF4Tester backend
func CreateTables(db *sql.DB) error {
	log.Println("Creating database tables...")

	// test_results stores every recorded calibration test. seq preserves
	// insertion order, which is the chronological record order.
	testResultsTable := `
	CREATE TABLE IF NOT EXISTS test_results (
		seq SERIAL PRIMARY KEY,
		id UUID UNIQUE NOT NULL,
		test_type VARCHAR(20) NOT NULL CHECK (test_type IN ('low_flow', 'high_flow')),
		small_meter_start DOUBLE PRECISION NOT NULL DEFAULT 0,
		small_meter_end DOUBLE PRECISION NOT NULL DEFAULT 0,
		large_meter_start DOUBLE PRECISION NOT NULL DEFAULT 0,
		large_meter_end DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
		flow_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		image BYTEA,
		recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	if _, err := db.Exec(testResultsTable); err != nil {
		return fmt.Errorf("failed to create test_results table: %w", err)
	}

	// preferences stores the session settings as opaque key/value pairs
	preferencesTable := `
	CREATE TABLE IF NOT EXISTS preferences (
		key VARCHAR(50) PRIMARY KEY,
		value VARCHAR(50) NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	if _, err := db.Exec(preferencesTable); err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_test_results_recorded_at ON test_results(recorded_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_test_results_test_type ON test_results(test_type);",
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
		}
	}

	log.Println("✅ Database tables created successfully")
	return nil
}

// DropTables drops all tables (useful for testing)
func DropTables(db *sql.DB) error {
	log.Println("Dropping database tables...")

	tables := []string{
		"test_results",
		"preferences",
	}

	for _, table := range tables {
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", table)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	log.Println("✅ Database tables dropped successfully")
	return nil
}

// CheckTablesExist checks if all required tables exist
func CheckTablesExist(db *sql.DB) error {
	requiredTables := []string{
		"test_results",
		"preferences",
	}

	for _, table := range requiredTables {
		var exists bool
		query := `SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		);`

		err := db.QueryRow(query, table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}

		if !exists {
			return fmt.Errorf("table %s does not exist", table)
		}
	}

	log.Println("✅ All required tables exist")
	return nil
}
