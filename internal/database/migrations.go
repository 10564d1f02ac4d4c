package database

import (
	"database/sql"
	"fmt"
	"log"
)

// CreateTables creates all necessary tables for the irrigation controller
func CreateTables(db *sql.DB) error {
	log.Println("Creating database tables...")

	// Create samples table - stores sensor samples from the irrigation node
	samplesTable := `
	CREATE TABLE IF NOT EXISTS samples (
		id SERIAL PRIMARY KEY,
		channel SMALLINT NOT NULL CHECK (channel >= 0 AND channel < 4),
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		moisture DECIMAL(6,1) NOT NULL CHECK (moisture >= 0 AND moisture <= 1023),
		temperature DECIMAL(5,1) NOT NULL,
		humidity DECIMAL(5,1) NOT NULL,
		light DECIMAL(6,1) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	if _, err := db.Exec(samplesTable); err != nil {
		return fmt.Errorf("failed to create samples table: %w", err)
	}

	// Create decision_events table - stores every watering decision
	decisionEventsTable := `
	CREATE TABLE IF NOT EXISTS decision_events (
		id SERIAL PRIMARY KEY,
		channel SMALLINT NOT NULL CHECK (channel >= 0 AND channel < 4),
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		moisture DECIMAL(6,1) NOT NULL,
		temperature DECIMAL(5,1) NOT NULL,
		humidity DECIMAL(5,1) NOT NULL,
		light DECIMAL(6,1) NOT NULL,
		should_water BOOLEAN NOT NULL,
		tier SMALLINT NOT NULL CHECK (tier >= 0 AND tier <= 3),
		duration_ms BIGINT NOT NULL CHECK (duration_ms >= 0),
		amount_ml DECIMAL(8,1) NOT NULL CHECK (amount_ml >= 0),
		is_failsafe BOOLEAN NOT NULL DEFAULT false,
		executed BOOLEAN NOT NULL,
		refusal_reason TEXT NOT NULL DEFAULT '',
		anomaly_score DECIMAL(6,4) NOT NULL DEFAULT 0,
		sensor_fault BOOLEAN NOT NULL DEFAULT false,
		inference_micros BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	if _, err := db.Exec(decisionEventsTable); err != nil {
		return fmt.Errorf("failed to create decision_events table: %w", err)
	}

	// Create anomaly_events table - stores detected sensor anomalies
	anomalyEventsTable := `
	CREATE TABLE IF NOT EXISTS anomaly_events (
		id SERIAL PRIMARY KEY,
		channel SMALLINT NOT NULL CHECK (channel >= 0 AND channel < 4),
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		kind VARCHAR(50) NOT NULL CHECK (kind IN ('sensor_fault', 'statistical', 'range')),
		score DECIMAL(6,4) NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		moisture DECIMAL(6,1) NOT NULL,
		temperature DECIMAL(5,1) NOT NULL,
		humidity DECIMAL(5,1) NOT NULL,
		light DECIMAL(6,1) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	if _, err := db.Exec(anomalyEventsTable); err != nil {
		return fmt.Errorf("failed to create anomaly_events table: %w", err)
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON samples(timestamp DESC);",
		"CREATE INDEX IF NOT EXISTS idx_samples_channel ON samples(channel);",
		"CREATE INDEX IF NOT EXISTS idx_decision_events_timestamp ON decision_events(timestamp DESC);",
		"CREATE INDEX IF NOT EXISTS idx_decision_events_channel ON decision_events(channel);",
		"CREATE INDEX IF NOT EXISTS idx_anomaly_events_timestamp ON anomaly_events(timestamp DESC);",
		"CREATE INDEX IF NOT EXISTS idx_anomaly_events_kind ON anomaly_events(kind);",
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
		"samples",
		"decision_events",
		"anomaly_events",
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
		"samples",
		"decision_events",
		"anomaly_events",
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
