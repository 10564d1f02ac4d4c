package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/smartgrow/irrigation-edge/config"
	"github.com/smartgrow/irrigation-edge/internal/database"
)

func main() {
	var (
		table = flag.String("table", "decision_events", "Table to view (samples, decision_events, anomaly_events)")
		limit = flag.Int("limit", 10, "Number of records to show")
	)
	flag.Parse()

	log.Println("🔍 SmartGrow Database Viewer")
	log.Println("============================")

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("✅ Connected to database: %s@%s:%s/%s",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

	switch *table {
	case "samples":
		viewSamples(db, *limit)
	case "decision_events":
		viewDecisionEvents(db, *limit)
	case "anomaly_events":
		viewAnomalyEvents(db, *limit)
	default:
		log.Printf("Unknown table: %s", *table)
		log.Println("Available tables: samples, decision_events, anomaly_events")
	}
}

func viewSamples(db *database.DB, limit int) {
	query := `
		SELECT id, channel, timestamp, moisture, temperature, humidity, light
		FROM samples
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := db.Query(query, limit)
	if err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}
	defer rows.Close()

	fmt.Printf("\n📊 Latest %d Samples:\n", limit)
	fmt.Println("=====================================")
	fmt.Printf("%-4s %-3s %-20s %-8s %-6s %-8s %-6s\n",
		"ID", "Ch", "Timestamp", "Moisture", "Temp", "Humidity", "Light")
	fmt.Println("---------------------------------------------------------------")

	count := 0
	for rows.Next() {
		var id, channel int
		var timestamp string
		var moisture, temperature, humidity, light float64

		if err := rows.Scan(&id, &channel, &timestamp, &moisture, &temperature, &humidity, &light); err != nil {
			log.Printf("❌ Error scanning row: %v", err)
			continue
		}

		fmt.Printf("%-4d %-3d %-20s %-8.0f %-6.1f %-8.1f %-6.0f\n",
			id, channel, timestamp[:19], moisture, temperature, humidity, light)
		count++
	}

	fmt.Printf("\nTotal: %d records\n", count)
}

func viewDecisionEvents(db *database.DB, limit int) {
	query := `
		SELECT id, channel, timestamp, moisture, tier, duration_ms, amount_ml,
			is_failsafe, executed, refusal_reason
		FROM decision_events
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := db.Query(query, limit)
	if err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}
	defer rows.Close()

	fmt.Printf("\n💧 Latest %d Watering Decisions:\n", limit)
	fmt.Println("=====================================")
	fmt.Printf("%-4s %-3s %-20s %-8s %-4s %-8s %-8s %-8s %-8s %s\n",
		"ID", "Ch", "Timestamp", "Moisture", "Tier", "Dur(ms)", "Amt(ml)", "Failsafe", "Executed", "Refusal")
	fmt.Println("--------------------------------------------------------------------------------------------")

	count := 0
	for rows.Next() {
		var id, channel, tier int
		var timestamp, refusalReason string
		var moisture, amountMl float64
		var durationMs int64
		var isFailsafe, executed bool

		if err := rows.Scan(&id, &channel, &timestamp, &moisture, &tier, &durationMs,
			&amountMl, &isFailsafe, &executed, &refusalReason); err != nil {
			log.Printf("❌ Error scanning row: %v", err)
			continue
		}

		fmt.Printf("%-4d %-3d %-20s %-8.0f %-4d %-8d %-8.0f %-8t %-8t %s\n",
			id, channel, timestamp[:19], moisture, tier, durationMs, amountMl, isFailsafe, executed, refusalReason)
		count++
	}

	fmt.Printf("\nTotal: %d records\n", count)
}

func viewAnomalyEvents(db *database.DB, limit int) {
	query := `
		SELECT id, channel, timestamp, kind, score, description
		FROM anomaly_events
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := db.Query(query, limit)
	if err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}
	defer rows.Close()

	fmt.Printf("\n🚨 Latest %d Anomaly Events:\n", limit)
	fmt.Println("=====================================")
	fmt.Printf("%-4s %-3s %-20s %-14s %-7s %s\n",
		"ID", "Ch", "Timestamp", "Kind", "Score", "Description")
	fmt.Println("---------------------------------------------------------------------------")

	count := 0
	for rows.Next() {
		var id, channel int
		var timestamp, kind, description string
		var score float64

		if err := rows.Scan(&id, &channel, &timestamp, &kind, &score, &description); err != nil {
			log.Printf("❌ Error scanning row: %v", err)
			continue
		}

		fmt.Printf("%-4d %-3d %-20s %-14s %-7.4f %s\n",
			id, channel, timestamp[:19], kind, score, description)
		count++
	}

	fmt.Printf("\nTotal: %d records\n", count)
}
