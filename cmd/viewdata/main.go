package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/jbb1988/VF4Tester/config"
	"github.com/jbb1988/VF4Tester/internal/database"
)

func main() {
	var (
		table = flag.String("table", "test_results", "Table to view (test_results, preferences)")
		limit = flag.Int("limit", 10, "Number of records to show")
	)
	flag.Parse()

	log.Println("🔍 VF4Tester Database Viewer")
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
	case "test_results":
		viewTestResults(db, *limit)
	case "preferences":
		viewPreferences(db)
	default:
		log.Printf("Unknown table: %s", *table)
		log.Println("Available tables: test_results, preferences")
	}
}

func viewTestResults(db *database.DB, limit int) {
	query := `
		SELECT seq, id, test_type, small_meter_start, small_meter_end,
		       large_meter_start, large_meter_end, total_volume, flow_rate,
		       notes, recorded_at::text
		FROM test_results
		ORDER BY recorded_at DESC
		LIMIT $1`

	rows, err := db.Query(query, limit)
	if err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}
	defer rows.Close()

	fmt.Printf("\n📊 Latest %d Test Results:\n", limit)
	fmt.Println("=====================================")
	fmt.Printf("%-4s %-36s %-10s %-9s %-9s %-9s %-9s %-8s %-6s %-20s\n",
		"Seq", "ID", "Type", "Sm Start", "Sm End", "Lg Start", "Lg End", "Volume", "Flow", "Recorded")
	fmt.Println("----------------------------------------------------------------------------------------------------------------------------")

	count := 0
	for rows.Next() {
		var seq int
		var id, testType, notes, recordedAt string
		var smallStart, smallEnd, largeStart, largeEnd, totalVolume, flowRate float64

		err := rows.Scan(&seq, &id, &testType, &smallStart, &smallEnd,
			&largeStart, &largeEnd, &totalVolume, &flowRate, &notes, &recordedAt)
		if err != nil {
			log.Printf("❌ Error scanning row: %v", err)
			continue
		}

		fmt.Printf("%-4d %-36s %-10s %-9.2f %-9.2f %-9.2f %-9.2f %-8.2f %-6.1f %-20s\n",
			seq, id, testType, smallStart, smallEnd, largeStart, largeEnd,
			totalVolume, flowRate, recordedAt[:19])
		count++
	}

	if count == 0 {
		fmt.Println("No test results found.")
	} else {
		fmt.Printf("\nTotal: %d results\n", count)
	}
}

func viewPreferences(db *database.DB) {
	query := `
		SELECT key, value, updated_at::text
		FROM preferences
		ORDER BY key`

	rows, err := db.Query(query)
	if err != nil {
		log.Fatalf("❌ Query failed: %v", err)
	}
	defer rows.Close()

	fmt.Printf("\n⚙️  Preferences:\n")
	fmt.Println("==================")
	fmt.Printf("%-20s %-15s %-20s\n", "Key", "Value", "Updated")
	fmt.Println("---------------------------------------------------------")

	count := 0
	for rows.Next() {
		var key, value, updatedAt string

		err := rows.Scan(&key, &value, &updatedAt)
		if err != nil {
			log.Printf("❌ Error scanning row: %v", err)
			continue
		}

		fmt.Printf("%-20s %-15s %-20s\n", key, value, updatedAt[:19])
		count++
	}

	if count == 0 {
		fmt.Println("No preferences set (defaults in effect).")
	} else {
		fmt.Printf("\nTotal: %d preferences\n", count)
	}
}
