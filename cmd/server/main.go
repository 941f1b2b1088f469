package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jbb1988/VF4Tester/config"
	"github.com/jbb1988/VF4Tester/internal/database"
	httphandlers "github.com/jbb1988/VF4Tester/internal/http"
	"github.com/jbb1988/VF4Tester/internal/models"
	"github.com/jbb1988/VF4Tester/internal/mqtt"
	"github.com/jbb1988/VF4Tester/internal/store"
	"github.com/jbb1988/VF4Tester/internal/ws"
)

func main() {
	log.Println("💧 Starting VF4 Water Meter Test Recorder Backend...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found: %v", err)
	} else {
		log.Println("✅ Loaded .env file")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Loaded configuration: Server port=%s, DB host=%s",
		cfg.Server.Port, cfg.Database.Host)

	// Initialize data store with PostgreSQL or fallback to in-memory
	var dataStore store.DataStore

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Printf("⚠️  Warning: Failed to connect to database: %v", err)
		log.Println("📱 Falling back to in-memory storage")
		dataStore = store.NewStore()
		log.Println("💾 Initialized in-memory data store")
	} else {
		log.Println("✅ Connected to PostgreSQL database")

		if err := database.CreateTables(db.DB); err != nil {
			log.Fatalf("❌ Failed to create tables: %v", err)
		}

		dataStore = database.NewDatabaseStore(db.DB)
		log.Println("💾 Initialized PostgreSQL data store")
	}

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	go wsHub.Run()
	log.Println("🔌 Started WebSocket hub")

	// Initialize MQTT client for field test kit submissions (skip if no broker configured)
	var mqttClient *mqtt.Client
	if cfg.MQTT.BrokerURL != "" && cfg.MQTT.BrokerURL != "tcp://localhost:1883" {
		log.Println("📡 Attempting to connect to MQTT broker...")

		mqttConfig := &mqtt.Config{
			BrokerURL:    cfg.MQTT.BrokerURL,
			ClientID:     cfg.MQTT.ClientID,
			Username:     cfg.MQTT.Username,
			Password:     cfg.MQTT.Password,
			KeepAlive:    cfg.MQTT.KeepAlive,
			PingTimeout:  cfg.MQTT.PingTimeout,
			ConnectRetry: cfg.MQTT.ConnectRetry,
			TopicSubmit:  cfg.MQTT.TopicSubmit,
		}

		client := mqtt.NewClient(mqttConfig)
		client.SetDataHandler(func(result *models.TestResult, warnings []string) {
			dataStore.Append(*result)
			wsHub.BroadcastTestResult(result)
		})
		client.SetErrorHandler(func(err error) {
			log.Printf("⚠️  MQTT error: %v", err)
		})

		if err := client.Connect(); err != nil {
			log.Printf("⚠️  Warning: Failed to connect to MQTT broker: %v", err)
			log.Println("📡 Continuing without MQTT support")
		} else {
			if err := client.SubscribeToSubmissions(); err != nil {
				log.Printf("⚠️  Warning: Failed to subscribe to submission topics: %v", err)
			}
			log.Printf("📡 MQTT client connected - Broker: %s", cfg.MQTT.BrokerURL)
			mqttClient = client
			defer mqttClient.Disconnect()
		}
	} else {
		log.Println("📡 MQTT broker not configured, skipping MQTT initialization")
	}

	// Setup HTTP routes
	router := httphandlers.SetupRoutes(dataStore, wsHub)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Printf("🚀 Starting HTTP server on port %s", cfg.Server.Port)
		log.Println("📡 API endpoints available:")
		log.Println("  GET /api/v1/stats - System statistics")
		log.Println("  POST /api/v1/tests - Record a calibration test")
		log.Println("  GET /api/v1/tests - List tests (filter with ?type= and ?q=)")
		log.Println("  GET /api/v1/tests/recent?limit=50 - Most recent tests")
		log.Println("  GET /api/v1/tests/stats - Accuracy statistics and pass rate")
		log.Println("  GET /api/v1/tests/trend - Accuracy trend chart data")
		log.Println("  GET /api/v1/tests/{id} - Single test details")
		log.Println("  GET /api/v1/tests/{id}/export.csv - Single test detail CSV")
		log.Println("  PATCH /api/v1/tests/{id}/notes - Update test notes")
		log.Println("  GET /api/v1/preferences - Current preferences")
		log.Println("  PUT /api/v1/preferences - Update preferences")
		log.Println("  GET /api/v1/export/results.csv - Export tests to CSV")
		log.Println("  GET /api/v1/export/results.json - Export tests to JSON")
		log.Println("  GET /api/v1/export/results.xlsx - Export tests to Excel")
		log.Println("  GET /api/v1/export/report - Plain text test report")
		log.Println("  WS /ws - WebSocket for real-time updates")
		log.Printf("🌐 Server running at http://localhost:%s", cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server shutdown complete")
}
