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

	"github.com/smartgrow/irrigation-edge/config"
	"github.com/smartgrow/irrigation-edge/internal/database"
	httphandlers "github.com/smartgrow/irrigation-edge/internal/http"
	"github.com/smartgrow/irrigation-edge/internal/ml"
	"github.com/smartgrow/irrigation-edge/internal/models"
	"github.com/smartgrow/irrigation-edge/internal/mqtt"
	"github.com/smartgrow/irrigation-edge/internal/safety"
	"github.com/smartgrow/irrigation-edge/internal/services"
	"github.com/smartgrow/irrigation-edge/internal/store"
	"github.com/smartgrow/irrigation-edge/internal/ws"
)

func main() {
	log.Println("🌱 Starting SmartGrow Irrigation Edge Controller...")

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
		dataStore = store.NewStore(1000)
		log.Println("💾 Initialized in-memory data store")
	} else {
		log.Println("✅ Connected to PostgreSQL database")

		if err := database.CreateTables(db.DB); err != nil {
			log.Fatalf("❌ Failed to run migrations: %v", err)
		}

		dataStore = database.NewDatabaseStore(db.DB)
		log.Println("💾 Initialized PostgreSQL data store")
		defer db.Close()
	}

	// Initialize the decision engine and apply the plants file
	engine := ml.NewDecisionEngine()
	if plants, err := config.LoadPlantsFile(cfg.Loop.PlantsFile); err != nil {
		log.Fatalf("❌ Failed to load plants file: %v", err)
	} else {
		for _, assignment := range plants.Channels {
			plant, _ := models.ParsePlantType(assignment.Plant)
			stage, _ := models.ParseGrowthStage(assignment.Stage)
			engine.SetPlantConfig(assignment.Channel, plant, stage)
			log.Printf("🌿 Channel %d: %s (%s)", assignment.Channel, plant, stage)
		}
		for _, override := range plants.Thresholds {
			plant, _ := models.ParsePlantType(override.Plant)
			engine.Table().UpdateThresholds(plant, override.Moisture, override.Temperature, override.Humidity)
			log.Printf("🌿 Threshold override for %s: moisture %.0f", plant, override.Moisture)
		}
	}

	// Initialize the actuator safety controller
	safetyCfg := safety.DefaultConfig()
	safetyCfg.MaxPumpDuration = cfg.Safety.MaxPumpDuration
	safetyCfg.Cooldown = cfg.Safety.Cooldown
	safetyCfg.MaxDailyActivations = cfg.Safety.MaxDailyActivations
	safetyCtl, err := safety.NewController(safetyCfg, safety.SystemClock{}, safety.LogDriver{}, safety.NopWatchdog{})
	if err != nil {
		log.Fatalf("❌ Invalid safety configuration: %v", err)
	}
	log.Println("🛡️  Initialized actuator safety controller")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	go wsHub.Run()
	log.Println("🔌 Started WebSocket hub")

	// Initialize MQTT client (skip if no broker URL configured)
	var mqttClient *mqtt.Client
	if cfg.MQTT.BrokerURL != "" {
		log.Println("📡 Attempting to connect to MQTT broker...")
		client := mqtt.NewClient(&mqtt.Config{
			BrokerURL:    cfg.MQTT.BrokerURL,
			ClientID:     cfg.MQTT.ClientID,
			Username:     cfg.MQTT.Username,
			Password:     cfg.MQTT.Password,
			KeepAlive:    cfg.MQTT.KeepAlive,
			PingTimeout:  cfg.MQTT.PingTimeout,
			ConnectRetry: cfg.MQTT.ConnectRetry,
		})
		if err := client.Connect(); err != nil {
			log.Printf("⚠️  Warning: Failed to connect to MQTT broker: %v", err)
			log.Println("📡 Continuing without MQTT support")
		} else {
			log.Printf("📡 MQTT client connected - Broker: %s", cfg.MQTT.BrokerURL)
			mqttClient = client
			defer mqttClient.Disconnect()
		}
	} else {
		log.Println("📡 MQTT broker not configured, skipping MQTT initialization")
	}

	// Initialize and start the control loop
	loopCfg := services.ControlLoopConfig{
		TickInterval:      cfg.Loop.TickInterval,
		HealthInterval:    cfg.Loop.HealthInterval,
		ReportInterval:    cfg.Loop.ReportInterval,
		MinSampleInterval: cfg.Loop.MinSampleInterval,
	}
	loop, err := services.NewControlLoop(loopCfg, engine, safetyCtl, dataStore, mqttClient, wsHub)
	if err != nil {
		log.Fatalf("❌ Invalid control loop configuration: %v", err)
	}

	// Wire the MQTT feed into the control loop
	if mqttClient != nil {
		mqttClient.SetSampleHandler(func(sample models.Sample) {
			loop.Submit(sample)
		})
		mqttClient.SetCommandHandler(func(command models.OperatorCommand) {
			loop.SubmitCommand(command)
		})
		mqttClient.SetErrorHandler(func(err error) {
			log.Printf("⚠️  MQTT: %v", err)
			wsHub.BroadcastError(err.Error())
		})
		if err := mqttClient.SubscribeToSamples(); err != nil {
			log.Printf("⚠️  Warning: Failed to subscribe to sample topics: %v", err)
		}
		if err := mqttClient.SubscribeToCommands(); err != nil {
			log.Printf("⚠️  Warning: Failed to subscribe to command topic: %v", err)
		}
	}

	loop.Start()
	log.Println("🕐 Started irrigation control loop")

	// Setup HTTP routes
	router := httphandlers.SetupRoutes(dataStore, wsHub, loop, engine, safetyCtl)

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
		log.Println("  GET /api/v1/sensors/latest - Latest sample per channel")
		log.Println("  GET /api/v1/sensors/recent?channel=0&limit=50 - Recent samples")
		log.Println("  POST /api/v1/sensors/data - Inject a sample (testing)")
		log.Println("  GET /api/v1/decisions/recent - Recent watering decisions")
		log.Println("  GET /api/v1/decisions/history - Decisions in time range")
		log.Println("  GET /api/v1/anomalies/recent - Recent anomaly events")
		log.Println("  GET /api/v1/anomalies/history - Anomalies in time range")
		log.Println("  GET /api/v1/pumps - Pump statuses")
		log.Println("  POST /api/v1/pumps/{channel}/stop - Emergency stop one pump")
		log.Println("  POST /api/v1/pumps/stop - Emergency stop all pumps")
		log.Println("  GET /api/v1/safety/health - Safety controller health")
		log.Println("  POST /api/v1/safety/reset - Clear system failsafe")
		log.Println("  POST /api/v1/safety/failsafe-mode - Toggle failsafe watering")
		log.Println("  GET /api/v1/plants - Plant profiles")
		log.Println("  POST /api/v1/plants/thresholds - Override plant thresholds")
		log.Println("  PUT /api/v1/plants/channels/{channel} - Assign plant to channel")
		log.Println("  GET /api/v1/export/history.xlsx - Export history to Excel")
		log.Println("  GET /api/v1/export/history.csv - Export history to CSV")
		log.Println("  GET /metrics - Prometheus metrics")
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

	// Stop the control loop; this also forces every pump off
	loop.Stop()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server shutdown complete")
}
