// FBot Core - ball turret controller
//
// This is the main entry point for the FBot Core application. It wires the
// simulated turret hardware to the fire sequencer and exposes it over:
//   - MQTT chat-style commands (!abfire, !abreload)
//   - an HTTP API with a WebSocket event stream
//   - InfluxDB telemetry (optional)
//
// Usage:
//
//	fbot                       run the controller
//	fbot token <name> [role]   print an operator access token
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/fbot-core/migrations"

	"github.com/nerrad567/fbot-core/internal/api"
	"github.com/nerrad567/fbot-core/internal/audit"
	"github.com/nerrad567/fbot-core/internal/auth"
	"github.com/nerrad567/fbot-core/internal/command"
	"github.com/nerrad567/fbot-core/internal/hardware"
	"github.com/nerrad567/fbot-core/internal/infrastructure/config"
	"github.com/nerrad567/fbot-core/internal/infrastructure/database"
	"github.com/nerrad567/fbot-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/fbot-core/internal/infrastructure/logging"
	"github.com/nerrad567/fbot-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/fbot-core/internal/telemetry"
	"github.com/nerrad567/fbot-core/internal/turret"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// sensorPin is the analog input the magazine sensor is wired to.
const sensorPin = "A0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting FBot Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	sessions := turret.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Bring up the simulated hardware with a full magazine
	sensor := hardware.NewSensor(sensorPin)
	sensor.SetValue(cfg.Turret.LoadedReading)
	motor := hardware.NewMotor(cfg.Turret.SpinUp, cfg.Turret.SpinDown, log)

	tur, err := turret.New(cfg.Turret, turret.Deps{
		Sensor: sensor,
		Motor:  motor,
		Store:  sessions,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating turret: %w", err)
	}
	defer tur.Close()
	log.Info("turret ready",
		"sensor_pin", sensor.Pin(),
		"balls", cfg.Turret.Capacity,
		"loaded", tur.Magazine().Loaded(),
	)

	// Connect to MQTT broker and listen for chat commands (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Device.ID, log)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		dispatcher := command.NewDispatcher(ctx, cfg.Command, tur, log)
		dispatcher.SetAuditor(auditRepo)
		defer dispatcher.Wait()

		listener := command.NewListener(mqttClient, mqttClient.Topics().Command(), byte(cfg.MQTT.QoS), dispatcher, log)
		if startErr := listener.Start(); startErr != nil {
			return fmt.Errorf("starting command listener: %w", startErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Device.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// The hub exists before the API server so the forwarder can broadcast
	// events even when the HTTP surface is disabled.
	hub := api.NewHub(cfg.WebSocket, log, tur.Status)
	go hub.Run(ctx)

	fwdOpts := telemetry.Options{Hub: hub, Logger: log}
	if mqttClient != nil {
		fwdOpts.MQTT = mqttClient
	}
	if influxClient != nil {
		fwdOpts.Metrics = influxClient
	}
	forwarder := telemetry.New(tur, fwdOpts)
	forwarder.Start(ctx)
	defer forwarder.Stop()

	// Start HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Security:    cfg.Security,
			Logger:      log,
			Turret:      tur,
			Sessions:    sessions,
			Telemetry:   forwarder,
			DB:          db.DB,
			Audit:       auditRepo,
			MaxBurst:    cfg.Command.MaxBurst,
			ExternalHub: hub,
			Version:     version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}

		server, newErr := api.New(deps)
		if newErr != nil {
			return fmt.Errorf("creating API server: %w", newErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, forwarder,
	// InfluxDB, command dispatcher, MQTT, turret, database.

	log.Info("FBot Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FBOT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FBOT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// runToken prints an access token for an operator, signed with the
// configured JWT secret. The role defaults to operator.
func runToken(args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: fbot token <name> [viewer|operator]")
	}

	op := auth.Operator{Name: args[0], Role: auth.RoleOperator}
	if len(args) == 2 {
		op.Role = auth.Role(args[1])
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set")
	}

	token, err := auth.GenerateAccessToken(op, cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}
