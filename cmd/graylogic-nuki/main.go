// Gray Logic Nuki - Nuki bridge integration for Gray Logic
//
// This is the main entry point for the Nuki bridge service. It connects a
// Nuki bridge (HTTP API + push callbacks) to the Gray Logic MQTT bus and
// exposes a small REST/WebSocket control API:
//   - Serialized, paced access to the bridge HTTP API
//   - Device state derived from listings and push notifications
//   - Lock, latch, ring-to-open and continuous mode commands
//   - Persistent accessory identities and command history in SQLite
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-nuki/internal/accessory"
	"github.com/nerrad567/gray-logic-nuki/internal/api"
	"github.com/nerrad567/gray-logic-nuki/internal/audit"
	"github.com/nerrad567/gray-logic-nuki/internal/bridges/nuki"
	"github.com/nerrad567/gray-logic-nuki/internal/device"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-nuki/internal/infrastructure/tracing"
	"github.com/nerrad567/gray-logic-nuki/migrations"
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

func main() {
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
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Nuki",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"devices_configured", len(cfg.Devices),
	)

	// Tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logging.ServiceName, version)
	if err != nil {
		return fmt.Errorf("initialising tracing: %w", err)
	}
	defer func() {
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			log.Error("error flushing traces", "error", shutdownErr)
		}
	}()

	// Database and accessory registry
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
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())

	accessories := accessory.NewRegistry(accessory.NewSQLiteRepository(db.DB), log.Component("accessory"))
	commandLog := audit.NewSQLiteRepository(db.DB)
	commandRecorder := audit.NewRecorder(commandLog, log.Component("audit"))
	defer commandRecorder.Close()

	// InfluxDB (optional)
	influxClient, err := connectInfluxDB(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Prometheus
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := nuki.NewMetrics(registry)

	// Dispatcher, store and bridge
	dispatcherOpts := nuki.DispatcherOptions{
		Endpoint: nuki.EndpointFromConfig(cfg.Bridge),
		Logger:   log.Component("dispatcher"),
		Metrics:  metrics,
	}
	if influxClient != nil {
		dispatcherOpts.Recorder = influxClient
	}
	dispatcher := nuki.NewDispatcher(dispatcherOpts)
	defer dispatcher.Stop()

	store := device.NewStore()
	store.SetLogger(log.Component("store"))
	if influxClient != nil {
		store.OnChange(nuki.TelemetryObserver(influxClient))
	}

	bridgeOpts := nuki.BridgeOptions{
		Dispatcher:      dispatcher,
		Store:           store,
		Devices:         nuki.SettingsFromConfig(cfg.Devices),
		Binder:          accessories,
		Host:            cfg.Bridge.Host,
		RebootSwitch:    cfg.Bridge.RebootSwitch,
		RefreshInterval: cfg.Bridge.RefreshInterval,
		Metrics:         metrics,
		Auditor:         commandRecorder,
		Logger:          log.Component("bridge"),
	}
	if cfg.Callback.Enabled {
		bridgeOpts.CallbackAddr = fmt.Sprintf(":%d", cfg.Callback.Port)
		if cfg.Callback.Register {
			bridgeOpts.CallbackURL = cfg.Callback.URL()
		}
	}
	bridge, err := nuki.NewBridge(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	healthReporter := nuki.NewHealthReporter(nuki.HealthReporterConfig{
		Version:    version,
		Interval:   cfg.MQTT.HealthInterval,
		Dispatcher: dispatcher,
		Bridge:     bridge,
	})
	healthReporter.SetLogger(log.Component("health"))

	checks := map[string]api.HealthChecker{"database": db}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := connectMQTT(cfg.MQTT, healthReporter, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		checks["mqtt"] = mqttClient

		binding := nuki.NewMQTTBinding(mqttClient, bridge, byte(cfg.MQTT.QoS), log.Component("mqtt"))
		if startErr := binding.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT binding: %w", startErr)
		}
		defer binding.Stop()

		healthReporter.SetPublisher(mqttClient)
		if pubErr := healthReporter.PublishStarting(); pubErr != nil {
			log.Warn("failed to publish starting status", "error", pubErr)
		}
		healthReporter.Start(ctx)
		defer healthReporter.Stop()
	} else {
		log.Info("MQTT disabled")
	}

	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer bridge.Stop()

	// Control API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log,
			Controller: bridge,
			Dispatcher: dispatcher,
			History:    commandLog,
			Checks:     checks,
			Registerer: registry,
			Gatherer:   registry,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("control API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API, bridge, health reporter, MQTT, dispatcher, InfluxDB, database, tracing.

	log.Info("Gray Logic Nuki stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInfluxDB connects to InfluxDB when enabled. A nil client with a
// nil error means telemetry is disabled.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil //nolint:nilnil // disabled is not an error
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		if errors.Is(err, influxdb.ErrDisabled) {
			return nil, nil //nolint:nilnil // disabled is not an error
		}
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// connectMQTT connects to the broker with the health reporter's offline
// message as Last Will.
func connectMQTT(cfg config.MQTTConfig, health *nuki.HealthReporter, log *logging.Logger) (*mqtt.Client, error) {
	willPayload, err := health.LWTPayload()
	if err != nil {
		return nil, fmt.Errorf("building MQTT last will: %w", err)
	}

	client, err := mqtt.Connect(cfg, mqtt.Will{
		Topic:   health.LWTTopic(),
		Payload: willPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client, nil
}
