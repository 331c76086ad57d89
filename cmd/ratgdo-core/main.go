// ratgdo-core - Garage Door Controller Bridge
//
// This is the main entry point for the ratgdo-core application.
// It maintains a session with an ESPHome-based garage door controller
// over its native TCP API and translates between the binary device
// protocol and JSON messages on MQTT:
//   - Door, light, lock, and obstruction telemetry out to MQTT
//   - JSON commands in from MQTT, encoded as device frames
//   - Door-event history in SQLite and telemetry in InfluxDB
//   - A local HTTP/WebSocket status API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hjdhjd/ratgdo-core/internal/api"
	"github.com/hjdhjd/ratgdo-core/internal/bridges/esphome"
	"github.com/hjdhjd/ratgdo-core/internal/discovery"
	"github.com/hjdhjd/ratgdo-core/internal/history"
	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/config"
	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/influxdb"
	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/logging"
	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/mqtt"
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

// historyPruneInterval is how often expired door events are purged.
const historyPruneInterval = 24 * time.Hour

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ratgdo-core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Resolve the device address via mDNS if none is configured
	if cfg.Device.Host == "" {
		if !cfg.Discovery.Enabled {
			return fmt.Errorf("no device host configured and discovery is disabled")
		}
		if err := discoverDevice(ctx, cfg, log); err != nil {
			return fmt.Errorf("discovering device: %w", err)
		}
	}

	// Open door-event history store (optional)
	var eventStore *history.Store
	if cfg.History.Path != "" {
		eventStore, err = history.Open(cfg.History)
		if err != nil {
			return fmt.Errorf("opening event history: %w", err)
		}
		defer func() {
			log.Info("closing event history")
			if closeErr := eventStore.Close(); closeErr != nil {
				log.Error("error closing event history", "error", closeErr)
			}
		}()
		log.Info("event history opened", "path", eventStore.Path())
	} else {
		log.Info("event history disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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

	// Start the device bridge
	bridge, err := startBridge(ctx, cfg, mqttClient, eventStore, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	// Start the status API (optional)
	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Bridge:  bridge,
			MQTT:    mqttClient,
			History: eventStore,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	// Purge expired door events in the background
	if eventStore != nil && cfg.History.RetentionDays > 0 {
		go pruneHistoryLoop(ctx, eventStore, cfg.History.RetentionDays, log)
	}

	// Record bridge health samples in the time-series store
	if influxClient != nil {
		go bridgeHealthLoop(ctx, bridge, influxClient, log)
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, mqttClient, influxClient, eventStore); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Bridge
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Event history (if enabled)

	log.Info("ratgdo-core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RATGDO_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RATGDO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// discoverDevice browses mDNS for a controller and fills in the device
// host and port in place.
func discoverDevice(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	browserCfg := discovery.DefaultBrowserConfig()
	if cfg.Discovery.TimeoutSeconds > 0 {
		browserCfg.BrowseTimeout = time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second
	}

	browser := discovery.NewBrowser(browserCfg)
	defer browser.Stop()

	log.Info("browsing for device", "service", discovery.ServiceType, "timeout", browserCfg.BrowseTimeout)

	dev, err := browser.FindFirst(ctx)
	if err != nil {
		return err
	}

	host := dev.Host
	if len(dev.Addresses) > 0 {
		host = dev.Addresses[0]
	}
	cfg.Device.Host = host
	cfg.Device.Port = dev.Port

	log.Info("device discovered",
		"name", dev.Name,
		"address", dev.Address(),
		"project", dev.Project,
		"version", dev.Version,
	)
	return nil
}

// startBridge initialises and starts the device bridge.
//
// Parameters:
//   - ctx: Context for startup/cancellation
//   - cfg: Application configuration
//   - mqttClient: MQTT client for publishing/subscribing
//   - eventStore: Door-event history store (may be nil)
//   - influxClient: Telemetry store (may be nil)
//   - log: Logger instance
//
// Returns:
//   - *esphome.Bridge: Running bridge
//   - error: If the bridge fails to start
func startBridge(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client, eventStore *history.Store, influxClient *influxdb.Client, log *logging.Logger) (*esphome.Bridge, error) {
	opts := esphome.BridgeOptions{
		Device:     cfg.Device,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Version:    version,
		Logger:     log,
	}
	// Interface values holding typed nil pointers are non-nil; only
	// assign the optional recorders when they actually exist.
	if eventStore != nil {
		opts.Events = eventStore
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	bridge, err := esphome.NewBridge(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started", "device", bridge.DeviceAddress())

	return bridge, nil
}

// pruneHistoryLoop periodically removes door events older than the
// configured retention period.
func pruneHistoryLoop(ctx context.Context, store *history.Store, retentionDays int, log *logging.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour

	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.PruneEvents(ctx, retention)
			if err != nil {
				log.Error("pruning event history failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("pruned event history", "removed", removed, "retention_days", retentionDays)
			}
		}
	}
}

// bridgeHealthInterval is how often a health sample is written to the
// time-series store.
const bridgeHealthInterval = time.Minute

// bridgeHealthLoop periodically samples session statistics into InfluxDB.
func bridgeHealthLoop(ctx context.Context, bridge *esphome.Bridge, influxClient *influxdb.Client, log *logging.Logger) {
	ticker := time.NewTicker(bridgeHealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := bridge.SessionStats()
			if err := influxClient.WriteBridgeHealth(bridge.DeviceConnected(), stats.FramesRx, stats.FramingErrors); err != nil {
				log.Debug("bridge health sample failed", "error", err)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - eventStore: History store to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client, eventStore *history.Store) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if eventStore != nil {
		if err := eventStore.HealthCheck(ctx); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}

	// Device session health is owned by the bridge supervisor; an
	// unreachable device is a retry loop, not a startup failure.

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the
// bridge's MQTTClient interface. The difference is the Subscribe
// handler signature:
//   - Infrastructure mqtt: func(topic string, payload []byte) error
//   - Bridge expects:      func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements esphome.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements esphome.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements esphome.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
