package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ratgdo-core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	History   HistoryConfig   `yaml:"history"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains the garage-door controller connection settings.
type DeviceConfig struct {
	// Host is the controller's hostname or IP address.
	// When Discovery is enabled and Host is empty, the first discovered
	// device is used instead.
	Host string `yaml:"host"`

	// Port is the controller's native API port. Default: 6053.
	Port int `yaml:"port"`

	// ClientID is the client identifier sent in the protocol handshake.
	ClientID string `yaml:"client_id"`

	// Password authenticates the native API session. Empty is valid
	// for unprotected devices.
	Password string `yaml:"password"`

	// PingInterval is how often to send keep-alive pings, in seconds.
	// Default: 30.
	PingInterval int `yaml:"ping_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// HistoryConfig contains SQLite door-event history settings.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `yaml:"path"`

	// WALMode enables write-ahead logging.
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the SQLite busy timeout in seconds.
	BusyTimeout int `yaml:"busy_timeout"`

	// RetentionDays is how long door events are retained. 0 keeps forever.
	RetentionDays int `yaml:"retention_days"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket event-stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DiscoveryConfig contains mDNS device discovery settings.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`

	// TimeoutSeconds is how long a browse pass waits for responses.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RATGDO_SECTION_KEY
// For example: RATGDO_DEVICE_HOST, RATGDO_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Port:         6053,
			ClientID:     "ratgdo-core",
			PingInterval: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ratgdo-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		History: HistoryConfig{
			Path:          "./data/ratgdo.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8093,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Discovery: DiscoveryConfig{
			Enabled:        true,
			TimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RATGDO_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("RATGDO_DEVICE_HOST"); v != "" {
		cfg.Device.Host = v
	}
	if v := os.Getenv("RATGDO_DEVICE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Device.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("RATGDO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RATGDO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RATGDO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("RATGDO_DEVICE_PASSWORD"); v != "" {
		cfg.Device.Password = v
	}

	// History
	if v := os.Getenv("RATGDO_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// API
	if v := os.Getenv("RATGDO_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("RATGDO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for invalid or inconsistent values.
//
// Returns:
//   - error: Describing the first problem found, or nil if valid
func (c *Config) Validate() error {
	if c.Device.Host == "" && !c.Discovery.Enabled {
		return fmt.Errorf("device.host is required when discovery is disabled")
	}
	if c.Device.Port <= 0 || c.Device.Port > 65535 {
		return fmt.Errorf("device.port must be 1-65535, got %d", c.Device.Port)
	}
	if c.Device.ClientID == "" {
		return fmt.Errorf("device.client_id is required")
	}

	if c.MQTT.Broker.Host == "" {
		return fmt.Errorf("mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port <= 0 || c.MQTT.Broker.Port > 65535 {
		return fmt.Errorf("mqtt.broker.port must be 1-65535, got %d", c.MQTT.Broker.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1, or 2, got %d", c.MQTT.QoS)
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			return fmt.Errorf("influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("api.port must be 1-65535, got %d", c.API.Port)
		}
	}

	return nil
}
