package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
device:
  host: "garage.local"
  port: 6053
  client_id: "test-client"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
history:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  enabled: true
  host: "0.0.0.0"
  port: 8093
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Host != "garage.local" {
		t.Errorf("Device.Host = %q, want %q", cfg.Device.Host, "garage.local")
	}

	if cfg.History.Path != "/tmp/test.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  host: ""
discovery:
  enabled: false
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty device.host without discovery, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name: "missing host with discovery disabled",
			mutate: func(cfg *Config) {
				cfg.Device.Host = ""
				cfg.Discovery.Enabled = false
			},
			wantErr: true,
		},
		{
			name: "missing host with discovery enabled",
			mutate: func(cfg *Config) {
				cfg.Device.Host = ""
				cfg.Discovery.Enabled = true
			},
			wantErr: false,
		},
		{
			name:    "missing client ID",
			mutate:  func(cfg *Config) { cfg.Device.ClientID = "" },
			wantErr: true,
		},
		{
			name:    "invalid device port",
			mutate:  func(cfg *Config) { cfg.Device.Port = 0 },
			wantErr: true,
		},
		{
			name:    "missing broker host",
			mutate:  func(cfg *Config) { cfg.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(cfg *Config) { cfg.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid API port",
			mutate:  func(cfg *Config) { cfg.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "influxdb enabled without URL",
			mutate: func(cfg *Config) {
				cfg.InfluxDB.Enabled = true
				cfg.InfluxDB.Bucket = "ratgdo"
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without bucket",
			mutate: func(cfg *Config) {
				cfg.InfluxDB.Enabled = true
				cfg.InfluxDB.URL = "http://localhost:8086"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Device.Host = "garage.local"
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("RATGDO_DEVICE_HOST", "10.0.0.5")
	t.Setenv("RATGDO_DEVICE_PORT", "6054")
	t.Setenv("RATGDO_DEVICE_PASSWORD", "doorpass")
	t.Setenv("RATGDO_MQTT_HOST", "mqtt.example.com")
	t.Setenv("RATGDO_MQTT_USERNAME", "testuser")
	t.Setenv("RATGDO_MQTT_PASSWORD", "testpass")
	t.Setenv("RATGDO_HISTORY_PATH", "/custom/path.db")
	t.Setenv("RATGDO_API_HOST", "192.168.1.1")
	t.Setenv("RATGDO_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Device.Host != "10.0.0.5" {
		t.Errorf("Device.Host = %q, want %q", cfg.Device.Host, "10.0.0.5")
	}

	if cfg.Device.Port != 6054 {
		t.Errorf("Device.Port = %d, want 6054", cfg.Device.Port)
	}

	if cfg.Device.Password != "doorpass" {
		t.Errorf("Device.Password = %q, want %q", cfg.Device.Password, "doorpass")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.History.Path != "/custom/path.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/custom/path.db")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.Port != 6053 {
		t.Errorf("defaultConfig Device.Port = %d, want 6053", cfg.Device.Port)
	}

	if cfg.Device.ClientID == "" {
		t.Error("defaultConfig should have non-empty Device.ClientID")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8093 {
		t.Errorf("defaultConfig API.Port = %d, want 8093", cfg.API.Port)
	}

	if !cfg.Discovery.Enabled {
		t.Error("defaultConfig should enable discovery")
	}
}
