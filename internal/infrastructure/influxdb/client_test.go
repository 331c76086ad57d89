package influxdb_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/config"
	"github.com/hjdhjd/ratgdo-core/internal/infrastructure/influxdb"
)

// Tests here run without an InfluxDB server: they cover the disabled
// path and the disconnected-client guards on the write methods. Writes
// against a live server are exercised in deployment smoke tests.

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: false,
		URL:     "http://127.0.0.1:8086",
		Bucket:  "ratgdo",
	}

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestClose_Uninitialised(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on uninitialised client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &influxdb.Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestWriteEntityState_Disconnected(t *testing.T) {
	client := &influxdb.Client{}

	err := client.WriteEntityState("cover-door", "cover", 0.5, time.Now())
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("WriteEntityState() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteDoorState_Disconnected(t *testing.T) {
	client := &influxdb.Client{}

	err := client.WriteDoorState("cover-door", "open", 1.0, time.Now())
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("WriteDoorState() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteBridgeHealth_Disconnected(t *testing.T) {
	client := &influxdb.Client{}

	err := client.WriteBridgeHealth(true, 100, 0)
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("WriteBridgeHealth() error = %v, want ErrNotConnected", err)
	}
}

func TestFlush_Uninitialised(t *testing.T) {
	// Flush before Connect must be a no-op, not a panic.
	client := &influxdb.Client{}
	client.Flush()
}
