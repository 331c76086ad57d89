package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
var (
	// ErrDisabled indicates InfluxDB is disabled in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrNotConnected indicates an operation was attempted without a connection.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection could not be established.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrUnsupportedValue indicates a telemetry value type that cannot be recorded.
	ErrUnsupportedValue = errors.New("influxdb: unsupported value type")
)
