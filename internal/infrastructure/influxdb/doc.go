// Package influxdb provides time-series telemetry recording for entity
// state updates and bridge health metrics.
//
// Writes are non-blocking and batched. Async write failures are surfaced
// through an error callback rather than returned from write calls.
package influxdb
