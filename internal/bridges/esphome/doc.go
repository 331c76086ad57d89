// Package esphome implements the client side of the garage-door
// controller's native TCP API and bridges it to MQTT.
//
// The wire protocol is a sentinel-framed stream of length- and
// type-prefixed messages whose payloads use a compact tag-based field
// encoding (varint, fixed32, fixed64, length-delimited). The package
// decodes that format without a schema compiler, drives the session
// handshake and entity enumeration state machine, and translates raw
// telemetry into door, light, and lock semantics.
//
// A Client is one session: its entity keys and device info are only
// valid while its TCP connection lives. The Bridge supervises sessions,
// creating a fresh Client per connection attempt, and carries commands
// and state between the device and the MQTT broker.
package esphome
