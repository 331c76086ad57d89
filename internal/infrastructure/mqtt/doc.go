// Package mqtt wraps the paho MQTT client for ratgdo-core.
//
// It provides connection lifecycle management with Last Will and Testament,
// automatic reconnection with subscription restoration, panic-safe message
// handlers, and topic builders for the ratgdo topic hierarchy
// (ratgdo/{category}/{protocol}/{id}).
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil { ... }
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.BridgeCommandWildcard("esphome"), 1, handler)
package mqtt
