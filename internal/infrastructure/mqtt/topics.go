package mqtt

import "fmt"

// Topic prefixes for the ratgdo MQTT surface.
//
// All bridge topics use the flat scheme: ratgdo/{category}/{protocol}/{id}.
// The protocol segment identifies the bridge ("esphome"); the id segment is
// the derived entity id (e.g. "cover-garage_door").
const (
	// TopicPrefix is the base for all ratgdo topics.
	TopicPrefix = "ratgdo"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "ratgdo/system"
)

// Topics provides builders for ratgdo MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("esphome", "cover-garage_door")
//	// Returns: "ratgdo/state/esphome/cover-garage_door"
type Topics struct{}

// BridgeState returns the topic for entity state updates from a bridge.
//
// Example: ratgdo/state/esphome/cover-garage_door
func (Topics) BridgeState(protocol, entityID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, entityID)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: ratgdo/command/esphome/cover-garage_door
func (Topics) BridgeCommand(protocol, entityID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, entityID)
}

// BridgeCommandWildcard returns the subscription pattern covering every
// command topic for a bridge.
//
// Example: ratgdo/command/esphome/+
func (Topics) BridgeCommandWildcard(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// BridgeAck returns the topic for command acknowledgements from a bridge.
//
// Example: ratgdo/ack/esphome/cover-garage_door
func (Topics) BridgeAck(protocol, entityID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, entityID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: ratgdo/health/esphome
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// BridgeDiscovery returns the topic for entity discovery snapshots from a bridge.
//
// Example: ratgdo/discovery/esphome
func (Topics) BridgeDiscovery(protocol string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, protocol)
}

// SystemStatus returns the system status topic (online/offline, also LWT).
//
// Example: ratgdo/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
