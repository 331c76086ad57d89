package esphome

import "time"

// Message type identifiers for the device's native TCP protocol.
// Numbering follows the device firmware's message registry; gaps are
// message types this client never sends or handles.
const (
	MsgHelloRequest       = 1
	MsgHelloResponse      = 2
	MsgConnectRequest     = 3
	MsgConnectResponse    = 4
	MsgDisconnectRequest  = 5
	MsgDisconnectResponse = 6
	MsgPingRequest        = 7
	MsgPingResponse       = 8
	MsgDeviceInfoRequest  = 9
	MsgDeviceInfoResponse = 10

	MsgListEntitiesRequest            = 11
	MsgListEntitiesBinarySensor       = 12
	MsgListEntitiesCover              = 13
	MsgListEntitiesFan                = 14
	MsgListEntitiesLight              = 15
	MsgListEntitiesSensor             = 16
	MsgListEntitiesSwitch             = 17
	MsgListEntitiesTextSensor         = 18
	MsgListEntitiesDone               = 19
	MsgSubscribeStatesRequest         = 20
	MsgBinarySensorStateResponse      = 21
	MsgCoverStateResponse             = 22
	MsgFanStateResponse               = 23
	MsgLightStateResponse             = 24
	MsgSensorStateResponse            = 25
	MsgSwitchStateResponse            = 26
	MsgTextSensorStateResponse        = 27
	MsgCoverCommandRequest            = 30
	MsgFanCommandRequest              = 31
	MsgLightCommandRequest            = 32
	MsgSwitchCommandRequest           = 33
	MsgGetTimeRequest                 = 36
	MsgGetTimeResponse                = 37
	MsgListEntitiesNumber             = 49
	MsgNumberStateResponse            = 50
	MsgNumberCommandRequest           = 51
	MsgListEntitiesLock               = 58
	MsgLockStateResponse              = 59
	MsgLockCommandRequest             = 60
	MsgListEntitiesButton             = 61
	MsgButtonCommandRequest           = 62
	MsgListEntitiesEvent              = 107
	MsgEventResponse                  = 108
)

// Protocol version advertised in the hello request. The device rejects
// majors it does not speak.
const (
	apiVersionMajor = 1
	apiVersionMinor = 10
)

// listEntityTypes maps entity enumeration message types to the entity
// kind string used in entity ids and MQTT topics.
var listEntityTypes = map[uint64]string{
	MsgListEntitiesBinarySensor: "binary_sensor",
	MsgListEntitiesCover:        "cover",
	MsgListEntitiesFan:          "fan",
	MsgListEntitiesLight:        "light",
	MsgListEntitiesSensor:       "sensor",
	MsgListEntitiesSwitch:       "switch",
	MsgListEntitiesTextSensor:   "text_sensor",
	MsgListEntitiesNumber:       "number",
	MsgListEntitiesLock:         "lock",
	MsgListEntitiesButton:       "button",
	MsgListEntitiesEvent:        "event",
}

// stateResponseTypes maps state update message types to the entity kind
// whose catalog entries they reference.
var stateResponseTypes = map[uint64]string{
	MsgBinarySensorStateResponse: "binary_sensor",
	MsgCoverStateResponse:        "cover",
	MsgFanStateResponse:          "fan",
	MsgLightStateResponse:        "light",
	MsgSensorStateResponse:       "sensor",
	MsgSwitchStateResponse:       "switch",
	MsgTextSensorStateResponse:   "text_sensor",
	MsgNumberStateResponse:       "number",
	MsgLockStateResponse:         "lock",
	MsgEventResponse:             "event",
}

// Handshake and session message builders. Each returns a complete frame
// ready to write to the socket.

// encodeHelloRequest builds the session-opening hello.
//
// Fields: 1 client info string, 2 API major, 3 API minor.
func encodeHelloRequest(clientID string) []byte {
	var payload []byte
	payload = AppendStringField(payload, 1, clientID)
	payload = AppendVarintField(payload, 2, apiVersionMajor)
	payload = AppendVarintField(payload, 3, apiVersionMinor)
	return EncodeFrame(MsgHelloRequest, payload)
}

// encodeConnectRequest builds the authentication message.
// An empty password is a valid credential for unprotected devices.
//
// Fields: 1 password string.
func encodeConnectRequest(password string) []byte {
	var payload []byte
	if password != "" {
		payload = AppendStringField(payload, 1, password)
	}
	return EncodeFrame(MsgConnectRequest, payload)
}

// encodeEmptyMessage builds a frame with no payload. Used for ping,
// disconnect, device info, entity enumeration, and state subscription
// requests, which carry no fields.
func encodeEmptyMessage(msgType uint64) []byte {
	return EncodeFrame(msgType, nil)
}

// encodeGetTimeResponse answers a device time request with the current
// epoch second.
//
// Fields: 1 epoch seconds (fixed32).
func encodeGetTimeResponse(now time.Time) []byte {
	var payload []byte
	payload = AppendFixed32Field(payload, 1, uint32(now.Unix()))
	return EncodeFrame(MsgGetTimeResponse, payload)
}
