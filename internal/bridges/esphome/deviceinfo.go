package esphome

// DeviceInfo describes the connected device as reported during the
// session handshake.
type DeviceInfo struct {
	// UsesPassword reports whether the device requires authentication.
	UsesPassword bool

	// Name is the device's configured node name.
	Name string

	// MACAddress is the device's MAC, as reported ("AA:BB:CC:DD:EE:FF").
	MACAddress string

	// FirmwareVersion is the firmware version string.
	FirmwareVersion string

	// CompilationTime is when the firmware was built, as reported.
	CompilationTime string

	// Model is the hardware board identifier.
	Model string

	// HasDeepSleep reports whether the device sleeps between updates.
	// A sleeping device drops the session; this is expected, not an error.
	HasDeepSleep bool

	// ProjectName identifies the firmware project ("ratgdo.ratgdo").
	ProjectName string

	// ProjectVersion is the firmware project version.
	ProjectVersion string

	// WebServerPort is the device's HTTP port, 0 if none.
	WebServerPort uint32

	// LegacyBluetoothProxyVersion is the old-style BT proxy version.
	LegacyBluetoothProxyVersion uint32

	// BluetoothProxyFeatureFlags is the BT proxy capability bitmask.
	BluetoothProxyFeatureFlags uint32
}

// decodeDeviceInfo translates a device info payload into a DeviceInfo.
// Absent fields keep their zero value; the device omits fields whose
// value is zero or empty.
func decodeDeviceInfo(fields FieldMap) DeviceInfo {
	return DeviceInfo{
		UsesPassword:                fields.Bool(1),
		Name:                        fields.String(2),
		MACAddress:                  fields.String(3),
		FirmwareVersion:             fields.String(4),
		CompilationTime:             fields.String(5),
		Model:                       fields.String(6),
		HasDeepSleep:                fields.Bool(7),
		ProjectName:                 fields.String(8),
		ProjectVersion:              fields.String(9),
		WebServerPort:               uint32(fields.Uint(10)),
		LegacyBluetoothProxyVersion: uint32(fields.Uint(11)),
		BluetoothProxyFeatureFlags:  uint32(fields.Uint(12)),
	}
}
