package domain

import "time"

// Node is the merged view of one mesh participant, keyed by its 32-bit node
// number. Optional fields keep last-known-value semantics: nil means the value
// was never reported by any source.
type Node struct {
	Num       uint32
	ShortName string
	LongName  string
	HWModel   string
	PublicKey []byte

	SNR      *float64
	HopsAway *int

	BatteryLevel       *uint32
	Voltage            *float64
	ChannelUtilization *float64
	AirUtilTx          *float64

	LatitudeI  *int32
	LongitudeI *int32
	Altitude   *int32

	LastHeard  time.Time
	IsFavorite bool
	IsIgnored  bool
	UpdatedAt  time.Time
}

// NodeInfoUpdate is a full node-info broadcast as seen during config sync. It
// is authoritative for identity and bookkeeping fields.
type NodeInfoUpdate struct {
	Num       uint32
	ShortName string
	LongName  string
	HWModel   string
	PublicKey []byte

	SNR       *float64
	HopsAway  *int
	LastHeard time.Time

	IsFavorite bool
	IsIgnored  bool

	Position *PositionInfo
	Metrics  *DeviceMetricsInfo
}

// UserInfo is the identity slice of a NODEINFO application payload, learned
// opportunistically from live traffic.
type UserInfo struct {
	ShortName string
	LongName  string
	HWModel   string
	PublicKey []byte
}

// PositionInfo carries coordinates as 1e7-scaled integers, the wire encoding.
type PositionInfo struct {
	LatitudeI  int32
	LongitudeI int32
	Altitude   *int32
}

// DeviceMetricsInfo is the device-metrics slice of a TELEMETRY payload.
type DeviceMetricsInfo struct {
	BatteryLevel       *uint32
	Voltage            *float64
	ChannelUtilization *float64
	AirUtilTx          *float64
}

// MeshViewNode is a record from the external correlation service. It is a
// delayed secondary source and only fills gaps in the local view.
type MeshViewNode struct {
	Num       uint32
	ShortName string
	LongName  string
	HWModel   string
	Role      string
	PublicKey []byte

	LatitudeI  *int32
	LongitudeI *int32
	LastSeen   time.Time
}

// ChannelInfo describes one channel slot, sourced from broadcast frames or
// get-channel admin responses. Identified by index, last write wins.
type ChannelInfo struct {
	Index int
	Name  string
	Role  string
	PSK   []byte
}
