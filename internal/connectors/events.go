package connectors

import "time"

// ConnectionState describes the transport session lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus is a bus event snapshot of the current transport status.
type ConnectionStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Timestamp     time.Time
}

// RawFrame carries frame diagnostics for debug/hex views.
type RawFrame struct {
	Hex string
	Len int
}

// ChannelEvent is one decoded channel slot from a broadcast frame or an admin
// get-channel response.
type ChannelEvent struct {
	Index int
	Name  string
	Role  string
	PSK   []byte
}

// ClientNotificationEvent is a device-originated notice for the operator.
type ClientNotificationEvent struct {
	Message   string
	Severity  string
	Timestamp time.Time
}

// ConfigReady signals that the want-config handshake completed.
type ConfigReady struct {
	Nonce        uint32
	LocalNodeNum uint32
}

// OwnerInfo is the local device identity recovered outside the normal
// config-sync handshake.
type OwnerInfo struct {
	Num       uint32
	ShortName string
	LongName  string
}

// RebootNotice reports that a committed batch edit will reboot the device.
// PendingWrites is the number of write frames sent while the edit was open.
type RebootNotice struct {
	NodeNum       uint32
	PendingWrites int
	Timestamp     time.Time
}
