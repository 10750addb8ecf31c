package connectors

const (
	TopicConnStatus         = "conn.status"
	TopicPacket             = "packet.decoded"
	TopicRawFrameIn         = "raw.frame.in"
	TopicRawFrameOut        = "raw.frame.out"
	TopicChannels           = "channels"
	TopicAdminMessage       = "admin.message"
	TopicClientNotification = "client.notification"
	TopicConfigReady        = "config.ready"
	TopicOwner              = "owner.info"
	TopicRebootNotice       = "reboot.notice"
)
