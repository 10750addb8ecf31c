package radio

import (
	"fmt"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"
)

// AdminRequest pairs an admin message with its send policy. Reads expect a
// response and an ack; writes expect neither.
type AdminRequest struct {
	Action       string
	Message      *generated.AdminMessage
	WantResponse bool
}

func GetOwnerRequest() AdminRequest {
	return AdminRequest{
		Action:       "get_owner",
		WantResponse: true,
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_GetOwnerRequest{GetOwnerRequest: true},
		},
	}
}

func GetConfigRequest(configType generated.AdminMessage_ConfigType) AdminRequest {
	return AdminRequest{
		Action:       "get_config",
		WantResponse: true,
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_GetConfigRequest{GetConfigRequest: configType},
		},
	}
}

func GetModuleConfigRequest(configType generated.AdminMessage_ModuleConfigType) AdminRequest {
	return AdminRequest{
		Action:       "get_module_config",
		WantResponse: true,
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_GetModuleConfigRequest{GetModuleConfigRequest: configType},
		},
	}
}

// GetChannelRequest encodes index as index+1: zero is reserved on the wire as
// "unset". The response carries the true zero-based index and no inverse shift
// is applied on decode. The asymmetry is the device protocol's, keep it.
func GetChannelRequest(index int) (AdminRequest, error) {
	if index < 0 || index > 7 {
		return AdminRequest{}, fmt.Errorf("channel index out of range: %d", index)
	}

	return AdminRequest{
		Action:       "get_channel",
		WantResponse: true,
		Message: &generated.AdminMessage{
			// #nosec G115 -- bounded 0..7 above.
			PayloadVariant: &generated.AdminMessage_GetChannelRequest{GetChannelRequest: uint32(index) + 1},
		},
	}, nil
}

func SetOwner(user *generated.User) AdminRequest {
	return AdminRequest{
		Action:  "set_owner",
		Message: &generated.AdminMessage{PayloadVariant: &generated.AdminMessage_SetOwner{SetOwner: user}},
	}
}

func SetConfig(config *generated.Config) AdminRequest {
	return AdminRequest{
		Action:  "set_config",
		Message: &generated.AdminMessage{PayloadVariant: &generated.AdminMessage_SetConfig{SetConfig: config}},
	}
}

func SetModuleConfig(config *generated.ModuleConfig) AdminRequest {
	return AdminRequest{
		Action: "set_module_config",
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_SetModuleConfig{SetModuleConfig: config},
		},
	}
}

func SetChannel(channel *generated.Channel) AdminRequest {
	return AdminRequest{
		Action:  "set_channel",
		Message: &generated.AdminMessage{PayloadVariant: &generated.AdminMessage_SetChannel{SetChannel: channel}},
	}
}

func RebootRequest(seconds int32) AdminRequest {
	return AdminRequest{
		Action:  "reboot",
		Message: &generated.AdminMessage{PayloadVariant: &generated.AdminMessage_RebootSeconds{RebootSeconds: seconds}},
	}
}

func ShutdownRequest(seconds int32) AdminRequest {
	return AdminRequest{
		Action: "shutdown",
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_ShutdownSeconds{ShutdownSeconds: seconds},
		},
	}
}

func FactoryResetConfigRequest() AdminRequest {
	return AdminRequest{
		Action: "factory_reset_config",
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_FactoryResetConfig{FactoryResetConfig: 1},
		},
	}
}

func NodeDBResetRequest() AdminRequest {
	return AdminRequest{
		Action:  "nodedb_reset",
		Message: &generated.AdminMessage{PayloadVariant: &generated.AdminMessage_NodedbReset{NodedbReset: 1}},
	}
}

func BeginEditSettingsRequest() AdminRequest {
	return AdminRequest{
		Action: "begin_edit_settings",
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_BeginEditSettings{BeginEditSettings: true},
		},
	}
}

func CommitEditSettingsRequest() AdminRequest {
	return AdminRequest{
		Action: "commit_edit_settings",
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_CommitEditSettings{CommitEditSettings: true},
		},
	}
}

func RemoveNodeRequest(num uint32) AdminRequest {
	return AdminRequest{
		Action:  "remove_node",
		Message: &generated.AdminMessage{PayloadVariant: &generated.AdminMessage_RemoveByNodenum{RemoveByNodenum: num}},
	}
}

func SetFavoriteRequest(num uint32, favorite bool) AdminRequest {
	if favorite {
		return AdminRequest{
			Action: "set_favorite",
			Message: &generated.AdminMessage{
				PayloadVariant: &generated.AdminMessage_SetFavoriteNode{SetFavoriteNode: num},
			},
		}
	}

	return AdminRequest{
		Action: "remove_favorite",
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_RemoveFavoriteNode{RemoveFavoriteNode: num},
		},
	}
}

func SetIgnoredRequest(num uint32, ignored bool) AdminRequest {
	if ignored {
		return AdminRequest{
			Action: "set_ignored",
			Message: &generated.AdminMessage{
				PayloadVariant: &generated.AdminMessage_SetIgnoredNode{SetIgnoredNode: num},
			},
		}
	}

	return AdminRequest{
		Action: "remove_ignored",
		Message: &generated.AdminMessage{
			PayloadVariant: &generated.AdminMessage_RemoveIgnoredNode{RemoveIgnoredNode: num},
		},
	}
}
