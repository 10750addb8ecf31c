package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ConnectorType identifies which transport backend should be used.
type ConnectorType string

const (
	ConnectorIP     ConnectorType = "ip"
	ConnectorSerial ConnectorType = "serial"

	DefaultSerialBaud    = 115200
	DefaultPacketCap     = 5000
	DefaultNodeTickerSec = 1
	DefaultDaysActive    = 7
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig contains connector-specific connection parameters.
type ConnectionConfig struct {
	Connector  ConnectorType `json:"connector"`
	Host       string        `json:"host"`
	SerialPort string        `json:"serial_port"`
	SerialBaud int           `json:"serial_baud"`
	SkipNodeDB bool          `json:"skip_node_db"`
}

// MeshViewConfig controls the optional map-service ingest.
type MeshViewConfig struct {
	Enabled             bool   `json:"enabled"`
	BaseURL             string `json:"base_url"`
	DaysActive          int    `json:"days_active"`
	FirehoseIntervalSec int    `json:"firehose_interval_sec"`
	ConfirmIntervalSec  int    `json:"confirm_interval_sec"`
}

// HistoryConfig bounds the in-memory packet history and the node refresh
// cadence.
type HistoryConfig struct {
	PacketCap     int `json:"packet_cap"`
	NodeTickerSec int `json:"node_ticker_sec"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	Enabled          bool `json:"enabled"`
	ConnectionStatus bool `json:"connection_status"`
	DeviceNotices    bool `json:"device_notices"`
	RebootNotices    bool `json:"reboot_notices"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection"`
	Logging       LoggingConfig      `json:"logging"`
	MeshView      MeshViewConfig     `json:"meshview"`
	History       HistoryConfig      `json:"history"`
	Notifications NotificationConfig `json:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorIP,
			SerialBaud: DefaultSerialBaud,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		MeshView: MeshViewConfig{
			Enabled:             false,
			DaysActive:          DefaultDaysActive,
			FirehoseIntervalSec: 1,
			ConfirmIntervalSec:  5,
		},
		History: HistoryConfig{
			PacketCap:     DefaultPacketCap,
			NodeTickerSec: DefaultNodeTickerSec,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			ConnectionStatus: true,
			DeviceNotices:    true,
			RebootNotices:    true,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Connection.Connector == "" {
		c.Connection.Connector = ConnectorIP
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.MeshView.DaysActive <= 0 {
		c.MeshView.DaysActive = DefaultDaysActive
	}
	if c.MeshView.FirehoseIntervalSec <= 0 {
		c.MeshView.FirehoseIntervalSec = 1
	}
	if c.MeshView.ConfirmIntervalSec <= 0 {
		c.MeshView.ConfirmIntervalSec = 5
	}
	if c.History.PacketCap <= 0 {
		c.History.PacketCap = DefaultPacketCap
	}
	if c.History.NodeTickerSec <= 0 {
		c.History.NodeTickerSec = DefaultNodeTickerSec
	}
}

func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
	case ConnectorIP:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("ip host is required")
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Connection.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	if c.MeshView.Enabled {
		parsed, err := url.Parse(c.MeshView.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid meshview base url: %q", c.MeshView.BaseURL)
		}
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
