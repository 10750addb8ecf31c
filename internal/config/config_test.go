package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load missing config: %v", err)
	}
	if cfg.Connection.Connector != ConnectorIP {
		t.Fatalf("expected default connector, got %s", cfg.Connection.Connector)
	}
	if cfg.History.PacketCap != DefaultPacketCap {
		t.Fatalf("expected default packet cap, got %d", cfg.History.PacketCap)
	}
	if cfg.MeshView.DaysActive != DefaultDaysActive {
		t.Fatalf("expected default days active, got %d", cfg.MeshView.DaysActive)
	}
}

func TestLoadFillsMissingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := []byte(`{"connection": {"connector": "serial", "serial_port": "/dev/ttyUSB0"}}`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Connection.Connector != ConnectorSerial {
		t.Fatalf("connector mismatch: %s", cfg.Connection.Connector)
	}
	if cfg.Connection.SerialBaud != DefaultSerialBaud {
		t.Fatalf("expected default baud, got %d", cfg.Connection.SerialBaud)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestValidateConnectorRequirements(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ip connector without host must fail validation")
	}

	cfg.Connection.Host = "192.168.1.10"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid ip config rejected: %v", err)
	}

	cfg.Connection.Connector = ConnectorSerial
	if err := cfg.Validate(); err == nil {
		t.Fatalf("serial connector without port must fail validation")
	}
	cfg.Connection.SerialPort = "/dev/ttyACM0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid serial config rejected: %v", err)
	}

	cfg.Connection.Connector = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown connector must fail validation")
	}
}

func TestValidateMeshViewBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Connection.Host = "192.168.1.10"
	cfg.MeshView.Enabled = true
	cfg.MeshView.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("enabled meshview with bad url must fail validation")
	}

	cfg.MeshView.BaseURL = "https://map.example.org"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid meshview config rejected: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Connection.Host = "10.0.0.5"
	cfg.History.PacketCap = 1234

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if loaded.Connection.Host != "10.0.0.5" {
		t.Fatalf("host mismatch: %q", loaded.Connection.Host)
	}
	if loaded.History.PacketCap != 1234 {
		t.Fatalf("packet cap mismatch: %d", loaded.History.PacketCap)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file must not remain after save")
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default() // ip connector, empty host

	if err := Save(path, cfg); err == nil {
		t.Fatalf("expected validation error on save")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid config must not be written")
	}
}
