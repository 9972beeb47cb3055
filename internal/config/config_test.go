package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daw.TCPPort != 9877 || cfg.Daw.UDPPort != 9876 {
		t.Errorf("daw ports = %d/%d", cfg.Daw.TCPPort, cfg.Daw.UDPPort)
	}
	if cfg.Bridge.SendPort != 9878 || cfg.Bridge.RecvPort != 9879 {
		t.Errorf("bridge ports = %d/%d", cfg.Bridge.SendPort, cfg.Bridge.RecvPort)
	}
	if cfg.Bridge.Enabled {
		t.Error("bridge should be disabled by default")
	}
	if cfg.Dashboard.Host != "127.0.0.1" {
		t.Errorf("dashboard host = %q", cfg.Dashboard.Host)
	}
	if cfg.Singleton.Port != 9881 {
		t.Errorf("sentinel port = %d", cfg.Singleton.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_FileAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DAW_HOST", "10.0.0.5")
	path := filepath.Join(t.TempDir(), "livebridge.yaml")
	raw := `
daw:
  host: ${TEST_DAW_HOST}
  tcp_port: 19877
bridge:
  enabled: true
catalog:
  dir: /var/lib/livebridge
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daw.Host != "10.0.0.5" {
		t.Errorf("env expansion failed: host = %q", cfg.Daw.Host)
	}
	if cfg.TCPAddr() != "10.0.0.5:19877" {
		t.Errorf("TCPAddr = %q", cfg.TCPAddr())
	}
	// Unset fields still get defaults.
	if cfg.UDPAddr() != "10.0.0.5:9876" {
		t.Errorf("UDPAddr = %q", cfg.UDPAddr())
	}
	if !cfg.Bridge.Enabled || cfg.BridgeSendAddr() != "127.0.0.1:9878" {
		t.Errorf("bridge = %+v", cfg.Bridge)
	}
	if cfg.Catalog.Dir != "/var/lib/livebridge" {
		t.Errorf("catalog dir = %q", cfg.Catalog.Dir)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livebridge.yaml")
	raw := `
daw:
  tcp_port: 19877
dashboard:
  enabled: false
  port: 8000
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIVEBRIDGE_TCP_PORT", "29877")
	t.Setenv("LIVEBRIDGE_DASHBOARD_ENABLED", "true")
	t.Setenv("LIVEBRIDGE_DASHBOARD_PORT", "8123")
	t.Setenv("LIVEBRIDGE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daw.TCPPort != 29877 {
		t.Errorf("tcp port = %d", cfg.Daw.TCPPort)
	}
	if !cfg.Dashboard.Enabled || cfg.Dashboard.Port != 8123 {
		t.Errorf("dashboard = %+v", cfg.Dashboard)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livebridge.yaml")
	if err := os.WriteFile(path, []byte("daw: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_IgnoresMalformedEnv(t *testing.T) {
	t.Setenv("LIVEBRIDGE_TCP_PORT", "not-a-port")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daw.TCPPort != 9877 {
		t.Errorf("tcp port = %d", cfg.Daw.TCPPort)
	}
}
