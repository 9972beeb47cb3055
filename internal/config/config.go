// Package config loads the livebridge YAML configuration with
// environment expansion, defaults, and env-var overrides. The daemon
// runs fine with no config file at all: every field has a default that
// matches a stock Ableton Live remote script setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for livebridge.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Daw       DawConfig       `yaml:"daw"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Singleton SingletonConfig `yaml:"singleton"`
	Templates TemplatesConfig `yaml:"templates"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	// Name is reported during the stdio handshake.
	Name string `yaml:"name"`
}

// DawConfig addresses the remote script inside the DAW: the TCP
// command socket and the UDP realtime socket.
type DawConfig struct {
	Host    string `yaml:"host"`
	TCPPort int    `yaml:"tcp_port"`
	UDPPort int    `yaml:"udp_port"`
}

// BridgeConfig addresses the Max for Live device. Send and recv are
// separate sockets: requests go to send_port, responses arrive on
// recv_port.
type BridgeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	SendPort int    `yaml:"send_port"`
	RecvPort int    `yaml:"recv_port"`
}

type CatalogConfig struct {
	// Dir holds the gzip snapshot. Empty disables persistence.
	Dir string `yaml:"dir"`
	// RefreshSchedule is an optional cron spec for background repopulation.
	RefreshSchedule string `yaml:"refresh_schedule"`
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// SingletonConfig names the sentinel port whose exclusive bind keeps a
// second daemon from racing this one for the DAW sockets.
type SingletonConfig struct {
	Port int `yaml:"port"`
}

type TemplatesConfig struct {
	// Path is the JSON file for effect chain templates. Empty keeps
	// templates in memory only.
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file. A missing file is not
// an error: the defaults stand in for it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				applyDefaults(cfg)
				applyEnv(cfg)
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "livebridge"
	}
	if cfg.Daw.Host == "" {
		cfg.Daw.Host = "127.0.0.1"
	}
	if cfg.Daw.TCPPort == 0 {
		cfg.Daw.TCPPort = 9877
	}
	if cfg.Daw.UDPPort == 0 {
		cfg.Daw.UDPPort = 9876
	}
	if cfg.Bridge.Host == "" {
		cfg.Bridge.Host = "127.0.0.1"
	}
	if cfg.Bridge.SendPort == 0 {
		cfg.Bridge.SendPort = 9878
	}
	if cfg.Bridge.RecvPort == 0 {
		cfg.Bridge.RecvPort = 9879
	}
	if cfg.Catalog.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Catalog.Dir = filepath.Join(home, ".livebridge")
		}
	}
	if cfg.Dashboard.Host == "" {
		cfg.Dashboard.Host = "127.0.0.1"
	}
	if cfg.Dashboard.Port == 0 {
		cfg.Dashboard.Port = 8090
	}
	if cfg.Singleton.Port == 0 {
		cfg.Singleton.Port = 9881
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnv layers LIVEBRIDGE_* overrides on top of the file. Env wins
// over the file so a deployed config can be nudged without editing it.
func applyEnv(cfg *Config) {
	if v, ok := envBool("LIVEBRIDGE_BRIDGE_ENABLED"); ok {
		cfg.Bridge.Enabled = v
	}
	if v, ok := envBool("LIVEBRIDGE_DASHBOARD_ENABLED"); ok {
		cfg.Dashboard.Enabled = v
	}
	if v, ok := envInt("LIVEBRIDGE_DASHBOARD_PORT"); ok {
		cfg.Dashboard.Port = v
	}
	if v, ok := envInt("LIVEBRIDGE_TCP_PORT"); ok {
		cfg.Daw.TCPPort = v
	}
	if v, ok := envInt("LIVEBRIDGE_UDP_RT_PORT"); ok {
		cfg.Daw.UDPPort = v
	}
	if v, ok := envInt("LIVEBRIDGE_OSC_SEND_PORT"); ok {
		cfg.Bridge.SendPort = v
	}
	if v, ok := envInt("LIVEBRIDGE_OSC_RECV_PORT"); ok {
		cfg.Bridge.RecvPort = v
	}
	if v, ok := envInt("LIVEBRIDGE_SENTINEL_PORT"); ok {
		cfg.Singleton.Port = v
	}
	if v := os.Getenv("LIVEBRIDGE_CATALOG_DIR"); v != "" {
		cfg.Catalog.Dir = v
	}
	if v := os.Getenv("LIVEBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func envInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return b, true
}

// TCPAddr is the remote script's command socket address.
func (c *Config) TCPAddr() string {
	return fmt.Sprintf("%s:%d", c.Daw.Host, c.Daw.TCPPort)
}

// UDPAddr is the remote script's realtime socket address.
func (c *Config) UDPAddr() string {
	return fmt.Sprintf("%s:%d", c.Daw.Host, c.Daw.UDPPort)
}

// BridgeSendAddr is where OSC requests go.
func (c *Config) BridgeSendAddr() string {
	return fmt.Sprintf("%s:%d", c.Bridge.Host, c.Bridge.SendPort)
}

// BridgeRecvAddr is where OSC responses arrive.
func (c *Config) BridgeRecvAddr() string {
	return fmt.Sprintf("%s:%d", c.Bridge.Host, c.Bridge.RecvPort)
}
