// Package config loads the YAML configuration file shared by the
// router daemon and cTCP endpoints: interfaces, routes, the protocol
// tunables in ctcp.Config, and ARP retry/TTL values. The ARP values are
// only parsed into Config; the arp package uses its own fixed constants.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig is a process-wide configuration slot. ReadConfig does not
// set it; the commands use the *Config that ReadConfig returns.
var AppConfig *Config

// InterfaceConfig describes one router-facing network interface.
type InterfaceConfig struct {
	Name string `yaml:"name"`
	IPv4 string `yaml:"ipv4"`
	MAC  string `yaml:"mac"`
}

// RouteConfig is one static routing table entry.
type RouteConfig struct {
	Dest      string `yaml:"dest"`
	Mask      string `yaml:"mask"`
	Gateway   string `yaml:"gateway,omitempty"`
	Interface string `yaml:"interface"`
}

// Config is the top-level shape of config.yaml.
type Config struct {
	Interfaces []InterfaceConfig `yaml:"interfaces"`
	Routes     []RouteConfig     `yaml:"routes"`

	ProtocolID uint8 `yaml:"protocolId"`

	// cTCP tunables, defaulted by DefaultConfig and overridable per
	// deployment.
	RecvWindow      uint32 `yaml:"recvWindow"`
	SendWindow      uint32 `yaml:"sendWindow"`
	RtTimeoutMs     int    `yaml:"rtTimeoutMs"`
	TimerTickMs     int    `yaml:"timerTickMs"`
	RetransmitLimit int    `yaml:"retransmitLimit"`

	// ARP tuning, seconds.
	ArpEntryTTLSeconds   int `yaml:"arpEntryTtlSeconds"`
	ArpSweepIntervalSecs int `yaml:"arpSweepIntervalSeconds"`
	ArpRetryIntervalSecs int `yaml:"arpRetryIntervalSeconds"`
	ArpMaxRetries        int `yaml:"arpMaxRetries"`

	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the documented defaults, used to pre-fill a
// Config before the YAML file overrides whatever it specifies.
func DefaultConfig() *Config {
	return &Config{
		ProtocolID:           6,
		RecvWindow:           1440,
		SendWindow:           1440,
		RtTimeoutMs:          200,
		TimerTickMs:          40,
		RetransmitLimit:      5,
		ArpEntryTTLSeconds:   15,
		ArpSweepIntervalSecs: 1,
		ArpRetryIntervalSecs: 1,
		ArpMaxRetries:        5,
	}
}

// ReadConfig loads and parses a YAML configuration file, filling any
// field the file leaves unset from DefaultConfig.
func ReadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
