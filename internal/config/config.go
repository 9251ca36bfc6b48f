// Package config provides configuration parsing and validation for a
// hopcore node.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hopcore/hopcore/internal/identity"
)

// Config is the complete node configuration.
type Config struct {
	Node          NodeConfig          `yaml:"node"`
	Listen        ListenConfig        `yaml:"listen"`
	Peers         []PeerConfig        `yaml:"peers"`
	Discriminator DiscriminatorConfig `yaml:"discriminator"`
}

// NodeConfig carries this node's identity and admission policy.
type NodeConfig struct {
	// PrivateKey is the node's X25519/Ed25519 seed material, hex-encoded.
	// "auto" generates a fresh key at startup and is only suitable for
	// ephemeral/test nodes, since peers can't address a key that
	// changes on every restart.
	PrivateKey string `yaml:"private_key"`

	// IsBootstrapNode enables the admission policy restricting this
	// node to routing only Neighborhood-terminal traffic.
	IsBootstrapNode bool `yaml:"is_bootstrap_node"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ListenConfig defines the inbound TCP listener.
type ListenConfig struct {
	Address string `yaml:"address"`
}

// PeerConfig defines a known peer's long-term key and dial address.
type PeerConfig struct {
	Key     string `yaml:"key"`     // hex-encoded identity.Key
	Address string `yaml:"address"` // host:port
}

// DiscriminatorConfig orders the masqueraders a connection tries, in
// preference order. Recognized names: "native", "http-chunk".
type DiscriminatorConfig struct {
	Masqueraders []string `yaml:"masqueraders"`
}

// DefaultConfig returns a minimal, single-node-friendly configuration.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			PrivateKey: "auto",
			LogLevel:   "info",
			LogFormat:  "text",
		},
		Listen: ListenConfig{
			Address: "127.0.0.1:7750",
		},
		Discriminator: DiscriminatorConfig{
			Masqueraders: []string{"native"},
		},
	}
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML config data, filling unset fields from
// DefaultConfig.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for internal consistency,
// accumulating every problem found rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Node.PrivateKey == "" {
		errs = append(errs, "node.private_key is required (or \"auto\")")
	}
	if !isValidLogLevel(c.Node.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.Node.LogLevel))
	}
	if !isValidLogFormat(c.Node.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s (must be text or json)", c.Node.LogFormat))
	}
	if c.Listen.Address == "" {
		errs = append(errs, "listen.address is required")
	}

	for i, p := range c.Peers {
		if err := p.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("peers[%d]: %v", i, err))
		}
	}

	if len(c.Discriminator.Masqueraders) == 0 {
		errs = append(errs, "discriminator.masqueraders must name at least one masquerader")
	}
	for i, name := range c.Discriminator.Masqueraders {
		if !isKnownMasquerader(name) {
			errs = append(errs, fmt.Sprintf("discriminator.masqueraders[%d]: unknown masquerader %q", i, name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (p PeerConfig) validate() error {
	if p.Key == "" {
		return fmt.Errorf("key is required")
	}
	if _, err := identity.ParseKey(p.Key); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	if p.Address == "" {
		return fmt.Errorf("address is required")
	}
	if _, _, err := net.SplitHostPort(p.Address); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

func isKnownMasquerader(name string) bool {
	switch name {
	case "native", "http-chunk":
		return true
	default:
		return false
	}
}

// DialTimeout is fixed rather than configurable, matching the
// "no reconnection policy, no backoff" scope boundary this node keeps
// for its transport layer.
const DialTimeout = 10 * time.Second
