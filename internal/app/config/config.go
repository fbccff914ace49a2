package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/espenbo/sparkedge/internal/adapters/mqtt"
	"github.com/espenbo/sparkedge/internal/adapters/opcuaprov"
	"github.com/espenbo/sparkedge/internal/adapters/sysmetrics"
	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/sparkplug"
)

// ProviderSystem and ProviderOPCUA select the snapshot source.
const (
	ProviderSystem = "system"
	ProviderOPCUA  = "opcua"
)

type Config struct {
	MQTT     mqtt.Config    `yaml:"mqtt"`
	Identity IdentityConfig `yaml:"identity"`
	Session  SessionConfig  `yaml:"session"`
	Provider ProviderConfig `yaml:"provider"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	FlagFile string         `yaml:"flag_file"`

	// ExtraMetrics extends the built-in alias table for site-specific
	// tags (OPC UA nodes, custom sensors).
	ExtraMetrics []sparkplug.MetricDef `yaml:"extra_metrics"`
}

type IdentityConfig struct {
	GroupID  string `yaml:"group_id"`
	NodeID   string `yaml:"node_id"`
	DeviceID string `yaml:"device_id"`
}

type SessionConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

type ProviderConfig struct {
	Source     string            `yaml:"source"`
	Sysmetrics sysmetrics.Config `yaml:"sysmetrics"`
	OPCUA      opcuaprov.Config  `yaml:"opcua"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Identity.NodeID == "" {
		if host, err := os.Hostname(); err == nil {
			c.Identity.NodeID = host
		}
	}
	if c.Identity.DeviceID == "" {
		c.Identity.DeviceID = "system_monitor"
	}
	if c.Session.TickInterval <= 0 {
		c.Session.TickInterval = 60 * time.Second
	}
	if c.Session.SettleDelay <= 0 {
		c.Session.SettleDelay = 5 * time.Second
	}
	if c.Provider.Source == "" {
		c.Provider.Source = ProviderSystem
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.FlagFile == "" {
		c.FlagFile = "./data/command_flag.txt"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Identity.NodeID
	}

	c.MQTT.ApplyDefaults()
	c.Provider.Sysmetrics.ApplyDefaults()
	if c.Provider.Source == ProviderOPCUA {
		c.Provider.OPCUA.ApplyDefaults()
	}

	for i := range c.ExtraMetrics {
		if c.ExtraMetrics[i].Type == 0 {
			c.ExtraMetrics[i].Type = dataTypeFromName(c.ExtraMetrics[i].TypeName)
		}
	}
}

func (c *Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt config: %w", err)
	}
	if c.Identity.GroupID == "" {
		return fmt.Errorf("identity.group_id is required")
	}
	if c.Identity.NodeID == "" {
		return fmt.Errorf("identity.node_id is required and hostname lookup failed")
	}
	if c.Identity.DeviceID == "" {
		return fmt.Errorf("identity.device_id is required")
	}
	switch c.Provider.Source {
	case ProviderSystem:
	case ProviderOPCUA:
		if err := c.Provider.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	default:
		return fmt.Errorf("provider.source must be %q or %q", ProviderSystem, ProviderOPCUA)
	}
	for _, def := range c.ExtraMetrics {
		if !def.Type.Valid() {
			return fmt.Errorf("extra metric %q: unknown type %q", def.Name, def.TypeName)
		}
	}
	return nil
}

// RegistryDefs merges the built-in alias table with the configured extras.
func (c *Config) RegistryDefs() []sparkplug.MetricDef {
	return append(sparkplug.DefaultDefs(), c.ExtraMetrics...)
}

func dataTypeFromName(name string) domain.DataType {
	for dt := domain.Int8; dt <= domain.DateTime; dt++ {
		if dt.String() == name {
			return dt
		}
	}
	return 0
}
