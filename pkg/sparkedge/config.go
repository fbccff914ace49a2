package sparkedge

import (
	"github.com/espenbo/sparkedge/internal/adapters/mqtt"
	"github.com/espenbo/sparkedge/internal/adapters/opcuaprov"
	"github.com/espenbo/sparkedge/internal/adapters/sysmetrics"
	"github.com/espenbo/sparkedge/internal/app/config"
	"github.com/espenbo/sparkedge/internal/sparkplug"
)

// Config re-exports the root configuration struct so downstream projects
// can construct or modify it programmatically.
type Config = config.Config

type (
	// IdentityConfig holds the Sparkplug group/node/device identifiers.
	IdentityConfig = config.IdentityConfig
	// SessionConfig holds the tick interval and settling delay.
	SessionConfig = config.SessionConfig
	// ProviderConfig selects and configures the snapshot source.
	ProviderConfig = config.ProviderConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// MQTTConfig holds broker connection and TLS details.
	MQTTConfig = mqtt.Config
	// TLSConfig holds the broker TLS knobs.
	TLSConfig = mqtt.TLSConfig
	// OPCUAConfig configures the PLC-backed snapshot provider.
	OPCUAConfig = opcuaprov.Config
	// OPCUANodeConfig describes one monitored tag.
	OPCUANodeConfig = opcuaprov.NodeConfig
	// SysmetricsConfig configures the system snapshot provider.
	SysmetricsConfig = sysmetrics.Config
	// MetricDef declares one alias-table entry.
	MetricDef = sparkplug.MetricDef
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
