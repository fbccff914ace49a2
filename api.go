package sparkedge

import (
	base "github.com/espenbo/sparkedge/pkg/sparkedge"

	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/ports"
	"github.com/espenbo/sparkedge/internal/sparkplug"
)

// Re-exported errors for convenience.
var (
	ErrMalformed = sparkplug.ErrMalformed
	ErrBadValue  = sparkplug.ErrBadValue
)

// Type aliases so consumers can import github.com/espenbo/sparkedge directly.
type (
	Config           = base.Config
	IdentityConfig   = base.IdentityConfig
	SessionConfig    = base.SessionConfig
	ProviderConfig   = base.ProviderConfig
	MetricsConfig    = base.MetricsConfig
	MQTTConfig       = base.MQTTConfig
	TLSConfig        = base.TLSConfig
	OPCUAConfig      = base.OPCUAConfig
	OPCUANodeConfig  = base.OPCUANodeConfig
	SysmetricsConfig = base.SysmetricsConfig
	MetricDef        = base.MetricDef
	Agent            = base.Agent
	AgentOption      = base.AgentOption

	DataType         = domain.DataType
	Value            = domain.Value
	Metric           = domain.Metric
	Snapshot         = domain.Snapshot
	SnapshotProvider = ports.SnapshotProvider
	Transport        = ports.Transport
	FlagStore        = ports.FlagStore
	Observability    = ports.Observability
	Field            = ports.Field
)

// Data type identifiers for metric values.
const (
	Int8     = domain.Int8
	Int16    = domain.Int16
	Int32    = domain.Int32
	Int64    = domain.Int64
	UInt8    = domain.UInt8
	UInt16   = domain.UInt16
	UInt32   = domain.UInt32
	UInt64   = domain.UInt64
	Float    = domain.Float
	Double   = domain.Double
	Boolean  = domain.Boolean
	String   = domain.String
	DateTime = domain.DateTime
)

// Value constructors and snapshot builder.
func NewSnapshot() *Snapshot { return domain.NewSnapshot() }

func IntVal(t DataType, v int64) Value   { return domain.IntVal(t, v) }
func UintVal(t DataType, v uint64) Value { return domain.UintVal(t, v) }
func FloatVal(v float32) Value           { return domain.FloatVal(v) }
func DoubleVal(v float64) Value          { return domain.DoubleVal(v) }
func BoolVal(v bool) Value               { return domain.BoolVal(v) }
func StrVal(v string) Value              { return domain.StrVal(v) }

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Agent construction and options.
func New(cfg *Config, opts ...AgentOption) (*Agent, error) {
	return base.New(cfg, opts...)
}

func WithProvider(p SnapshotProvider) AgentOption {
	return base.WithProvider(p)
}

func WithTransport(t Transport) AgentOption {
	return base.WithTransport(t)
}

func WithFlagStore(s FlagStore) AgentOption {
	return base.WithFlagStore(s)
}

func WithObservability(obs Observability) AgentOption {
	return base.WithObservability(obs)
}
