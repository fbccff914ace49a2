package sparkplug

import (
	"fmt"

	"github.com/espenbo/sparkedge/internal/domain"
)

// AliasUnmapped is the reserved alias for metric names the registry does
// not know. Such metrics stay encodable; the receiving system falls back to
// name-based resolution.
const AliasUnmapped = 255

// MetricDef declares one registry entry: a stable alias and the declared
// wire type for a metric name.
type MetricDef struct {
	Name  string          `yaml:"name"`
	Alias uint8           `yaml:"alias"`
	Type  domain.DataType `yaml:"-"`

	// TypeName is the YAML-facing spelling of Type ("Double", "Int64", ...).
	TypeName string `yaml:"type"`
}

// Registry is the static name → (alias, type) table shared by the encoder
// and the inbound decoder. It is immutable after construction.
type Registry struct {
	entries map[string]regEntry
}

type regEntry struct {
	alias uint8
	typ   domain.DataType
}

// NewRegistry validates and indexes the given definitions. Aliases must be
// unique and below AliasUnmapped; names must be unique and non-empty.
func NewRegistry(defs []MetricDef) (*Registry, error) {
	entries := make(map[string]regEntry, len(defs))
	byAlias := make(map[uint8]string, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("registry: metric with empty name")
		}
		if d.Alias >= AliasUnmapped {
			return nil, fmt.Errorf("registry: metric %q uses reserved alias %d", d.Name, d.Alias)
		}
		if !d.Type.Valid() {
			return nil, fmt.Errorf("registry: metric %q has invalid type", d.Name)
		}
		if _, dup := entries[d.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate metric name %q", d.Name)
		}
		if prev, dup := byAlias[d.Alias]; dup {
			return nil, fmt.Errorf("registry: alias %d shared by %q and %q", d.Alias, prev, d.Name)
		}
		entries[d.Name] = regEntry{alias: d.Alias, typ: d.Type}
		byAlias[d.Alias] = d.Name
	}
	return &Registry{entries: entries}, nil
}

// Resolve maps a metric name to its alias and declared type. Unknown names
// resolve to AliasUnmapped with the type inferred from the supplied value,
// so an unexpected metric never aborts encoding.
func (r *Registry) Resolve(name string, v domain.Value) (uint8, domain.DataType) {
	if e, ok := r.entries[name]; ok {
		return e.alias, e.typ
	}
	return AliasUnmapped, v.Type
}

// Known reports whether the registry has an entry for name.
func (r *Registry) Known(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// DefaultDefs is the built-in alias table for the system metric set.
func DefaultDefs() []MetricDef {
	return []MetricDef{
		{Name: "cpu_percent", Alias: 0, Type: domain.Double},
		{Name: "mem_used_mb", Alias: 1, Type: domain.Int64},
		{Name: "mem_total_mb", Alias: 2, Type: domain.Int64},
		{Name: "disk_used_gb", Alias: 3, Type: domain.Int64},
		{Name: "disk_total_gb", Alias: 4, Type: domain.Int64},
		{Name: "battery_percent", Alias: 5, Type: domain.Double},
		{Name: "fan_speed", Alias: 6, Type: domain.Int64},
		{Name: "cpu_temp", Alias: 7, Type: domain.Double},
		{Name: "timestamp", Alias: 8, Type: domain.String},
		{Name: "online", Alias: 9, Type: domain.Boolean},
		{Name: "node", Alias: 10, Type: domain.String},
		{Name: "device", Alias: 11, Type: domain.String},
		{Name: "bytes_sent", Alias: 12, Type: domain.UInt64},
		{Name: "bytes_recv", Alias: 13, Type: domain.UInt64},
	}
}
