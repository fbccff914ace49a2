package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/sparkplug"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker_url: tcp://localhost:1883
identity:
  group_id: plant1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	host, _ := os.Hostname()
	if cfg.Identity.NodeID != host {
		t.Fatalf("expected node_id default to hostname %q, got %q", host, cfg.Identity.NodeID)
	}
	if cfg.Identity.DeviceID != "system_monitor" {
		t.Fatalf("expected default device_id system_monitor, got %s", cfg.Identity.DeviceID)
	}
	if cfg.Session.TickInterval != 60*time.Second {
		t.Fatalf("expected default tick interval 60s, got %s", cfg.Session.TickInterval)
	}
	if cfg.Session.SettleDelay != 5*time.Second {
		t.Fatalf("expected default settle delay 5s, got %s", cfg.Session.SettleDelay)
	}
	if cfg.Provider.Source != ProviderSystem {
		t.Fatalf("expected default provider source system, got %s", cfg.Provider.Source)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.FlagFile != "./data/command_flag.txt" {
		t.Fatalf("expected default flag file, got %s", cfg.FlagFile)
	}
	if cfg.MQTT.ClientID != cfg.Identity.NodeID {
		t.Fatalf("expected client_id fallback to node_id, got %s", cfg.MQTT.ClientID)
	}
}

func TestLoadRequiresGroupID(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker_url: tcp://localhost:1883
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "group_id") {
		t.Fatalf("expected group_id error, got %v", err)
	}
}

func TestLoadRejectsUnknownProviderSource(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker_url: tcp://localhost:1883
identity:
  group_id: plant1
provider:
  source: modbus
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "provider.source") {
		t.Fatalf("expected provider source error, got %v", err)
	}
}

func TestLoadParsesExtraMetricTypes(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker_url: tcp://localhost:1883
identity:
  group_id: plant1
extra_metrics:
  - name: line_speed
    alias: 20
    type: Double
  - name: batch_id
    alias: 21
    type: String
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ExtraMetrics[0].Type != domain.Double {
		t.Fatalf("expected Double, got %s", cfg.ExtraMetrics[0].Type)
	}
	if cfg.ExtraMetrics[1].Type != domain.String {
		t.Fatalf("expected String, got %s", cfg.ExtraMetrics[1].Type)
	}

	// The merged alias table still has to be constructible.
	if _, err := sparkplug.NewRegistry(cfg.RegistryDefs()); err != nil {
		t.Fatalf("registry from merged defs: %v", err)
	}
}

func TestLoadRejectsUnknownExtraMetricType(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker_url: tcp://localhost:1883
identity:
  group_id: plant1
extra_metrics:
  - name: line_speed
    alias: 20
    type: Decimal
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "line_speed") {
		t.Fatalf("expected extra metric type error, got %v", err)
	}
}

func TestLoadOPCUAProviderRequiresEndpoint(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker_url: tcp://localhost:1883
identity:
  group_id: plant1
provider:
  source: opcua
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "opcua") {
		t.Fatalf("expected opcua validation error, got %v", err)
	}
}
