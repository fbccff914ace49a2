package sysmetrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/ports"
)

// Config for the system snapshot provider.
type Config struct {
	DiskPath string `yaml:"disk_path"`
}

func (c *Config) ApplyDefaults() {
	if c.DiskPath == "" {
		c.DiskPath = "/"
	}
}

// Provider reads live machine telemetry: CPU, memory, disk, network
// counters, temperatures, fan, and battery. Any source that is absent or
// unreadable on this machine simply omits its keys; only an entirely empty
// reading is an error.
type Provider struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Provider {
	cfg.ApplyDefaults()
	return &Provider{cfg: cfg, now: time.Now}
}

var errNoMetrics = errors.New("sysmetrics: no metric source readable")

func (p *Provider) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap := domain.NewSnapshot()

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		snap.Set("cpu_percent", domain.DoubleVal(pct[0]))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.Set("mem_used_mb", domain.IntVal(domain.Int64, int64(vm.Used/(1024*1024))))
		snap.Set("mem_total_mb", domain.IntVal(domain.Int64, int64(vm.Total/(1024*1024))))
	}

	if du, err := disk.UsageWithContext(ctx, p.cfg.DiskPath); err == nil {
		snap.Set("disk_used_gb", domain.IntVal(domain.Int64, int64(du.Used/(1024*1024*1024))))
		snap.Set("disk_total_gb", domain.IntVal(domain.Int64, int64(du.Total/(1024*1024*1024))))
	}

	if counters, err := net.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		snap.Set("bytes_sent", domain.UintVal(domain.UInt64, counters[0].BytesSent))
		snap.Set("bytes_recv", domain.UintVal(domain.UInt64, counters[0].BytesRecv))
	}

	if temp, ok := cpuTemperature(ctx); ok {
		snap.Set("cpu_temp", domain.DoubleVal(temp))
	}

	if speed, ok := fanSpeed(); ok {
		snap.Set("fan_speed", domain.IntVal(domain.Int64, speed))
	}

	if pct, ok := batteryPercent(); ok {
		snap.Set("battery_percent", domain.DoubleVal(pct))
	}

	snap.Set("timestamp", domain.StrVal(p.now().UTC().Format(time.RFC3339)))

	// The timestamp alone means nothing was readable.
	if snap.Len() <= 1 {
		return nil, errNoMetrics
	}
	return snap, nil
}

// cpuTemperature prefers the package sensor, then falls back to the
// hottest reading.
func cpuTemperature(ctx context.Context) (float64, bool) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil || len(temps) == 0 {
		return 0, false
	}
	var max float64
	var found bool
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if strings.Contains(key, "package") {
			return t.Temperature, true
		}
		if t.Temperature > max {
			max = t.Temperature
			found = true
		}
	}
	return max, found
}

// fanSpeed reads the first hwmon fan tach input. Not every chassis exposes
// one.
func fanSpeed() (int64, bool) {
	matches, err := filepath.Glob("/sys/class/hwmon/hwmon*/fan*_input")
	if err != nil {
		return 0, false
	}
	for _, path := range matches {
		if v, ok := readSysInt(path); ok {
			return v, true
		}
	}
	return 0, false
}

// batteryPercent reads the first power-supply capacity file; desktops and
// servers have none and omit the metric.
func batteryPercent() (float64, bool) {
	matches, err := filepath.Glob("/sys/class/power_supply/BAT*/capacity")
	if err != nil {
		return 0, false
	}
	for _, path := range matches {
		if v, ok := readSysInt(path); ok {
			return float64(v), true
		}
	}
	return 0, false
}

func readSysInt(path string) (int64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var _ ports.SnapshotProvider = (*Provider)(nil)
