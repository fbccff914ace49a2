package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/espenbo/sparkedge/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the agent's metric set on reg. Passing nil uses the
// default registerer.
func NewPromObs(reg prometheus.Registerer) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spark_messages_published_total",
		Help: "Birth and data messages successfully published to the broker.",
	})
	births := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spark_births_total",
		Help: "Completed NBIRTH+DBIRTH sequences.",
	})
	commands := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spark_commands_handled_total",
		Help: "Inbound DCMD payloads decoded and applied.",
	})
	decodeErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spark_decode_errors_total",
		Help: "Inbound payloads dropped as malformed.",
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spark_ticks_skipped_total",
		Help: "Steady ticks whose transmission was skipped due to a failure.",
	})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spark_connected",
		Help: "1 while a session is established, 0 otherwise.",
	})
	lastPayload := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spark_last_payload_metrics",
		Help: "Metric count of the most recent data message.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spark_publish_latency_seconds",
		Help:    "Broker publish latency for data messages.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(published, births, commands, decodeErrs, skipped, connected, lastPayload, latency)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"spark_messages_published_total": published,
			"spark_births_total":             births,
			"spark_commands_handled_total":   commands,
			"spark_decode_errors_total":      decodeErrs,
			"spark_ticks_skipped_total":      skipped,
		},
		gauges: map[string]prometheus.Gauge{
			"spark_connected":            connected,
			"spark_last_payload_metrics": lastPayload,
		},
		histos: map[string]prometheus.Observer{
			"spark_publish_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func formatFields(fields []ports.Field) string {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

var _ ports.Observability = (*PromObs)(nil)
