package sparkplug

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/espenbo/sparkedge/internal/domain"
)

func sampleMetrics() []domain.Metric {
	return []domain.Metric{
		{Name: "cpu_percent", Alias: 0, TimestampMs: 1700000000000, Value: domain.DoubleVal(42.5)},
		{Name: "mem_used_mb", Alias: 1, TimestampMs: 1700000000000, Value: domain.IntVal(domain.Int64, 2048)},
		{Name: "bytes_sent", Alias: 12, TimestampMs: 1700000000000, Value: domain.UintVal(domain.UInt64, 9_999_999_999)},
		{Name: "fan_rpm_pct", Alias: 255, TimestampMs: 1700000000000, Value: domain.FloatVal(12.25)},
		{Name: "online", Alias: 9, TimestampMs: 1700000000000, Value: domain.BoolVal(true)},
		{Name: "node", Alias: 10, TimestampMs: 1700000000000, Value: domain.StrVal("edge-01")},
		{Name: "small", Alias: 20, TimestampMs: 1700000000000, Value: domain.IntVal(domain.Int16, -17)},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	metrics := sampleMetrics()

	raw, err := Encode(metrics, 7, 1700000000000, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if p.Seq != 7 {
		t.Fatalf("expected seq 7, got %d", p.Seq)
	}
	if p.TimestampMs != 1700000000000 {
		t.Fatalf("expected timestamp 1700000000000, got %d", p.TimestampMs)
	}
	if p.UUID != "" {
		t.Fatalf("expected no session id on data payload, got %q", p.UUID)
	}
	if len(p.Metrics) != len(metrics) {
		t.Fatalf("expected %d metrics, got %d", len(metrics), len(p.Metrics))
	}

	// Order must be preserved, not just membership.
	for i, want := range metrics {
		got := p.Metrics[i]
		if got.Name != want.Name {
			t.Fatalf("metric %d: expected name %q, got %q", i, want.Name, got.Name)
		}
		if got.Alias != want.Alias {
			t.Fatalf("metric %d: expected alias %d, got %d", i, want.Alias, got.Alias)
		}
		if !got.Value.Equal(want.Value) {
			t.Fatalf("metric %d (%s): value mismatch: %+v vs %+v", i, want.Name, got.Value, want.Value)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	metrics := sampleMetrics()

	a, err := Encode(metrics, 3, 1700000000000, false)
	if err != nil {
		t.Fatalf("encode a: %v", err)
	}
	b, err := Encode(metrics, 3, 1700000000000, false)
	if err != nil {
		t.Fatalf("encode b: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical bytes for identical inputs")
	}
}

func TestEncodeBirthCarriesSessionID(t *testing.T) {
	raw, err := Encode(sampleMetrics(), 0, 1700000000000, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.UUID == "" {
		t.Fatalf("expected a session id on a birth payload")
	}

	raw2, err := Encode(sampleMetrics(), 0, 1700000000000, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p2, err := Decode(raw2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p2.UUID == p.UUID {
		t.Fatalf("expected a fresh identifier per birth, got %q twice", p.UUID)
	}
}

func TestEncodeRejectsInvalidDatatype(t *testing.T) {
	bad := []domain.Metric{{Name: "x", Value: domain.Value{Type: 99}}}
	if _, err := Encode(bad, 0, 0, false); err != ErrBadValue {
		t.Fatalf("expected ErrBadValue, got %v", err)
	}
}

func TestDecodeMalformedFraming(t *testing.T) {
	if _, err := Decode([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed on garbage, got %v", err)
	}

	// Truncate a valid payload mid-metric.
	raw, err := Encode(sampleMetrics(), 1, 1700000000000, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(raw[:len(raw)/2]); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed on truncated payload, got %v", err)
	}
}

func TestDecodeRejectsUnknownDatatypeTag(t *testing.T) {
	// A metric whose datatype field is outside the scalar set.
	metric := protowire.AppendTag(nil, fieldMetricName, protowire.BytesType)
	metric = protowire.AppendString(metric, "mystery")
	metric = protowire.AppendTag(metric, fieldMetricDatatype, protowire.VarintType)
	metric = protowire.AppendVarint(metric, 77)

	raw := protowire.AppendTag(nil, fieldPayloadMetrics, protowire.BytesType)
	raw = protowire.AppendBytes(raw, metric)

	if _, err := Decode(raw); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for datatype 77, got %v", err)
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	raw, err := Encode(sampleMetrics()[:2], 4, 1700000000000, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Append a field this decoder has never heard of (payload body, field 5).
	raw = protowire.AppendTag(raw, 5, protowire.BytesType)
	raw = protowire.AppendBytes(raw, []byte("future extension"))

	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode with unknown field: %v", err)
	}
	if len(p.Metrics) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(p.Metrics))
	}
	if p.Seq != 4 {
		t.Fatalf("expected seq 4, got %d", p.Seq)
	}
}

func TestNegativeInt32SurvivesRoundTrip(t *testing.T) {
	metrics := []domain.Metric{{Name: "delta_t", Value: domain.IntVal(domain.Int32, -40)}}
	raw, err := Encode(metrics, 0, 0, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Metrics[0].Value.Int != -40 {
		t.Fatalf("expected -40, got %d", p.Metrics[0].Value.Int)
	}
}

func TestSequenceWrapBoundary(t *testing.T) {
	metrics := []domain.Metric{{Name: "cpu_percent", Value: domain.DoubleVal(1)}}

	raw, err := Encode(metrics, 255, 0, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Seq != 255 {
		t.Fatalf("expected seq 255, got %d", p.Seq)
	}

	// The counter is a uint8 owned by the session; 255 wraps to 0.
	next := p.Seq + 1
	if next != 0 {
		t.Fatalf("expected wrap to 0, got %d", next)
	}
}
