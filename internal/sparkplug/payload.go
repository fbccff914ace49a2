package sparkplug

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/espenbo/sparkedge/internal/domain"
)

// ErrMalformed reports an inbound payload that cannot be decoded: broken
// protobuf framing or a datatype tag outside the Sparkplug B scalar set.
var ErrMalformed = errors.New("sparkplug: malformed payload")

// ErrBadValue reports an outbound metric whose datatype tag is not
// encodable. With a validated registry this is a programming error, not a
// runtime condition.
var ErrBadValue = errors.New("sparkplug: value does not fit its datatype")

// Field numbers from sparkplug_b.proto. Only the scalar subset of the
// metric message is implemented; datasets, templates, and properties are
// skipped on decode like any other unknown field.
const (
	fieldPayloadTimestamp = 1
	fieldPayloadMetrics   = 2
	fieldPayloadSeq       = 3
	fieldPayloadUUID      = 4

	fieldMetricName      = 1
	fieldMetricAlias     = 2
	fieldMetricTimestamp = 3
	fieldMetricDatatype  = 4
	fieldMetricIsNull    = 7
	fieldMetricInt       = 10
	fieldMetricLong      = 11
	fieldMetricFloat     = 12
	fieldMetricDouble    = 13
	fieldMetricBoolean   = 14
	fieldMetricString    = 15
)

// Payload is one decoded Sparkplug B message.
type Payload struct {
	TimestampMs int64
	Seq         uint8
	UUID        string
	Metrics     []domain.Metric
}

// Encode serializes metrics into a Sparkplug B payload. Output is
// byte-for-byte deterministic for the same inputs and preserves metric
// order. The sequence value is stamped as given; the session owns the
// counter. withSession attaches a freshly generated identifier and is set
// only for birth messages.
func Encode(metrics []domain.Metric, seq uint8, timestampMs int64, withSession bool) ([]byte, error) {
	buf := protowire.AppendTag(nil, fieldPayloadTimestamp, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(timestampMs))

	for i := range metrics {
		enc, err := encodeMetric(&metrics[i])
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, fieldPayloadMetrics, protowire.BytesType)
		buf = protowire.AppendBytes(buf, enc)
	}

	buf = protowire.AppendTag(buf, fieldPayloadSeq, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(seq))

	if withSession {
		buf = protowire.AppendTag(buf, fieldPayloadUUID, protowire.BytesType)
		buf = protowire.AppendString(buf, uuid.NewString())
	}
	return buf, nil
}

func encodeMetric(m *domain.Metric) ([]byte, error) {
	buf := protowire.AppendTag(nil, fieldMetricName, protowire.BytesType)
	buf = protowire.AppendString(buf, m.Name)
	buf = protowire.AppendTag(buf, fieldMetricAlias, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.Alias))
	buf = protowire.AppendTag(buf, fieldMetricTimestamp, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.TimestampMs))
	buf = protowire.AppendTag(buf, fieldMetricDatatype, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(m.Value.Type))

	// Exactly one value field, selected by the datatype tag.
	switch m.Value.Type {
	case domain.Int8, domain.Int16, domain.Int32:
		buf = protowire.AppendTag(buf, fieldMetricInt, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(uint32(int32(m.Value.Int))))
	case domain.UInt8, domain.UInt16, domain.UInt32:
		buf = protowire.AppendTag(buf, fieldMetricInt, protowire.VarintType)
		buf = protowire.AppendVarint(buf, m.Value.Uint&0xffffffff)
	case domain.Int64, domain.DateTime:
		buf = protowire.AppendTag(buf, fieldMetricLong, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(m.Value.Int))
	case domain.UInt64:
		buf = protowire.AppendTag(buf, fieldMetricLong, protowire.VarintType)
		buf = protowire.AppendVarint(buf, m.Value.Uint)
	case domain.Float:
		buf = protowire.AppendTag(buf, fieldMetricFloat, protowire.Fixed32Type)
		buf = protowire.AppendFixed32(buf, math.Float32bits(float32(m.Value.Float)))
	case domain.Double:
		buf = protowire.AppendTag(buf, fieldMetricDouble, protowire.Fixed64Type)
		buf = protowire.AppendFixed64(buf, math.Float64bits(m.Value.Float))
	case domain.Boolean:
		buf = protowire.AppendTag(buf, fieldMetricBoolean, protowire.VarintType)
		v := uint64(0)
		if m.Value.Bool {
			v = 1
		}
		buf = protowire.AppendVarint(buf, v)
	case domain.String:
		buf = protowire.AppendTag(buf, fieldMetricString, protowire.BytesType)
		buf = protowire.AppendString(buf, m.Value.Str)
	default:
		return nil, ErrBadValue
	}
	return buf, nil
}

// Decode parses a Sparkplug B payload. Unknown proto fields and unknown
// metric names are skipped so an appended-to registry on the far side never
// breaks an older node; an unrecognized datatype tag is a hard error.
func Decode(raw []byte) (*Payload, error) {
	p := &Payload{}
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, ErrMalformed
		}
		raw = raw[n:]

		switch {
		case num == fieldPayloadTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return nil, ErrMalformed
			}
			p.TimestampMs = int64(v)
			raw = raw[n:]
		case num == fieldPayloadSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return nil, ErrMalformed
			}
			p.Seq = uint8(v)
			raw = raw[n:]
		case num == fieldPayloadUUID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return nil, ErrMalformed
			}
			p.UUID = v
			raw = raw[n:]
		case num == fieldPayloadMetrics && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return nil, ErrMalformed
			}
			m, err := decodeMetric(v)
			if err != nil {
				return nil, err
			}
			p.Metrics = append(p.Metrics, m)
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return nil, ErrMalformed
			}
			raw = raw[n:]
		}
	}
	return p, nil
}

func decodeMetric(raw []byte) (domain.Metric, error) {
	var (
		m        domain.Metric
		datatype uint64
		intRaw   uint64
		longRaw  uint64
		f32      uint32
		f64      uint64
		boolRaw  uint64
		strRaw   string
	)

	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return m, ErrMalformed
		}
		raw = raw[n:]

		switch {
		case num == fieldMetricName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			m.Name = v
			raw = raw[n:]
		case num == fieldMetricAlias && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			m.Alias = uint8(v)
			raw = raw[n:]
		case num == fieldMetricTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			m.TimestampMs = int64(v)
			raw = raw[n:]
		case num == fieldMetricDatatype && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			datatype = v
			raw = raw[n:]
		case num == fieldMetricInt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			intRaw = v
			raw = raw[n:]
		case num == fieldMetricLong && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			longRaw = v
			raw = raw[n:]
		case num == fieldMetricFloat && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			f32 = v
			raw = raw[n:]
		case num == fieldMetricDouble && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			f64 = v
			raw = raw[n:]
		case num == fieldMetricBoolean && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			boolRaw = v
			raw = raw[n:]
		case num == fieldMetricString && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return m, ErrMalformed
			}
			strRaw = v
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return m, ErrMalformed
			}
			raw = raw[n:]
		}
	}

	dt := domain.DataType(datatype)
	if !dt.Valid() {
		return m, ErrMalformed
	}
	switch dt {
	case domain.Int8, domain.Int16, domain.Int32:
		m.Value = domain.IntVal(dt, int64(int32(uint32(intRaw))))
	case domain.UInt8, domain.UInt16, domain.UInt32:
		m.Value = domain.UintVal(dt, intRaw)
	case domain.Int64, domain.DateTime:
		m.Value = domain.IntVal(dt, int64(longRaw))
	case domain.UInt64:
		m.Value = domain.UintVal(dt, longRaw)
	case domain.Float:
		m.Value = domain.FloatVal(math.Float32frombits(f32))
	case domain.Double:
		m.Value = domain.DoubleVal(math.Float64frombits(f64))
	case domain.Boolean:
		m.Value = domain.BoolVal(boolRaw != 0)
	case domain.String:
		m.Value = domain.StrVal(strRaw)
	}
	return m, nil
}
