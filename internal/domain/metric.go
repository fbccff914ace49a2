package domain

// DataType identifies the Sparkplug B wire type of a metric value. The
// numeric values match the Sparkplug B specification and go on the wire
// as-is in the metric's datatype field.
type DataType uint8

const (
	Int8     DataType = 1
	Int16    DataType = 2
	Int32    DataType = 3
	Int64    DataType = 4
	UInt8    DataType = 5
	UInt16   DataType = 6
	UInt32   DataType = 7
	UInt64   DataType = 8
	Float    DataType = 9
	Double   DataType = 10
	Boolean  DataType = 11
	String   DataType = 12
	DateTime DataType = 13
)

func (d DataType) String() string {
	switch d {
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case UInt8:
		return "UInt8"
	case UInt16:
		return "UInt16"
	case UInt32:
		return "UInt32"
	case UInt64:
		return "UInt64"
	case Float:
		return "Float"
	case Double:
		return "Double"
	case Boolean:
		return "Boolean"
	case String:
		return "String"
	case DateTime:
		return "DateTime"
	}
	return "Unknown"
}

// Valid reports whether d is one of the defined Sparkplug B scalar types.
func (d DataType) Valid() bool {
	return d >= Int8 && d <= DateTime
}

// Value is a typed metric value. Exactly one representation field is
// meaningful, selected by Type; the constructors below are the only
// supported way to build one, which keeps the representation and the tag
// from drifting apart.
type Value struct {
	Type  DataType
	Int   int64
	Uint  uint64
	Float float64
	Bool  bool
	Str   string
}

// IntVal builds a signed integer value. t must be one of the signed
// integer types or DateTime (milliseconds since epoch).
func IntVal(t DataType, v int64) Value {
	return Value{Type: t, Int: v}
}

// UintVal builds an unsigned integer value.
func UintVal(t DataType, v uint64) Value {
	return Value{Type: t, Uint: v}
}

// FloatVal builds a single-precision float value.
func FloatVal(v float32) Value {
	return Value{Type: Float, Float: float64(v)}
}

// DoubleVal builds a double-precision float value.
func DoubleVal(v float64) Value {
	return Value{Type: Double, Float: v}
}

// BoolVal builds a boolean value.
func BoolVal(v bool) Value {
	return Value{Type: Boolean, Bool: v}
}

// StrVal builds a string value.
func StrVal(v string) Value {
	return Value{Type: String, Str: v}
}

// Equal compares two values under type-appropriate exact equality.
// Floats compare exactly; the protocol reports by exception on exact
// values, so there is no epsilon.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case Int8, Int16, Int32, Int64, DateTime:
		return v.Int == o.Int
	case UInt8, UInt16, UInt32, UInt64:
		return v.Uint == o.Uint
	case Float, Double:
		return v.Float == o.Float
	case Boolean:
		return v.Bool == o.Bool
	case String:
		return v.Str == o.Str
	}
	return false
}

// Metric is one named, aliased, typed sample inside a payload.
type Metric struct {
	Name        string
	Alias       uint8
	TimestampMs int64
	Value       Value
}
