package corepipe

import "fmt"

// ValueType identifies the wire type carried by a tagged Value.
type ValueType int

const (
	ValueString ValueType = iota
	ValueBytes
	ValueInteger
	ValueDouble
	ValueBoolean
	ValueNull
	ValueList
	ValueProtobuf
)

func (t ValueType) String() string {
	switch t {
	case ValueString:
		return "string"
	case ValueBytes:
		return "bytes"
	case ValueInteger:
		return "integer"
	case ValueDouble:
		return "double"
	case ValueBoolean:
		return "boolean"
	case ValueNull:
		return "null"
	case ValueList:
		return "list"
	case ValueProtobuf:
		return "protobuf"
	default:
		return fmt.Sprintf("valuetype(%d)", int(t))
	}
}

// Value is a single named typed value carried by a Message. Bytes is the
// canonical byte encoding for String/Bytes/Protobuf; List nests further
// Values. A zero Value has type ValueNull.
type Value struct {
	Type    ValueType
	Bytes   []byte
	Integer int64
	Double  float64
	Boolean bool
	List    []Value
}

// StringValue builds a Value of type ValueString, preserving embedded nulls.
func StringValue(s string) Value { return Value{Type: ValueString, Bytes: []byte(s)} }

// BytesValue builds a Value of type ValueBytes.
func BytesValue(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{Type: ValueBytes, Bytes: cp}
}

// IntegerValue builds a Value of type ValueInteger.
func IntegerValue(i int64) Value { return Value{Type: ValueInteger, Integer: i} }

// DoubleValue builds a Value of type ValueDouble.
func DoubleValue(d float64) Value { return Value{Type: ValueDouble, Double: d} }

// BooleanValue builds a Value of type ValueBoolean.
func BooleanValue(b bool) Value { return Value{Type: ValueBoolean, Boolean: b} }

// ProtobufValue builds a Value of type ValueProtobuf from an already
// serialized message; corepipe does not interpret the bytes.
func ProtobufValue(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{Type: ValueProtobuf, Bytes: cp}
}

// ListValue builds a Value of type ValueList.
func ListValue(items ...Value) Value { return Value{Type: ValueList, List: items} }

// AsString returns the string form of a String or Bytes value.
func (v Value) AsString() string { return string(v.Bytes) }

// clone returns a deep, independent copy of v.
func (v Value) clone() Value {
	out := v
	if v.Bytes != nil {
		out.Bytes = append([]byte(nil), v.Bytes...)
	}
	if v.List != nil {
		out.List = make([]Value, len(v.List))
		for i, item := range v.List {
			out.List[i] = item.clone()
		}
	}
	return out
}
