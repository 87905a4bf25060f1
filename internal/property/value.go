package property

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which variant a Value carries.
type Kind uint8

// Value variants. KindNull is an explicit NULL: present on the wire but empty.
const (
	KindNull Kind = iota
	KindBool
	KindUint64
	KindInt64
	KindDouble
	KindString
	KindBytes
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUint64:
		return "uint64"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return "null"
	}
}

// Value is a tagged property value. Exactly one variant is populated.
//
// A Value may also be a typed NULL (see Null): it remembers the kind the
// leaf normally holds, so a later write can still be type-checked.
type Value struct {
	kind Kind
	null bool
	b    bool
	u    uint64
	i    int64
	d    float64
	s    string
	raw  []byte
}

// BoolValue returns a boolean value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// Uint64Value returns an unsigned integer value.
func Uint64Value(v uint64) Value { return Value{kind: KindUint64, u: v} }

// Int64Value returns a signed integer value.
func Int64Value(v int64) Value { return Value{kind: KindInt64, i: v} }

// DoubleValue returns a double value.
func DoubleValue(v float64) Value { return Value{kind: KindDouble, d: v} }

// StringValue returns a string value.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// BytesValue returns a byte sequence value. The slice is copied.
func BytesValue(v []byte) Value {
	return Value{kind: KindBytes, raw: bytes.Clone(v)}
}

// Null returns a NULL that stands in for a value of kind k.
// Null(KindNull) is the untyped NULL decoded from the wire.
func Null(k Kind) Value { return Value{kind: k, null: true} }

// Kind returns the variant (or the expected variant of a typed NULL).
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is an explicit NULL.
func (v Value) IsNull() bool { return v.null || v.kind == KindNull }

// AsBool returns the boolean variant.
func (v Value) AsBool() bool { return v.b }

// AsUint64 returns the unsigned variant.
func (v Value) AsUint64() uint64 { return v.u }

// AsInt64 returns the signed variant.
func (v Value) AsInt64() int64 { return v.i }

// AsDouble returns the double variant.
func (v Value) AsDouble() float64 { return v.d }

// AsString returns the string variant.
func (v Value) AsString() string { return v.s }

// AsBytes returns the byte variant. The caller must not modify it.
func (v Value) AsBytes() []byte { return v.raw }

// Number returns numeric variants as float64. ok is false for other kinds.
func (v Value) Number() (f float64, ok bool) {
	if v.IsNull() {
		return 0, false
	}
	switch v.kind {
	case KindUint64:
		return float64(v.u), true
	case KindInt64:
		return float64(v.i), true
	case KindDouble:
		return v.d, true
	default:
		return 0, false
	}
}

// Interface returns the populated variant as a Go value, nil for NULL.
func (v Value) Interface() any {
	if v.IsNull() {
		return nil
	}
	switch v.kind {
	case KindBool:
		return v.b
	case KindUint64:
		return v.u
	case KindInt64:
		return v.i
	case KindDouble:
		return v.d
	case KindString:
		return v.s
	case KindBytes:
		return bytes.Clone(v.raw)
	default:
		return nil
	}
}

// Equal reports whether both values carry the same variant and content.
// Two NULLs are equal regardless of their expected kind.
func (v Value) Equal(o Value) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindUint64:
		return v.u == o.u
	case KindInt64:
		return v.i == o.i
	case KindDouble:
		return v.d == o.d || (math.IsNaN(v.d) && math.IsNaN(o.d))
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

// String renders the value for logs.
func (v Value) String() string {
	if v.IsNull() {
		return "null"
	}
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindUint64:
		return strconv.FormatUint(v.u, 10)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.d, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.raw)
	default:
		return "null"
	}
}

// ValueOf converts a Go scalar into a Value.
//
// Signed integers become int64, unsigned integers uint64, floats double.
// nil becomes an untyped NULL.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(KindNull), nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case int:
		return Int64Value(int64(t)), nil
	case int8:
		return Int64Value(int64(t)), nil
	case int16:
		return Int64Value(int64(t)), nil
	case int32:
		return Int64Value(int64(t)), nil
	case int64:
		return Int64Value(t), nil
	case uint:
		return Uint64Value(uint64(t)), nil
	case uint8:
		return Uint64Value(uint64(t)), nil
	case uint16:
		return Uint64Value(uint64(t)), nil
	case uint32:
		return Uint64Value(uint64(t)), nil
	case uint64:
		return Uint64Value(t), nil
	case float32:
		return DoubleValue(float64(t)), nil
	case float64:
		return DoubleValue(t), nil
	case string:
		return StringValue(t), nil
	case []byte:
		return BytesValue(t), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported Go type %T", ErrInvalidValueType, x)
	}
}
