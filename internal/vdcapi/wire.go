package vdcapi

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// field is one decoded protobuf field.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

// parseFields splits a protobuf record into its fields in wire order.
func parseFields(b []byte) ([]field, error) {
	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v32 uint32
			v32, n = protowire.ConsumeFixed32(b)
			f.v = uint64(v32)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

func (f field) want(t protowire.Type) error {
	if f.typ != t {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrMalformed, f.num, f.typ, t)
	}
	return nil
}

func (f field) uint32() (uint32, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return 0, err
	}
	return uint32(f.v), nil
}

func (f field) int32() (int32, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return 0, err
	}
	return int32(int64(f.v)), nil
}

func (f field) optInt32() (*int32, error) {
	v, err := f.int32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (f field) bool() (bool, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return false, err
	}
	return f.v != 0, nil
}

func (f field) double() (float64, error) {
	if err := f.want(protowire.Fixed64Type); err != nil {
		return 0, err
	}
	return math.Float64frombits(f.v), nil
}

func (f field) string() (string, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return "", err
	}
	return string(f.b), nil
}

func (f field) dsuid() (dsuid.DSUID, error) {
	s, err := f.string()
	if err != nil || s == "" {
		return dsuid.Empty, err
	}
	id, err := dsuid.Parse(s)
	if err != nil {
		return dsuid.Empty, fmt.Errorf("%w: dSUID %q: %w", ErrMalformed, s, err)
	}
	return id, nil
}

func (f field) element() (*property.Element, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return nil, err
	}
	return unmarshalElement(f.b)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendVarint(b, num, uint64(int64(v)))
}

func appendOptInt32(b []byte, num protowire.Number, v *int32) []byte {
	if v == nil {
		return b
	}
	return appendInt32(b, num, *v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendDSUID omits the empty dSUID so it decodes back to dsuid.Empty.
func appendDSUID(b []byte, num protowire.Number, id dsuid.DSUID) []byte {
	if id.IsEmpty() {
		return b
	}
	return appendString(b, num, id.String())
}

func appendDSUIDs(b []byte, num protowire.Number, ids []dsuid.DSUID) []byte {
	for _, id := range ids {
		b = appendString(b, num, id.String())
	}
	return b
}

func appendElements(b []byte, num protowire.Number, elems []*property.Element) []byte {
	for _, e := range elems {
		b = appendBytes(b, num, marshalElement(nil, e))
	}
	return b
}

// PropertyElement: name=1, value=2, elements=3.
func marshalElement(b []byte, e *property.Element) []byte {
	b = appendString(b, 1, e.Name)
	if e.Value != nil {
		b = appendBytes(b, 2, marshalValue(nil, *e.Value))
	}
	return appendElements(b, 3, e.Elements)
}

// PropertyValue: v_bool=1, v_uint64=2, v_int64=3, v_double=4, v_string=5,
// v_bytes=6. NULL is the empty record.
func marshalValue(b []byte, v property.Value) []byte {
	if v.IsNull() {
		return b
	}
	switch v.Kind() {
	case property.KindBool:
		b = appendBool(b, 1, v.AsBool())
	case property.KindUint64:
		b = appendVarint(b, 2, v.AsUint64())
	case property.KindInt64:
		b = appendVarint(b, 3, uint64(v.AsInt64()))
	case property.KindDouble:
		b = appendDouble(b, 4, v.AsDouble())
	case property.KindString:
		b = appendString(b, 5, v.AsString())
	case property.KindBytes:
		b = appendBytes(b, 6, v.AsBytes())
	}
	return b
}

func unmarshalElement(b []byte) (*property.Element, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	e := &property.Element{}
	for _, f := range fields {
		switch f.num {
		case 1:
			if e.Name, err = f.string(); err != nil {
				return nil, err
			}
		case 2:
			if err := f.want(protowire.BytesType); err != nil {
				return nil, err
			}
			v, err := unmarshalValue(f.b)
			if err != nil {
				return nil, err
			}
			e.Value = &v
		case 3:
			child, err := f.element()
			if err != nil {
				return nil, err
			}
			e.Elements = append(e.Elements, child)
		}
	}
	return e, nil
}

// unmarshalValue keeps the last variant present, matching protobuf's
// last-one-wins rule for scalar fields.
func unmarshalValue(b []byte) (property.Value, error) {
	fields, err := parseFields(b)
	if err != nil {
		return property.Value{}, err
	}
	v := property.Null(property.KindNull)
	for _, f := range fields {
		switch f.num {
		case 1:
			x, err := f.bool()
			if err != nil {
				return v, err
			}
			v = property.BoolValue(x)
		case 2:
			if err := f.want(protowire.VarintType); err != nil {
				return v, err
			}
			v = property.Uint64Value(f.v)
		case 3:
			if err := f.want(protowire.VarintType); err != nil {
				return v, err
			}
			v = property.Int64Value(int64(f.v))
		case 4:
			x, err := f.double()
			if err != nil {
				return v, err
			}
			v = property.DoubleValue(x)
		case 5:
			x, err := f.string()
			if err != nil {
				return v, err
			}
			v = property.StringValue(x)
		case 6:
			if err := f.want(protowire.BytesType); err != nil {
				return v, err
			}
			v = property.BytesValue(f.b)
		}
	}
	return v, nil
}
