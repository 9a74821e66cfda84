package domain

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strconv"

	"go.trai.ch/zerr"
)

type attrKind uint8

const (
	attrString attrKind = iota
	attrInt
	attrBool
)

// Attr is a single reference attribute value. It holds a string, an integer or a boolean.
type Attr struct {
	kind attrKind
	s    string
	i    int64
	b    bool
}

// StringAttr returns a string attribute.
func StringAttr(s string) Attr { return Attr{kind: attrString, s: s} }

// IntAttr returns an integer attribute.
func IntAttr(i int64) Attr { return Attr{kind: attrInt, i: i} }

// BoolAttr returns a boolean attribute.
func BoolAttr(b bool) Attr { return Attr{kind: attrBool, b: b} }

// String renders the attribute the way it appears in a reference URL query.
func (a Attr) String() string {
	switch a.kind {
	case attrInt:
		return strconv.FormatInt(a.i, 10)
	case attrBool:
		if a.b {
			return "1"
		}
		return "0"
	default:
		return a.s
	}
}

// MarshalJSON encodes the attribute as a JSON string, number or boolean.
func (a Attr) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case attrInt:
		return json.Marshal(a.i)
	case attrBool:
		return json.Marshal(a.b)
	default:
		return json.Marshal(a.s)
	}
}

// UnmarshalJSON decodes a JSON string, integer or boolean.
func (a *Attr) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		*a = StringAttr(v)
	case bool:
		*a = BoolAttr(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return zerr.With(zerr.Wrap(err, ErrInvalidRef.Error()), "value", v.String())
		}
		*a = IntAttr(i)
	default:
		return zerr.With(ErrInvalidRef, "value", string(data))
	}
	return nil
}

// Attrs is the attribute set of a reference. Keys are always iterated in sorted order.
type Attrs map[string]Attr

// Keys returns the attribute names in sorted order.
func (a Attrs) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// String returns a string attribute.
func (a Attrs) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v.kind != attrString {
		return "", false
	}
	return v.s, true
}

// Int returns an integer attribute.
func (a Attrs) Int(key string) (int64, bool) {
	v, ok := a[key]
	if !ok || v.kind != attrInt {
		return 0, false
	}
	return v.i, true
}

// Bool returns a boolean attribute.
func (a Attrs) Bool(key string) (bool, bool) {
	v, ok := a[key]
	if !ok || v.kind != attrBool {
		return false, false
	}
	return v.b, true
}

// Clone returns a copy of the attribute set.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	maps.Copy(out, a)
	return out
}

// Equal reports whether both sets hold the same keys and values.
func (a Attrs) Equal(o Attrs) bool {
	return maps.Equal(a, o)
}
