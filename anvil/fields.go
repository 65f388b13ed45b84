package anvil

import (
	"github.com/astei/anvilworld/nbt"
)

type Kind byte

const (
	KindByte Kind = iota + 1
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
)

// Field binds a typed attribute to a key of a compound. Reading a missing key
// yields the default; writing always stores the wire type of Kind.
type Field struct {
	Name    string
	Key     string
	Kind    Kind
	Default interface{}
	// DefaultFunc, when set, replaces Default for values that depend on the
	// moment they are read, such as timestamps.
	DefaultFunc func() interface{}
}

func (f Field) defaultValue() interface{} {
	if f.DefaultFunc != nil {
		return f.DefaultFunc()
	}
	return f.Default
}

func (f Field) Int(c nbt.Compound) int64 {
	if v, ok := c.Int(f.Key); ok {
		return v
	}
	v, _ := nbt.AsInt(f.wire(f.defaultValue()))
	return v
}

func (f Field) Float(c nbt.Compound) float64 {
	if v, ok := c.Float(f.Key); ok {
		return v
	}
	switch v := f.wire(f.defaultValue()).(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

func (f Field) String(c nbt.Compound) string {
	if v, ok := c.String(f.Key); ok {
		return v
	}
	s, _ := f.defaultValue().(string)
	return s
}

func (f Field) Bool(c nbt.Compound) bool {
	return f.Int(c) != 0
}

func (f Field) Set(c nbt.Compound, v interface{}) {
	c[f.Key] = f.wire(v)
}

// wire converts v to the Go type the encoder maps to the field's tag type.
func (f Field) wire(v interface{}) interface{} {
	switch f.Kind {
	case KindString:
		s, _ := v.(string)
		return s
	case KindFloat:
		return float32(toFloat(v))
	case KindDouble:
		return toFloat(v)
	}

	n, ok := nbt.AsInt(v)
	if !ok {
		n = int64(toFloat(v))
	}
	switch f.Kind {
	case KindByte:
		return int8(n)
	case KindShort:
		return int16(n)
	case KindInt:
		return int32(n)
	}
	return n
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float32:
		return float64(t)
	case float64:
		return t
	}
	n, _ := nbt.AsInt(v)
	return float64(n)
}

type FieldTable []Field

func (t FieldTable) Lookup(name string) (Field, bool) {
	for _, f := range t {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ApplyDefaults stores the default of every field whose key is absent.
// Fields sharing a key keep the first default written.
func (t FieldTable) ApplyDefaults(c nbt.Compound) {
	for _, f := range t {
		if !c.Has(f.Key) {
			f.Set(c, f.defaultValue())
		}
	}
}
