package nbt

// Compound is a decoded compound tag. Decoded children keep the concrete Go
// types produced by the decoder, so every accessor below accepts the few
// representations a given tag type can arrive in.
type Compound map[string]interface{}

func AsCompound(v interface{}) (Compound, bool) {
	switch c := v.(type) {
	case Compound:
		return c, true
	case map[string]interface{}:
		return Compound(c), true
	}
	return nil, false
}

func (c Compound) Has(key string) bool {
	_, ok := c[key]
	return ok
}

func (c Compound) Compound(key string) (Compound, bool) {
	return AsCompound(c[key])
}

// Int returns any integer tag widened to int64.
func (c Compound) Int(key string) (int64, bool) {
	return AsInt(c[key])
}

func (c Compound) Float(key string) (float64, bool) {
	switch v := c[key].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func (c Compound) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

func (c Compound) ByteArray(key string) ([]byte, bool) {
	switch v := c[key].(type) {
	case []byte:
		return v, true
	case []int8:
		out := make([]byte, len(v))
		for i, b := range v {
			out[i] = byte(b)
		}
		return out, true
	}
	return nil, false
}

func (c Compound) IntArray(key string) ([]int32, bool) {
	switch v := c[key].(type) {
	case []int32:
		return v, true
	case []interface{}:
		out := make([]int32, len(v))
		for i, e := range v {
			n, ok := AsInt(e)
			if !ok {
				return nil, false
			}
			out[i] = int32(n)
		}
		return out, true
	}
	return nil, false
}

// Floats reads a list of float or double tags.
func (c Compound) Floats(key string) ([]float64, bool) {
	switch v := c[key].(type) {
	case []float64:
		return v, true
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, true
	case []interface{}:
		out := make([]float64, len(v))
		for i, e := range v {
			switch f := e.(type) {
			case float32:
				out[i] = float64(f)
			case float64:
				out[i] = f
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

// Compounds reads a list of compound tags. An empty list of any element type
// yields an empty, non-nil slice.
func (c Compound) Compounds(key string) ([]Compound, bool) {
	switch v := c[key].(type) {
	case []Compound:
		return v, true
	case []map[string]interface{}:
		out := make([]Compound, len(v))
		for i, m := range v {
			out[i] = Compound(m)
		}
		return out, true
	case []interface{}:
		out := make([]Compound, 0, len(v))
		for _, e := range v {
			m, ok := AsCompound(e)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	}
	return nil, false
}

// Copy returns a copy of c with nested compounds and lists copied as well.
// Arrays are shared.
func (c Compound) Copy() Compound {
	out := make(Compound, len(c))
	for k, v := range c {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Compound:
		return t.Copy()
	case map[string]interface{}:
		return Compound(t).Copy()
	case []Compound:
		out := make([]Compound, len(t))
		for i, e := range t {
			out[i] = e.Copy()
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}

func AsInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case uint8:
		return int64(int8(n)), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
