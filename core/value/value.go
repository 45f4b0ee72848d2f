// Package value defines the intermediate representation shared by all
// format handlers. Every format parses into and serializes from this
// model, so no format-specific type ever crosses a handler boundary.
//
// The model is a tagged union over null, boolean, integer, float,
// string, ordered mapping, sequence, and temporal values. Integers and
// floats are distinct kinds. Mappings preserve insertion order and keep
// keys unique; overwriting a key keeps its original position.
package value

import (
	"time"
)

// Kind identifies which member of the union a Value holds.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindMap
	KindSeq
	KindTime
)

// kindNames maps kinds to their display names.
var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "boolean",
	KindInt:    "integer",
	KindFloat:  "float",
	KindString: "string",
	KindMap:    "object",
	KindSeq:    "array",
	KindTime:   "datetime",
}

// String returns the display name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is one node of an intermediate document tree. Use the New*
// constructors; the zero Value is a null.
type Value struct {
	kind    Kind
	boolVal bool
	intVal  int64
	fltVal  float64
	strVal  string
	timeVal time.Time
	mapVal  *Map
	seqVal  []*Value
}

// NewNull returns a null value.
func NewNull() *Value {
	return &Value{kind: KindNull}
}

// NewBool returns a boolean value.
func NewBool(b bool) *Value {
	return &Value{kind: KindBool, boolVal: b}
}

// NewInt returns an integer value.
func NewInt(i int64) *Value {
	return &Value{kind: KindInt, intVal: i}
}

// NewFloat returns a float value.
func NewFloat(f float64) *Value {
	return &Value{kind: KindFloat, fltVal: f}
}

// NewString returns a string value.
func NewString(s string) *Value {
	return &Value{kind: KindString, strVal: s}
}

// NewTime returns a temporal value.
func NewTime(t time.Time) *Value {
	return &Value{kind: KindTime, timeVal: t}
}

// NewMapValue wraps an ordered mapping. A nil map is treated as empty.
func NewMapValue(m *Map) *Value {
	if m == nil {
		m = NewMap()
	}
	return &Value{kind: KindMap, mapVal: m}
}

// NewSeq returns a sequence holding the given items in order.
func NewSeq(items ...*Value) *Value {
	return &Value{kind: KindSeq, seqVal: items}
}

// Kind reports which union member the value holds.
func (v *Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v *Value) IsNull() bool {
	return v.kind == KindNull
}

// Bool returns the boolean member. Valid only for KindBool.
func (v *Value) Bool() bool { return v.boolVal }

// Int returns the integer member. Valid only for KindInt.
func (v *Value) Int() int64 { return v.intVal }

// Float returns the float member. Valid only for KindFloat.
func (v *Value) Float() float64 { return v.fltVal }

// Str returns the string member. Valid only for KindString.
func (v *Value) Str() string { return v.strVal }

// Time returns the temporal member. Valid only for KindTime.
func (v *Value) Time() time.Time { return v.timeVal }

// Map returns the mapping member. Valid only for KindMap.
func (v *Value) Map() *Map { return v.mapVal }

// Seq returns the sequence member. Valid only for KindSeq. The returned
// slice is the value's own backing; callers building new trees should
// copy rather than mutate.
func (v *Value) Seq() []*Value { return v.seqVal }

// Equal reports deep equality of two values. Integer and float values
// of equal magnitude are not equal: the kinds differ.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindInt:
		return a.intVal == b.intVal
	case KindFloat:
		return a.fltVal == b.fltVal
	case KindString:
		return a.strVal == b.strVal
	case KindTime:
		return a.timeVal.Equal(b.timeVal)
	case KindSeq:
		if len(a.seqVal) != len(b.seqVal) {
			return false
		}
		for i := range a.seqVal {
			if !Equal(a.seqVal[i], b.seqVal[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return a.mapVal.Equal(b.mapVal)
	}
	return false
}

// Clone returns a deep copy of the value.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	switch v.kind {
	case KindMap:
		return NewMapValue(v.mapVal.Clone())
	case KindSeq:
		items := make([]*Value, len(v.seqVal))
		for i, item := range v.seqVal {
			items[i] = item.Clone()
		}
		return NewSeq(items...)
	default:
		c := *v
		return &c
	}
}

// Map is an ordered key/value mapping. Keys are unique; setting an
// existing key replaces its value but keeps its original position.
type Map struct {
	keys    []string
	entries map[string]*Value
}

// NewMap returns an empty ordered mapping.
func NewMap() *Map {
	return &Map{entries: make(map[string]*Value)}
}

// Set inserts or replaces the value for key.
func (m *Map) Set(key string, v *Value) {
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = v
}

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (*Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

// Clone returns a deep copy of the mapping.
func (m *Map) Clone() *Map {
	out := NewMap()
	for _, k := range m.keys {
		out.Set(k, m.entries[k].Clone())
	}
	return out
}

// Equal reports deep equality including key order.
func (m *Map) Equal(o *Map) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.keys) != len(o.keys) {
		return false
	}
	for i, k := range m.keys {
		if o.keys[i] != k {
			return false
		}
		if !Equal(m.entries[k], o.entries[k]) {
			return false
		}
	}
	return true
}
