// Package value implements the typed key→value payload container: a
// mapping from string keys to typed values with a self-describing
// binary wire form and a human-readable secondary form.
package value

import "fmt"

// Kind identifies the type of a stored Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindContainer
)

// Value is a single typed entry. Exactly one of the typed fields is
// meaningful, as indicated by Kind.
type Value struct {
	Kind      Kind
	Bool      bool
	Int       int64
	Uint      uint64
	Float32   float32
	Float64   float64
	Str       string
	Bytes     []byte
	Container *Container
}

func Null() Value                      { return Value{Kind: KindNull} }
func Bool(v bool) Value                { return Value{Kind: KindBool, Bool: v} }
func Int8(v int8) Value                { return Value{Kind: KindInt8, Int: int64(v)} }
func Int16(v int16) Value              { return Value{Kind: KindInt16, Int: int64(v)} }
func Int32(v int32) Value              { return Value{Kind: KindInt32, Int: int64(v)} }
func Int64(v int64) Value              { return Value{Kind: KindInt64, Int: v} }
func Uint8(v uint8) Value              { return Value{Kind: KindUint8, Uint: uint64(v)} }
func Uint16(v uint16) Value            { return Value{Kind: KindUint16, Uint: uint64(v)} }
func Uint32(v uint32) Value            { return Value{Kind: KindUint32, Uint: uint64(v)} }
func Uint64(v uint64) Value            { return Value{Kind: KindUint64, Uint: v} }
func Float32Val(v float32) Value       { return Value{Kind: KindFloat32, Float32: v} }
func Float64Val(v float64) Value       { return Value{Kind: KindFloat64, Float64: v} }
func String(v string) Value            { return Value{Kind: KindString, Str: v} }
func Bytes(v []byte) Value             { return Value{Kind: KindBytes, Bytes: v} }
func Nested(v *Container) Value        { return Value{Kind: KindContainer, Container: v} }

// entry pairs a key with its Value, preserving insertion order for
// deterministic serialization.
type entry struct {
	key string
	val Value
}

// Container is a typed key→value mapping. The zero value is ready to use.
// A single Container is safe for concurrent readers; mutation requires
// external synchronization (see ThreadSafe for a guarded wrapper).
type Container struct {
	order   []entry
	index   map[string]int
	maxSize int // bytes(0) cache hint only; not enforced here
}

// New creates an empty container.
func New() *Container {
	return &Container{index: make(map[string]int)}
}

// Add inserts or replaces the value at key, preserving the original
// position on replace so that serialization stays deterministic for a
// container whose values were mutated in place.
func (c *Container) Add(key string, v Value) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[key]; ok {
		c.order[i].val = v
		return
	}
	c.index[key] = len(c.order)
	c.order = append(c.order, entry{key: key, val: v})
}

// Get returns the value at key and whether it was present.
func (c *Container) Get(key string) (Value, bool) {
	i, ok := c.index[key]
	if !ok {
		return Value{}, false
	}
	return c.order[i].val, true
}

// Has reports whether key is present.
func (c *Container) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Keys returns the keys in insertion order.
func (c *Container) Keys() []string {
	keys := make([]string, len(c.order))
	for i, e := range c.order {
		keys[i] = e.key
	}
	return keys
}

// Size returns the number of entries; byte size is available via
// len(Serialize(...)).
func (c *Container) Size() int {
	return len(c.order)
}

// GetString is a typed accessor; ok is false if the key is absent or holds
// a different Kind.
func (c *Container) GetString(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// GetInt64 is a typed accessor over any signed integer kind.
func (c *Container) GetInt64(key string) (int64, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.Int, true
	}
	return 0, false
}

// GetBool is a typed accessor.
func (c *Container) GetBool(key string) (bool, bool) {
	v, ok := c.Get(key)
	if !ok || v.Kind != KindBool {
		return false, false
	}
	return v.Bool, true
}

// GetBytes is a typed accessor.
func (c *Container) GetBytes(key string) ([]byte, bool) {
	v, ok := c.Get(key)
	if !ok || v.Kind != KindBytes {
		return nil, false
	}
	return v.Bytes, true
}

// Equal reports whether two containers hold the same keys, values, and
// insertion order: equal containers serialize to byte-equal output.
func (c *Container) Equal(other *Container) bool {
	if other == nil {
		return c == nil || len(c.order) == 0
	}
	if len(c.order) != len(other.order) {
		return false
	}
	for i, e := range c.order {
		oe := other.order[i]
		if e.key != oe.key || !valuesEqual(e.val, oe.val) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return a.Int == b.Int
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return a.Uint == b.Uint
	case KindFloat32:
		return a.Float32 == b.Float32
	case KindFloat64:
		return a.Float64 == b.Float64
	case KindString:
		return a.Str == b.Str
	case KindBytes:
		return string(a.Bytes) == string(b.Bytes)
	case KindContainer:
		return a.Container.Equal(b.Container)
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindContainer:
		return "container"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}
