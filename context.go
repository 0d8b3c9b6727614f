package mapping

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Context is an ordered bag of auxiliary values made available to mapping
// functions that accept it. A Context belongs to a single mapping operation and
// must not be shared between goroutines. Read methods accept a nil receiver and
// the zero value is ready to use.
type Context struct {
	values map[string]any
	keys   []string
	source any
	pos    int // source index + 1, 0 outside bulk mapping
	std    context.Context
	id     string
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// NewContextFrom returns a Context holding a copy of data.
func NewContextFrom(data map[string]any) *Context {
	c := NewContext()
	return c.PutAll(data)
}

// ContextWith returns a Context holding a single value.
func ContextWith(key string, value any) *Context {
	return NewContext().Put(key, value)
}

// Copy returns a new Context with the same values. Bulk source, index and
// operation id are not copied.
func (c *Context) Copy() *Context {
	n := NewContext()
	if c == nil {
		return n
	}
	for _, k := range c.keys {
		n.Put(k, c.values[k])
	}
	n.std = c.std
	return n
}

// Value returns the value stored under key and whether it was present.
func (c *Context) Value(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// ValueOr returns the value stored under key, or def when the key is absent or holds nil.
func (c *Context) ValueOr(key string, def any) any {
	if v, ok := c.Value(key); ok && v != nil {
		return v
	}
	return def
}

// ContextValue returns the value under key asserted to T.
func ContextValue[T any](c *Context, key string) (T, bool) {
	var zero T
	v, ok := c.Value(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// ContainsKey reports whether key is present.
func (c *Context) ContainsKey(key string) bool {
	_, ok := c.Value(key)
	return ok
}

// Len returns the number of stored values.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// IsEmpty reports whether the context holds no values.
func (c *Context) IsEmpty() bool { return c.Len() == 0 }

// Keys returns the keys in insertion order.
func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Put stores value under key, replacing any previous value but keeping its position.
func (c *Context) Put(key string, value any) *Context {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
	return c
}

// PutAll stores every entry of data. Map iteration order is unspecified, so keys
// are appended in sorted order to keep Keys deterministic.
func (c *Context) PutAll(data map[string]any) *Context {
	for _, k := range slices.Sorted(maps.Keys(data)) {
		c.Put(k, data[k])
	}
	return c
}

// Remove deletes key.
func (c *Context) Remove(key string) *Context {
	if _, ok := c.values[key]; !ok {
		return c
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return c
}

// Clear deletes every value.
func (c *Context) Clear() *Context {
	clear(c.values)
	c.keys = c.keys[:0]
	return c
}

// Source returns the collection being mapped, or nil outside bulk mapping.
func (c *Context) Source() any {
	if c == nil {
		return nil
	}
	return c.source
}

// SetSource records the collection being mapped.
func (c *Context) SetSource(source any) { c.source = source }

// SourceIndex returns the index of the element being mapped, or -1 outside bulk mapping.
func (c *Context) SourceIndex() int {
	if c == nil {
		return -1
	}
	return c.pos - 1
}

// SetSourceIndex records the index of the element being mapped.
func (c *Context) SetSourceIndex(i int) { c.pos = i + 1 }

// StdContext returns the context.Context used for tracing, never nil.
func (c *Context) StdContext() context.Context {
	if c == nil || c.std == nil {
		return context.Background()
	}
	return c.std
}

// WithStdContext attaches ctx so spans started by the Mapper join the caller's trace.
func (c *Context) WithStdContext(ctx context.Context) *Context {
	c.std = ctx
	return c
}

// ID returns an identifier for the operation, generated on first use.
func (c *Context) ID() string {
	if c == nil {
		return ""
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	return c.id
}

// MarshalJSON encodes the stored values as a JSON object.
func (c *Context) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c.values)
}

func (c *Context) String() string {
	if c == nil {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", k, c.values[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
