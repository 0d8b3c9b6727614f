package mapping

import (
	"reflect"
	"strings"
)

// Key identifies a mapping by source type, target type and mapping name.
// The empty name denotes the default mapping. Pointer indirections are stripped
// from both types so that T and *T select the same mapping.
type Key struct {
	Source reflect.Type
	Target reflect.Type
	Name   string
}

// NewKey builds a Key, normalizing both types.
func NewKey(source, target reflect.Type, name string) Key {
	return Key{Source: indirect(source), Target: indirect(target), Name: name}
}

// KeyFor builds a Key for the static types S and T.
func KeyFor[S, T any](name string) Key {
	return NewKey(reflect.TypeFor[S](), reflect.TypeFor[T](), name)
}

// parent returns the same key with the source replaced by p.
func (k Key) parent(p reflect.Type) Key {
	return Key{Source: p, Target: k.Target, Name: k.Name}
}

// String renders the key as "pkg.Source -> pkg.Target ('name')".
func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString(typeName(k.Source))
	sb.WriteString(" -> ")
	sb.WriteString(typeName(k.Target))
	if k.Name != "" {
		sb.WriteString(" ('")
		sb.WriteString(k.Name)
		sb.WriteString("')")
	}
	return sb.String()
}

// id is a string form of the key that is unique for named types. It is only
// used to index the miss cache, which verifies the full key on every hit.
func (k Key) id() string {
	return typeID(k.Source) + "|" + typeID(k.Target) + "|" + k.Name
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func typeID(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// typeOf accepts a reflect.Type or an example value (T or *T) and returns the
// normalized type, mirroring how converters are scoped by example values.
func typeOf(v any) reflect.Type {
	if v == nil {
		return nil
	}
	if t, ok := v.(reflect.Type); ok {
		return indirect(t)
	}
	return indirect(reflect.TypeOf(v))
}
