package mapping

import (
	"reflect"

	"github.com/Station-Manager/errors"
)

// MapTo maps src to a new T. T may be the target type or a pointer to it.
func MapTo[T any](m *Mapper, src any, opts ...CallOption) (T, error) {
	out, err := m.Map(src, reflect.TypeFor[T](), opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](out)
}

// Into overwrites dst with the mapping of src.
func Into[T any](m *Mapper, src any, dst *T, opts ...CallOption) error {
	if dst == nil {
		return ErrNilTarget
	}
	_, err := m.Map(src, dst, opts...)
	return err
}

// CanMap reports whether a mapping from S to T named name exists.
func CanMap[S, T any](m *Mapper, name string) bool {
	return m.registry.AllowsToMap(reflect.TypeFor[S](), reflect.TypeFor[T](), name)
}

// as converts a mapping result to T, adding or removing one pointer level.
func as[T any](v any) (T, error) {
	const op errors.Op = "mapping.as"
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	rv := reflect.ValueOf(v)
	want := reflect.TypeFor[T]()
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return zero, nil
	}
	if c, ok := coerce(rv, want); ok {
		return c.Interface().(T), nil
	}
	return zero, errors.New(op).Errorf("mapping produced %T, not %s", v, want)
}
