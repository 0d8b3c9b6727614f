package mapping

import (
	"fmt"
	"reflect"

	"github.com/Station-Manager/errors"
)

// Dispatcher invokes resolved entries. It adapts the source to the registered
// parameter type, creates targets for mutating mappings when none is supplied
// and turns failures of the mapping function into *MappingError.
type Dispatcher struct {
	hierarchy    *Hierarchy
	constructors map[reflect.Type]func() (any, error)
}

// NewDispatcher returns a Dispatcher lifting sources through h. Only the
// constructors registered with WithConstructor are taken from opts.
func NewDispatcher(h *Hierarchy, opts ...Option) *Dispatcher {
	o := buildOptions(opts)
	return newDispatcher(h, o)
}

func newDispatcher(h *Hierarchy, o Options) *Dispatcher {
	if h == nil {
		h = NewHierarchy(o.MaxSupertypeDepth, o.EmbeddedSupertypes)
	}
	return &Dispatcher{hierarchy: h, constructors: o.constructors}
}

// Invoke calls e with src. Producing entries return the produced value and
// reject a non-nil dst. Mutating entries write into dst, or into a newly
// constructed target when dst is nil, and return the target pointer. A proxy
// dst returns the pointer it proxies.
func (d *Dispatcher) Invoke(e *Entry, src, dst any, ctx *Context) (result any, err error) {
	const op errors.Op = "mapping.Dispatcher.Invoke"
	if isNil(src) {
		return nil, ErrNilSource
	}
	k := e.key
	if e.ReturnsNewInstance() && dst != nil {
		return nil, &MappingError{Key: k, Reason: "cannot be used for overlay mapping"}
	}

	sv, err := d.source(e, src)
	if err != nil {
		return nil, mappingFailed(k, err)
	}

	var dv reflect.Value
	if !e.ReturnsNewInstance() {
		if dst == nil {
			if dv, err = d.construct(k.Target); err != nil {
				return nil, &MappingError{Key: k, Reason: fmt.Sprintf("cannot create a new instance of %s", k.Target), Cause: err}
			}
		} else if dv, err = d.target(e, dst); err != nil {
			return nil, err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = mappingFailed(k, errors.New(op).Errorf("panic: %v", r))
		}
	}()
	out, err := e.fn.call(sv, dv, ctx)
	if err != nil {
		return nil, mappingFailed(k, err)
	}
	if e.ReturnsNewInstance() {
		if !out.IsValid() {
			return nil, nil
		}
		return out.Interface(), nil
	}
	return dv.Interface(), nil
}

// source adapts src to the declared source parameter: directly, through a
// proxy, or by lifting it to the registered supertype.
func (d *Dispatcher) source(e *Entry, src any) (reflect.Value, error) {
	const op errors.Op = "mapping.Dispatcher.source"
	want := e.fn.source
	v := reflect.ValueOf(src)
	if c, ok := coerce(v, want); ok {
		return c, nil
	}
	if u, ok := src.(Unproxier); ok {
		inner, err := u.Unproxy()
		if err != nil {
			return reflect.Value{}, errors.New(op).Err(err).Msg("unproxying source")
		}
		if isNil(inner) {
			return reflect.Value{}, ErrNilSource
		}
		v = reflect.ValueOf(inner)
		if c, ok := coerce(v, want); ok {
			return c, nil
		}
	}
	lifted, err := d.hierarchy.lift(v, e.key.Source)
	if err != nil {
		return reflect.Value{}, err
	}
	if c, ok := coerce(lifted, want); ok {
		return c, nil
	}
	return reflect.Value{}, errors.New(op).Errorf("cannot pass %s as %s", v.Type(), want)
}

// target checks dst against the *Target parameter, unwrapping a proxy target
// that stands in for it.
func (d *Dispatcher) target(e *Entry, dst any) (reflect.Value, error) {
	const op errors.Op = "mapping.Dispatcher.target"
	want := e.fn.target
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: got %T", ErrInvalidTarget, dst)
	}
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	if u, ok := dst.(Unproxier); ok {
		inner, err := u.Unproxy()
		if err != nil {
			return reflect.Value{}, mappingFailed(e.key, errors.New(op).Err(err).Msg("unproxying target"))
		}
		if isNil(inner) {
			return reflect.Value{}, fmt.Errorf("%w: %T proxies a nil target", ErrInvalidTarget, dst)
		}
		if iv := reflect.ValueOf(inner); iv.Kind() == reflect.Ptr && iv.Type().AssignableTo(want) {
			return iv, nil
		}
		return reflect.Value{}, fmt.Errorf("%w: %T proxies %T, want %s", ErrInvalidTarget, dst, inner, want)
	}
	return reflect.Value{}, fmt.Errorf("%w: got %s, want %s", ErrInvalidTarget, v.Type(), want)
}

// construct returns a new *t, using a registered constructor when present.
func (d *Dispatcher) construct(t reflect.Type) (v reflect.Value, err error) {
	const op errors.Op = "mapping.Dispatcher.construct"
	fn, ok := d.constructors[t]
	if !ok {
		switch t.Kind() {
		case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
			return reflect.Value{}, errors.New(op).Errorf("%s kind %s cannot be instantiated", t, t.Kind())
		}
		return reflect.New(t), nil
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = reflect.Value{}, errors.New(op).Errorf("constructor for %s panicked: %v", t, r)
		}
	}()
	out, err := fn()
	if err != nil {
		return reflect.Value{}, errors.New(op).Err(err)
	}
	if isNil(out) {
		return reflect.Value{}, errors.New(op).Errorf("constructor for %s returned nil", t)
	}
	return reflect.ValueOf(out), nil
}

// coerce adapts v to want, taking or dropping one level of pointer.
func coerce(v reflect.Value, want reflect.Type) (reflect.Value, bool) {
	t := v.Type()
	switch {
	case t.AssignableTo(want):
		return v, true
	case t.Kind() == reflect.Ptr && t.Elem().AssignableTo(want):
		if v.IsNil() {
			return reflect.Value{}, false
		}
		return v.Elem(), true
	case t.Kind() != reflect.Ptr && reflect.PointerTo(t).AssignableTo(want):
		if v.CanAddr() {
			return v.Addr(), true
		}
		p := reflect.New(t)
		p.Elem().Set(v)
		return p, true
	}
	return reflect.Value{}, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
