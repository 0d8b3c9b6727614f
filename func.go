package mapping

import (
	"fmt"
	"reflect"
	"runtime"
)

var (
	errorType   = reflect.TypeFor[error]()
	contextType = reflect.TypeFor[*Context]()
)

// invoker calls a classified mapping function. dst is the *Target for mutating
// shapes and invalid otherwise; the returned value is only set for producing shapes.
type invoker func(src, dst reflect.Value, ctx *Context) (reflect.Value, error)

// Func is a mapping function captured together with its Shape. Build one with
// Mutator, MutatorWithContext, Producer or ProducerWithContext, or let Register
// classify a plain Go func.
type Func struct {
	shape  Shape
	source reflect.Type // declared source parameter, possibly a pointer
	target reflect.Type // *T parameter for mutating shapes, result type otherwise
	origin string
	call   invoker
	reason string // set when the function cannot be registered
}

// Shape returns the classified shape.
func (f Func) Shape() Shape { return f.shape }

// Origin describes the underlying function for error messages.
func (f Func) Origin() string { return f.origin }

// Key returns the registry key this function is registered under for name.
func (f Func) Key(name string) Key { return NewKey(f.source, f.target, name) }

// Mutator wraps func(S, *T) error.
func Mutator[S, T any](fn func(S, *T) error) Func {
	if fn == nil {
		return Func{origin: "<nil>"}
	}
	if reflect.TypeFor[T]().Kind() == reflect.Ptr {
		return Func{origin: funcName(reflect.ValueOf(fn)), reason: "target parameter must point to a non-pointer type"}
	}
	return Func{
		shape:  MutatesTarget,
		source: reflect.TypeFor[S](),
		target: reflect.TypeFor[*T](),
		origin: funcName(reflect.ValueOf(fn)),
		call: func(src, dst reflect.Value, _ *Context) (reflect.Value, error) {
			return reflect.Value{}, fn(src.Interface().(S), dst.Interface().(*T))
		},
	}
}

// MutatorWithContext wraps func(S, *T, *Context) error.
func MutatorWithContext[S, T any](fn func(S, *T, *Context) error) Func {
	if fn == nil {
		return Func{origin: "<nil>"}
	}
	if reflect.TypeFor[T]().Kind() == reflect.Ptr {
		return Func{origin: funcName(reflect.ValueOf(fn)), reason: "target parameter must point to a non-pointer type"}
	}
	return Func{
		shape:  MutatesTargetWithContext,
		source: reflect.TypeFor[S](),
		target: reflect.TypeFor[*T](),
		origin: funcName(reflect.ValueOf(fn)),
		call: func(src, dst reflect.Value, ctx *Context) (reflect.Value, error) {
			return reflect.Value{}, fn(src.Interface().(S), dst.Interface().(*T), ctx)
		},
	}
}

// Producer wraps func(S) (T, error).
func Producer[S, T any](fn func(S) (T, error)) Func {
	if fn == nil {
		return Func{origin: "<nil>"}
	}
	return Func{
		shape:  ReturnsTarget,
		source: reflect.TypeFor[S](),
		target: reflect.TypeFor[T](),
		origin: funcName(reflect.ValueOf(fn)),
		call: func(src, _ reflect.Value, _ *Context) (reflect.Value, error) {
			out, err := fn(src.Interface().(S))
			return reflect.ValueOf(&out).Elem(), err
		},
	}
}

// ProducerWithContext wraps func(S, *Context) (T, error).
func ProducerWithContext[S, T any](fn func(S, *Context) (T, error)) Func {
	if fn == nil {
		return Func{origin: "<nil>"}
	}
	return Func{
		shape:  ReturnsTargetWithContext,
		source: reflect.TypeFor[S](),
		target: reflect.TypeFor[T](),
		origin: funcName(reflect.ValueOf(fn)),
		call: func(src, _ reflect.Value, ctx *Context) (reflect.Value, error) {
			out, err := fn(src.Interface().(S), ctx)
			return reflect.ValueOf(&out).Elem(), err
		},
	}
}

// classify turns fn into a Func. Plain funcs are inspected once here so that
// invocation never has to look at parameter shapes again.
func classify(fn any) (Func, error) {
	if f, ok := fn.(Func); ok {
		if f.shape == 0 || f.call == nil {
			origin, reason := f.origin, f.reason
			if origin == "" {
				origin = "<nil>"
			}
			if reason == "" {
				reason = "nil function"
			}
			return Func{}, &IllegalDefinitionError{Origin: origin, Reason: reason}
		}
		return f, nil
	}
	if fn == nil {
		return Func{}, &IllegalDefinitionError{Origin: "<nil>", Reason: "nil function"}
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return Func{}, &IllegalDefinitionError{Origin: fmt.Sprintf("%T", fn), Reason: "not a function"}
	}
	if v.IsNil() {
		return Func{}, &IllegalDefinitionError{Origin: v.Type().String(), Reason: "nil function"}
	}
	t := v.Type()
	origin := funcName(v)
	illegal := func(reason string) (Func, error) {
		return Func{}, &IllegalDefinitionError{Origin: origin, Reason: reason}
	}
	if t.IsVariadic() {
		return illegal("variadic functions are not supported")
	}

	var result reflect.Type
	returnsErr := false
	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			returnsErr = true
		} else {
			result = t.Out(0)
		}
	case 2:
		if t.Out(1) != errorType || t.Out(0) == errorType {
			return illegal("results must be (T, error)")
		}
		result = t.Out(0)
		returnsErr = true
	default:
		return illegal("too many results")
	}

	in := t.NumIn()
	withCtx := in > 0 && t.In(in-1) == contextType
	params := in
	if withCtx {
		params--
	}
	for i := 0; i < params; i++ {
		if t.In(i) == contextType {
			return illegal("*mapping.Context must be the last parameter")
		}
	}

	var shape Shape
	var target reflect.Type
	if result == nil {
		if params != 2 {
			return illegal("mutating mappings take (source, *target[, *mapping.Context])")
		}
		if t.In(1).Kind() != reflect.Ptr {
			return illegal("target parameter must be a pointer")
		}
		if t.In(1).Elem().Kind() == reflect.Ptr {
			return illegal("target parameter must point to a non-pointer type")
		}
		target = t.In(1)
		shape = MutatesTarget
		if withCtx {
			shape = MutatesTargetWithContext
		}
	} else {
		if params != 1 {
			return illegal("producing mappings take (source[, *mapping.Context])")
		}
		target = result
		shape = ReturnsTarget
		if withCtx {
			shape = ReturnsTargetWithContext
		}
	}

	mutating := result == nil
	call := func(src, dst reflect.Value, ctx *Context) (reflect.Value, error) {
		args := make([]reflect.Value, 0, 3)
		args = append(args, src)
		if mutating {
			args = append(args, dst)
		}
		if withCtx {
			args = append(args, reflect.ValueOf(ctx))
		}
		out := v.Call(args)
		var err error
		if returnsErr {
			if e := out[len(out)-1]; !e.IsNil() {
				err = e.Interface().(error)
			}
		}
		if mutating {
			return reflect.Value{}, err
		}
		return out[0], err
	}
	return Func{shape: shape, source: t.In(0), target: target, origin: origin, call: call}, nil
}

func funcName(v reflect.Value) string {
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return v.Type().String()
}
