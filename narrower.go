package mapping

import "reflect"

// Narrower decides the type an instance is registered under. Lazy-loading or
// decorating wrappers can report the type they stand in for.
type Narrower interface {
	Narrow(v any) reflect.Type
}

// NarrowerFunc adapts a plain function to Narrower.
type NarrowerFunc func(v any) reflect.Type

func (f NarrowerFunc) Narrow(v any) reflect.Type { return f(v) }

// Proxy is implemented by wrappers that should be mapped as the type they proxy.
type Proxy interface {
	ProxiedType() reflect.Type
}

// Unproxier is implemented by proxies that can hand out the value they stand
// in for. The dispatcher unwraps such a source before invoking a mapping whose
// source type the proxy itself does not satisfy.
type Unproxier interface {
	Unproxy() (any, error)
}

// RuntimeNarrower narrows every value to its dynamic type.
var RuntimeNarrower Narrower = NarrowerFunc(func(v any) reflect.Type {
	if v == nil {
		return nil
	}
	return indirect(reflect.TypeOf(v))
})

// ProxyNarrower narrows a Proxy to its proxied type and every other value to its
// dynamic type. It is the default.
var ProxyNarrower Narrower = NarrowerFunc(func(v any) reflect.Type {
	if p, ok := v.(Proxy); ok {
		if t := p.ProxiedType(); t != nil {
			return indirect(t)
		}
	}
	return RuntimeNarrower.Narrow(v)
})
