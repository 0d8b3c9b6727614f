package mapping

import (
	"reflect"
	"sync/atomic"

	"github.com/Station-Manager/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Mapper maps values between types using registered mapping functions.
// See the package documentation for the accepted function shapes.
type Mapper struct {
	registry   *Registry
	dispatcher *Dispatcher
	narrower   atomic.Pointer[Narrower]
	options    Options
	logger     *zap.Logger
	tracer     trace.Tracer
}

// New creates a Mapper with default options.
func New(opts ...Option) *Mapper { return NewWithOptions(opts...) }

// NewWithOptions creates a new Mapper with provided options.
func NewWithOptions(opts ...Option) *Mapper {
	o := buildOptions(opts)
	r := newRegistry(o)
	m := &Mapper{
		registry:   r,
		dispatcher: newDispatcher(r.hierarchy, o),
		options:    o,
		logger:     o.logger,
		tracer:     o.tracer,
	}
	m.SetNarrower(o.narrower)
	return m
}

// Registry exposes the underlying registry.
func (m *Mapper) Registry() *Registry { return m.registry }

// Options returns the settings the Mapper was built with.
func (m *Mapper) Options() Options { return m.options }

// Register adds a mapping function under name. See Registry.Register.
func (m *Mapper) Register(name string, fn any) (Key, error) { return m.registry.Register(name, fn) }

// RegisterFunc adds a pre-classified mapping function under name.
func (m *Mapper) RegisterFunc(name string, f Func) (Key, error) {
	return m.registry.RegisterFunc(name, f)
}

// RegisterProvider adds every mapping of p, or none of them.
func (m *Mapper) RegisterProvider(p Provider) ([]Key, error) {
	const op errors.Op = "mapping.Mapper.RegisterProvider"
	if p == nil {
		return nil, errors.New(op).Msg("provider must not be nil")
	}
	return m.registry.RegisterAll(p.Mappings())
}

// DeclareSupertype makes parent a supertype of sub. Both may be a reflect.Type
// or an example value.
func (m *Mapper) DeclareSupertype(sub, parent any, upcast UpcastFunc) error {
	return m.registry.Declare(typeOf(sub), typeOf(parent), upcast)
}

// SetNarrower replaces the narrowing strategy. nil restores ProxyNarrower.
func (m *Mapper) SetNarrower(n Narrower) {
	if n == nil {
		n = ProxyNarrower
	}
	m.narrower.Store(&n)
}

func (m *Mapper) narrow(v any) reflect.Type {
	if t := (*m.narrower.Load()).Narrow(v); t != nil {
		return indirect(t)
	}
	return RuntimeNarrower.Narrow(v)
}

type callOptions struct {
	name string
	ctx  *Context
}

// CallOption configures a single Map call.
type CallOption func(*callOptions)

// WithMappingName selects a named mapping instead of the default one.
func WithMappingName(name string) CallOption { return func(o *callOptions) { o.name = name } }

// WithMappingContext passes ctx to mapping functions that accept a *Context.
func WithMappingContext(ctx *Context) CallOption { return func(o *callOptions) { o.ctx = ctx } }

func (m *Mapper) callOptions(opts []CallOption) callOptions {
	var co callOptions
	for _, f := range opts {
		if f != nil {
			f(&co)
		}
	}
	if co.ctx == nil && m.options.EnforceContext {
		co.ctx = NewContext()
	}
	return co
}

// Map maps src. When target is a reflect.Type a new instance is produced; a nil
// src then yields (nil, nil). Otherwise target must be a non-nil pointer which
// the mapping overwrites, and the same pointer is returned. A Proxy target is
// narrowed to the type it stands in for and the proxied pointer is returned.
func (m *Mapper) Map(src, target any, opts ...CallOption) (any, error) {
	co := m.callOptions(opts)
	switch t := target.(type) {
	case nil:
		return nil, ErrNilTarget
	case reflect.Type:
		if isNil(src) {
			return nil, nil
		}
		return m.traced(co.ctx, "mapping.Map", func() (any, error) {
			return m.mapOne(src, nil, indirect(t), co)
		}, spanAttrs(indirect(t), co.name)...)
	default:
		if isNil(src) {
			return nil, ErrNilSource
		}
		if isNil(target) {
			return nil, ErrNilTarget
		}
		if reflect.TypeOf(target).Kind() != reflect.Ptr {
			return nil, ErrInvalidTarget
		}
		tt := m.narrow(target)
		return m.traced(co.ctx, "mapping.Map", func() (any, error) {
			return m.mapOne(src, target, tt, co)
		}, spanAttrs(tt, co.name)...)
	}
}

// AllowsToMap reports whether a mapping from source to target exists. Both may
// be a reflect.Type or an example value; example values are narrowed.
func (m *Mapper) AllowsToMap(source, target any, name string) bool {
	if source == nil || target == nil {
		return false
	}
	var st reflect.Type
	if t, ok := source.(reflect.Type); ok {
		st = indirect(t)
	} else {
		st = m.narrow(source)
	}
	tt, ok := target.(reflect.Type)
	if !ok {
		tt = m.narrow(target)
	}
	return m.registry.AllowsToMap(st, tt, name)
}

func (m *Mapper) mapOne(src, dst any, target reflect.Type, co callOptions) (any, error) {
	k := NewKey(m.narrow(src), target, co.name)
	e, err := m.registry.Load(k)
	if err == nil {
		var out any
		if out, err = m.dispatcher.Invoke(e, src, dst, co.ctx); err == nil {
			return out, nil
		}
	}
	m.logger.Debug("mapping failed", zap.Stringer("key", k), zap.String("context_id", co.ctx.ID()), zap.Error(err))
	return nil, err
}

// traced runs fn inside a span named name. While fn runs, c carries the span's
// context so nested calls made by mapping functions become child spans.
func (m *Mapper) traced(c *Context, name string, fn func() (any, error), attrs ...attribute.KeyValue) (any, error) {
	ctx, span := m.tracer.Start(c.StdContext(), name, trace.WithAttributes(attrs...))
	defer span.End()
	if c != nil {
		prev := c.std
		c.std = ctx
		defer func() { c.std = prev }()
	}
	out, err := fn()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func spanAttrs(target reflect.Type, name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("mapping.target", typeName(target)),
		attribute.String("mapping.name", name),
	}
}
