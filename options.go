package mapping

import (
	"reflect"
	"time"

	"github.com/Station-Manager/errors"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Options configures a Mapper. The exported fields can be loaded from YAML with
// LoadOptions; collaborators such as the logger are set with Option funcs only.
type Options struct {
	EnforceContext     bool          `yaml:"enforce_context"`     // create a Context when the caller supplies none
	MaxSupertypeDepth  int           `yaml:"max_supertype_depth"` // bound for supertype walks
	EmbeddedSupertypes bool          `yaml:"embedded_supertypes"` // treat a leading embedded struct as the parent type
	MissCacheTTL       time.Duration `yaml:"miss_cache_ttl"`      // lifetime of negative lookups; 0 disables the miss cache

	logger       *zap.Logger
	tracer       trace.Tracer
	narrower     Narrower
	constructors map[reflect.Type]func() (any, error)
}

type Option func(*Options)

// DefaultOptions returns the defaults used by New.
func DefaultOptions() Options {
	return Options{
		EnforceContext:     true,
		MaxSupertypeDepth:  DefaultMaxSupertypeDepth,
		EmbeddedSupertypes: true,
		MissCacheTTL:       time.Minute,
	}
}

// LoadOptions decodes YAML over DefaultOptions.
func LoadOptions(data []byte) (Options, error) {
	const op errors.Op = "mapping.LoadOptions"
	o := DefaultOptions()
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, errors.New(op).Err(err).Msg("decoding mapping options")
	}
	if o.MaxSupertypeDepth < 0 {
		return Options{}, errors.New(op).Errorf("max_supertype_depth must not be negative, got %d", o.MaxSupertypeDepth)
	}
	if o.MissCacheTTL < 0 {
		return Options{}, errors.New(op).Errorf("miss_cache_ttl must not be negative, got %s", o.MissCacheTTL)
	}
	return o, nil
}

// WithOptions copies the exported settings of src, typically the result of LoadOptions.
func WithOptions(src Options) Option {
	return func(o *Options) {
		o.EnforceContext = src.EnforceContext
		o.MaxSupertypeDepth = src.MaxSupertypeDepth
		o.EmbeddedSupertypes = src.EmbeddedSupertypes
		o.MissCacheTTL = src.MissCacheTTL
	}
}

func WithEnforceContext(v bool) Option { return func(o *Options) { o.EnforceContext = v } }
func WithMaxSupertypeDepth(n int) Option {
	return func(o *Options) { o.MaxSupertypeDepth = n }
}
func WithEmbeddedSupertypes(v bool) Option {
	return func(o *Options) { o.EmbeddedSupertypes = v }
}
func WithMissCacheTTL(d time.Duration) Option { return func(o *Options) { o.MissCacheTTL = d } }

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.logger = l } }

// WithTracer sets the tracer used for one span per top-level call.
func WithTracer(t trace.Tracer) Option { return func(o *Options) { o.tracer = t } }

// WithNarrower replaces ProxyNarrower.
func WithNarrower(n Narrower) Option { return func(o *Options) { o.narrower = n } }

// WithConstructor registers how a T is created when a mutating mapping is asked
// to produce a new instance. Without one, new(T) is used.
func WithConstructor[T any](fn func() (*T, error)) Option {
	return func(o *Options) {
		if o.constructors == nil {
			o.constructors = make(map[reflect.Type]func() (any, error))
		}
		o.constructors[reflect.TypeFor[T]()] = func() (any, error) { return fn() }
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, f := range opts {
		if f != nil {
			f(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("")
	}
	if o.narrower == nil {
		o.narrower = ProxyNarrower
	}
	return o
}
