package mapping

import "reflect"

// Builder provides a fluent API to construct a Mapper with mappings and
// supertypes pre-registered.
type Builder struct {
	opts       []Option
	defs       []Definition
	providers  []Provider
	supertypes []supertype
}

type supertype struct {
	sub, parent reflect.Type
	upcast      UpcastFunc
}

// NewBuilder creates a new builder.
func NewBuilder() *Builder { return &Builder{} }

// WithOptions appends mapper options to the builder.
func (b *Builder) WithOptions(opts ...Option) *Builder { b.opts = append(b.opts, opts...); return b }

// Add queues a mapping function under name.
func (b *Builder) Add(name string, fn any) *Builder {
	b.defs = append(b.defs, Definition{Name: name, Func: fn})
	return b
}

// AddProvider queues every mapping of p.
func (b *Builder) AddProvider(p Provider) *Builder {
	b.providers = append(b.providers, p)
	return b
}

// AddSupertype queues a supertype declaration. sub and parent may be a
// reflect.Type or an example value.
func (b *Builder) AddSupertype(sub, parent any, upcast UpcastFunc) *Builder {
	b.supertypes = append(b.supertypes, supertype{sub: typeOf(sub), parent: typeOf(parent), upcast: upcast})
	return b
}

// Build constructs a Mapper using a single registry swap for all mappings.
// Nothing is registered if any definition is illegal or duplicated.
func (b *Builder) Build() (*Mapper, error) {
	m := NewWithOptions(b.opts...)
	for _, s := range b.supertypes {
		if err := m.registry.Declare(s.sub, s.parent, s.upcast); err != nil {
			return nil, err
		}
	}
	defs := make([]Definition, 0, len(b.defs))
	defs = append(defs, b.defs...)
	for _, p := range b.providers {
		if p == nil {
			continue
		}
		defs = append(defs, p.Mappings()...)
	}
	if _, err := m.registry.RegisterAll(defs); err != nil {
		return nil, err
	}
	return m, nil
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() *Mapper {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}
