package mapping

// Definition names a mapping function. Func is a Func or a plain Go func in one
// of the four accepted shapes.
type Definition struct {
	Name string
	Func any
}

// Provider is a source of mapping definitions, typically one per pair of
// packages being mapped between.
type Provider interface {
	Mappings() []Definition
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() []Definition

func (f ProviderFunc) Mappings() []Definition { return f() }
