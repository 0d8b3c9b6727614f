package mapping

// Shape classifies a mapping function. It is decided once, at registration.
type Shape int

const (
	_ Shape = iota // zero value is not a valid shape

	// MutatesTarget is func(S, *T) [error].
	MutatesTarget
	// MutatesTargetWithContext is func(S, *T, *Context) [error].
	MutatesTargetWithContext
	// ReturnsTarget is func(S) T or func(S) (T, error).
	ReturnsTarget
	// ReturnsTargetWithContext is func(S, *Context) T or func(S, *Context) (T, error).
	ReturnsTargetWithContext
)

// RequiresContext reports whether the function takes a *Context as its last parameter.
func (s Shape) RequiresContext() bool {
	return s == MutatesTargetWithContext || s == ReturnsTargetWithContext
}

// ReturnsNewInstance reports whether the function produces the target instead of mutating one.
func (s Shape) ReturnsNewInstance() bool {
	return s == ReturnsTarget || s == ReturnsTargetWithContext
}

func (s Shape) String() string {
	switch s {
	case MutatesTarget:
		return "MutatesTarget"
	case MutatesTargetWithContext:
		return "MutatesTargetWithContext"
	case ReturnsTarget:
		return "ReturnsTarget"
	case ReturnsTargetWithContext:
		return "ReturnsTargetWithContext"
	default:
		return "Shape(invalid)"
	}
}
