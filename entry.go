package mapping

// Entry is a registered mapping. Entries are immutable once created.
type Entry struct {
	key Key
	fn  Func
}

// Key returns the key the entry was registered under.
func (e *Entry) Key() Key { return e.key }

// Shape returns the shape of the registered function.
func (e *Entry) Shape() Shape { return e.fn.shape }

// Origin describes the registered function.
func (e *Entry) Origin() string { return e.fn.origin }

// RequiresContext reports whether the function takes a *Context.
func (e *Entry) RequiresContext() bool { return e.fn.shape.RequiresContext() }

// ReturnsNewInstance reports whether the function produces its target.
func (e *Entry) ReturnsNewInstance() bool { return e.fn.shape.ReturnsNewInstance() }

func (e *Entry) String() string { return e.key.String() + " via " + e.fn.origin }
