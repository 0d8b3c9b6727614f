package mapping

import (
	"iter"
	"reflect"
	"sync"

	"github.com/Station-Manager/errors"
)

// DefaultMaxSupertypeDepth bounds every walk up the supertype relation.
const DefaultMaxSupertypeDepth = 32

// UpcastFunc converts a value of a declared subtype into its parent type.
type UpcastFunc func(v any) (any, error)

type link struct {
	parent reflect.Type
	upcast func(reflect.Value) (reflect.Value, error)
}

// Hierarchy is the declared-supertype relation consulted when no mapping is
// registered for a source type. A struct whose first field is an exported
// embedded struct (or pointer to one) has that struct as its parent; further
// parents can be declared explicitly and take precedence over embedding.
type Hierarchy struct {
	mu        sync.RWMutex
	declared  map[reflect.Type]link
	embedded  sync.Map // map[reflect.Type]*link, nil when the type embeds nothing usable
	embedding bool
	maxDepth  int
	onDeclare func()
}

// NewHierarchy returns a Hierarchy. maxDepth <= 0 selects DefaultMaxSupertypeDepth.
func NewHierarchy(maxDepth int, embedding bool) *Hierarchy {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxSupertypeDepth
	}
	return &Hierarchy{declared: make(map[reflect.Type]link), embedding: embedding, maxDepth: maxDepth}
}

// Parent returns the parent of t.
func (h *Hierarchy) Parent(t reflect.Type) (reflect.Type, bool) {
	l, ok := h.parentLink(indirect(t))
	if !ok {
		return nil, false
	}
	return l.parent, true
}

// Ancestors yields the ancestors of t, nearest first. The walk stops at a type
// without a parent, after maxDepth steps, or when a type repeats.
func (h *Hierarchy) Ancestors(t reflect.Type) iter.Seq[reflect.Type] {
	return func(yield func(reflect.Type) bool) {
		cur := indirect(t)
		seen := map[reflect.Type]struct{}{cur: {}}
		for i := 0; i < h.maxDepth; i++ {
			l, ok := h.parentLink(cur)
			if !ok {
				return
			}
			if _, dup := seen[l.parent]; dup {
				return
			}
			seen[l.parent] = struct{}{}
			if !yield(l.parent) {
				return
			}
			cur = l.parent
		}
	}
}

// Declare makes parent the supertype of sub. upcast converts a sub value into a
// parent value; it may be nil when parent is an interface implemented by sub (or
// *sub), or when sub converts to parent. Declarations forming a cycle are rejected.
func (h *Hierarchy) Declare(sub, parent reflect.Type, upcast UpcastFunc) error {
	if err := h.declare(sub, parent, upcast); err != nil {
		return err
	}
	if h.onDeclare != nil {
		h.onDeclare()
	}
	return nil
}

func (h *Hierarchy) declare(sub, parent reflect.Type, upcast UpcastFunc) error {
	const op errors.Op = "mapping.Hierarchy.Declare"
	sub, parent = indirect(sub), indirect(parent)
	if sub == nil || parent == nil {
		return errors.New(op).Msg("sub and parent types must not be nil")
	}
	if sub == parent {
		return errors.New(op).Errorf("%s cannot be its own supertype", sub)
	}
	var up func(reflect.Value) (reflect.Value, error)
	switch {
	case upcast != nil:
		up = customUpcast(sub, parent, upcast)
	case parent.Kind() == reflect.Interface && (sub.Implements(parent) || reflect.PointerTo(sub).Implements(parent)):
		up = func(v reflect.Value) (reflect.Value, error) { return v, nil }
	case parent.Kind() != reflect.Interface && sub.ConvertibleTo(parent):
		up = convertUpcast(parent)
	default:
		return errors.New(op).Errorf("%s is neither assignable nor convertible to %s; an upcast function is required", sub, parent)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.declared[sub]; ok {
		return errors.New(op).Errorf("%s already declares %s as its supertype", sub, prev.parent)
	}
	cur := parent
	for i := 0; i < h.maxDepth; i++ {
		if cur == sub {
			return errors.New(op).Errorf("declaring %s as supertype of %s creates a cycle", parent, sub)
		}
		l, ok := h.parentLinkLocked(cur)
		if !ok {
			break
		}
		cur = l.parent
	}
	h.declared[sub] = link{parent: parent, upcast: up}
	return nil
}

// lift walks v up the relation until it has type to.
func (h *Hierarchy) lift(v reflect.Value, to reflect.Type) (reflect.Value, error) {
	const op errors.Op = "mapping.Hierarchy.lift"
	cur := indirect(v.Type())
	for i := 0; cur != to; i++ {
		if i >= h.maxDepth {
			return reflect.Value{}, errors.New(op).Errorf("%s is more than %d levels below %s", v.Type(), h.maxDepth, to)
		}
		l, ok := h.parentLink(cur)
		if !ok {
			return reflect.Value{}, errors.New(op).Errorf("%s is not a subtype of %s", v.Type(), to)
		}
		next, err := l.upcast(v)
		if err != nil {
			return reflect.Value{}, errors.New(op).Err(err)
		}
		v, cur = next, l.parent
	}
	return v, nil
}

func (h *Hierarchy) parentLink(t reflect.Type) (link, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.parentLinkLocked(t)
}

func (h *Hierarchy) parentLinkLocked(t reflect.Type) (link, bool) {
	if t == nil {
		return link{}, false
	}
	if l, ok := h.declared[t]; ok {
		return l, true
	}
	if !h.embedding {
		return link{}, false
	}
	if cached, ok := h.embedded.Load(t); ok {
		if l := cached.(*link); l != nil {
			return *l, true
		}
		return link{}, false
	}
	l := embeddedParent(t)
	actual, _ := h.embedded.LoadOrStore(t, l)
	if l = actual.(*link); l != nil {
		return *l, true
	}
	return link{}, false
}

func embeddedParent(t reflect.Type) *link {
	if t.Kind() != reflect.Struct || t.NumField() == 0 {
		return nil
	}
	f := t.Field(0)
	if !f.Anonymous || !f.IsExported() {
		return nil
	}
	ft := indirect(f.Type)
	if ft.Kind() != reflect.Struct {
		return nil
	}
	return &link{parent: ft, upcast: embeddedUpcast}
}

func embeddedUpcast(v reflect.Value) (reflect.Value, error) {
	const op errors.Op = "mapping.embeddedUpcast"
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, errors.New(op).Errorf("nil %s", v.Type())
		}
		v = v.Elem()
	}
	f := v.Field(0)
	if f.Kind() == reflect.Ptr {
		if f.IsNil() {
			return reflect.Value{}, errors.New(op).Errorf("embedded %s of %s is nil", f.Type(), v.Type())
		}
		return f, nil
	}
	if f.CanAddr() {
		return f.Addr(), nil
	}
	return f, nil
}

func convertUpcast(parent reflect.Type) func(reflect.Value) (reflect.Value, error) {
	return func(v reflect.Value) (reflect.Value, error) {
		if v.Kind() == reflect.Ptr && v.Type() != parent {
			if v.IsNil() {
				return reflect.Value{}, errors.New("mapping.convertUpcast").Errorf("nil %s", v.Type())
			}
			v = v.Elem()
		}
		return v.Convert(parent), nil
	}
}

func customUpcast(sub, parent reflect.Type, fn UpcastFunc) func(reflect.Value) (reflect.Value, error) {
	const op errors.Op = "mapping.customUpcast"
	return func(v reflect.Value) (reflect.Value, error) {
		out, err := fn(v.Interface())
		if err != nil {
			return reflect.Value{}, errors.New(op).Err(err)
		}
		if out == nil {
			return reflect.Value{}, errors.New(op).Errorf("upcast from %s returned nil", sub)
		}
		rv := reflect.ValueOf(out)
		if indirect(rv.Type()) != parent && !rv.Type().AssignableTo(parent) {
			return reflect.Value{}, errors.New(op).Errorf("upcast from %s returned %s, expected %s", sub, rv.Type(), parent)
		}
		return rv, nil
	}
}
