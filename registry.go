package mapping

import (
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// table is an immutable snapshot of the direct registrations. Every write
// stores a new table with the next generation.
type table struct {
	entries map[Key]*Entry
	gen     uint64
}

// resolution is a self-trained lookup result, valid only for the generation it
// was computed against.
type resolution struct {
	entry *Entry
	gen   uint64
}

type miss struct {
	key Key
	gen uint64
}

// Registry holds mapping definitions and resolves keys, falling back to the
// supertypes of the source type. Successful fallbacks are remembered so that a
// repeated lookup costs one map access. Safe for concurrent use; reads never
// take a lock.
type Registry struct {
	mu        sync.Mutex   // serializes writers
	table     atomic.Value // holds *table
	derived   sync.Map     // map[Key]*resolution
	misses    *gocache.Cache
	hierarchy *Hierarchy
	logger    *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	return newRegistry(buildOptions(opts))
}

func newRegistry(o Options) *Registry {
	r := &Registry{
		hierarchy: NewHierarchy(o.MaxSupertypeDepth, o.EmbeddedSupertypes),
		logger:    o.logger,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if o.MissCacheTTL > 0 {
		r.misses = gocache.New(o.MissCacheTTL, 2*o.MissCacheTTL)
	}
	r.hierarchy.onDeclare = r.invalidate
	r.table.Store(&table{entries: make(map[Key]*Entry)})
	return r
}

func (r *Registry) snapshot() *table { return r.table.Load().(*table) }

// Hierarchy returns the supertype relation consulted by Resolve.
func (r *Registry) Hierarchy() *Hierarchy { return r.hierarchy }

// Register classifies fn and adds it under the key derived from its parameter
// types and name.
func (r *Registry) Register(name string, fn any) (Key, error) {
	f, err := classify(fn)
	if err != nil {
		return Key{}, err
	}
	keys, err := r.add([]pending{{name: name, fn: f}})
	if err != nil {
		return Key{}, err
	}
	return keys[0], nil
}

// RegisterFunc adds a pre-classified Func.
func (r *Registry) RegisterFunc(name string, f Func) (Key, error) {
	return r.Register(name, f)
}

// RegisterAll adds every definition or none of them.
func (r *Registry) RegisterAll(defs []Definition) ([]Key, error) {
	batch := make([]pending, 0, len(defs))
	for _, d := range defs {
		f, err := classify(d.Func)
		if err != nil {
			return nil, err
		}
		batch = append(batch, pending{name: d.Name, fn: f})
	}
	return r.add(batch)
}

type pending struct {
	name string
	fn   Func
}

func (r *Registry) add(batch []pending) ([]Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.snapshot()
	next := make(map[Key]*Entry, len(old.entries)+len(batch))
	maps.Copy(next, old.entries)
	keys := make([]Key, 0, len(batch))
	for _, p := range batch {
		k := p.fn.Key(p.name)
		if prev, ok := next[k]; ok {
			return nil, &DuplicateDefinitionError{Key: k, Previous: prev.fn.origin, Duplicate: p.fn.origin}
		}
		next[k] = &Entry{key: k, fn: p.fn}
		keys = append(keys, k)
	}
	r.table.Store(&table{entries: next, gen: old.gen + 1})
	if r.misses != nil {
		r.misses.Flush()
	}
	for _, k := range keys {
		r.logger.Debug("mapping registered", zap.Stringer("key", k), zap.String("origin", next[k].fn.origin))
	}
	return keys, nil
}

// invalidate moves to a new generation without changing the direct entries.
func (r *Registry) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.snapshot()
	r.table.Store(&table{entries: old.entries, gen: old.gen + 1})
	if r.misses != nil {
		r.misses.Flush()
	}
}

// Declare makes parent a supertype of sub and drops every remembered lookup.
func (r *Registry) Declare(sub, parent reflect.Type, upcast UpcastFunc) error {
	if err := r.hierarchy.Declare(sub, parent, upcast); err != nil {
		return err
	}
	r.logger.Debug("supertype declared", zap.Stringer("sub", indirect(sub)), zap.Stringer("parent", indirect(parent)))
	return nil
}

// Resolve returns the entry registered for k, or for the nearest supertype of
// k.Source with the same target and name.
func (r *Registry) Resolve(k Key) (*Entry, bool) {
	t := r.snapshot()
	if e, ok := t.entries[k]; ok {
		return e, true
	}
	if v, ok := r.derived.Load(k); ok {
		if res := v.(*resolution); res.gen == t.gen {
			return res.entry, true
		}
	}
	if r.misses != nil {
		if v, ok := r.misses.Get(k.id()); ok {
			if m := v.(miss); m.gen == t.gen && m.key == k {
				return nil, false
			}
		}
	}
	if k.Source == nil {
		return nil, false
	}
	for p := range r.hierarchy.Ancestors(k.Source) {
		if e, ok := t.entries[k.parent(p)]; ok {
			r.train(k, &resolution{entry: e, gen: t.gen})
			return e, true
		}
	}
	if r.misses != nil {
		r.misses.Set(k.id(), miss{key: k, gen: t.gen}, gocache.DefaultExpiration)
	}
	return nil, false
}

// train stores res unless a record of the same or a newer generation exists.
// Racing writers for one generation compute the same entry, so either may win.
func (r *Registry) train(k Key, res *resolution) {
	for {
		prev, loaded := r.derived.LoadOrStore(k, res)
		if !loaded {
			r.logger.Debug("mapping derived", zap.Stringer("key", k), zap.Stringer("via", res.entry.key))
			return
		}
		if prev.(*resolution).gen >= res.gen {
			return
		}
		if r.derived.CompareAndSwap(k, prev, res) {
			return
		}
	}
}

// Load is Resolve with a *DefinitionNotFoundError for unknown keys.
func (r *Registry) Load(k Key) (*Entry, error) {
	if e, ok := r.Resolve(k); ok {
		return e, nil
	}
	return nil, &DefinitionNotFoundError{Key: k}
}

// AllowsToMap reports whether a mapping from source to target exists.
func (r *Registry) AllowsToMap(source, target reflect.Type, name string) bool {
	_, ok := r.Resolve(NewKey(source, target, name))
	return ok
}

// Keys returns the directly registered keys ordered by their string form.
func (r *Registry) Keys() []Key {
	keys := slices.Collect(maps.Keys(r.snapshot().entries))
	slices.SortFunc(keys, func(a, b Key) int { return strings.Compare(a.String(), b.String()) })
	return keys
}

// Len returns the number of direct registrations.
func (r *Registry) Len() int { return len(r.snapshot().entries) }

// isDerived reports whether k is currently served from the derived cache.
func (r *Registry) isDerived(k Key) bool {
	v, ok := r.derived.Load(k)
	return ok && v.(*resolution).gen == r.snapshot().gen
}

