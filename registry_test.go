package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	k, err := r.Register("", sourceToTarget)
	require.NoError(t, err)
	assert.Equal(t, KeyFor[Source, Target](""), k)
	assert.Equal(t, 1, r.Len())

	e, ok := r.Resolve(k)
	require.True(t, ok)
	assert.Equal(t, k, e.Key())
	assert.Equal(t, MutatesTarget, e.Shape())
	assert.False(t, e.ReturnsNewInstance())
	assert.False(t, e.RequiresContext())
	assert.Contains(t, e.Origin(), "sourceToTarget")
}

func TestRegistry_PointerLevelsShareKey(t *testing.T) {
	r := NewRegistry()
	k, err := r.Register("", func(src *Source, dst *Target) {})
	require.NoError(t, err)

	assert.Equal(t, KeyFor[Source, Target](""), k)
	assert.True(t, r.AllowsToMap(reflect.TypeFor[Source](), reflect.TypeFor[*Target](), ""))
}

func TestRegistry_DuplicateDefinition(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("", sourceToTarget)
	require.NoError(t, err)

	_, err = r.Register("", func(src Source, dst *Target) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateDefinition))

	var dup *DuplicateDefinitionError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, KeyFor[Source, Target](""), dup.Key)
	assert.Contains(t, dup.Previous, "sourceToTarget")
	assert.NotEqual(t, dup.Previous, dup.Duplicate)
	assert.Equal(t, 1, r.Len())

	// first registration wins
	e, ok := r.Resolve(KeyFor[Source, Target](""))
	require.True(t, ok)
	assert.Contains(t, e.Origin(), "sourceToTarget")

	_, err = r.Register("other", func(src Source, dst *Target) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_IllegalDefinitions(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{name: "nil", fn: nil},
		{name: "typed nil func", fn: (func(Source, *Target))(nil)},
		{name: "not a function", fn: 42},
		{name: "no parameters", fn: func() {}},
		{name: "no target", fn: func(Source) {}},
		{name: "non-pointer target", fn: func(Source, Target) {}},
		{name: "pointer to pointer target", fn: func(Source, **Target) {}},
		{name: "variadic", fn: func(Source, ...*Target) {}},
		{name: "context first", fn: func(*Context, Source, *Target) {}},
		{name: "too many parameters", fn: func(Source, *Target, *Target) {}},
		{name: "producer with extra parameter", fn: func(Source, int) Target { return Target{} }},
		{name: "second result not error", fn: func(Source) (Target, int) { return Target{}, 0 }},
		{name: "error first", fn: func(Source) (error, Target) { return nil, Target{} }},
		{name: "three results", fn: func(Source) (Target, Target, error) { return Target{}, Target{}, nil }},
		{name: "unclassified Func", fn: Func{}},
		{name: "nil typed constructor", fn: Mutator[Source, Target](nil)},
		{name: "typed constructor with pointer target", fn: Mutator(func(Source, **Target) error { return nil })},
		{name: "typed context constructor with pointer target", fn: MutatorWithContext(func(Source, **Target, *Context) error { return nil })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.Register("", tt.fn)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIllegalDefinition))
			var ill *IllegalDefinitionError
			require.True(t, errors.As(err, &ill))
			assert.NotEmpty(t, ill.Origin)
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestRegistry_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		fn    any
		shape Shape
	}{
		{name: "mutator", fn: func(Source, *Target) {}, shape: MutatesTarget},
		{name: "mutator with error", fn: func(Source, *Target) error { return nil }, shape: MutatesTarget},
		{name: "mutator with context", fn: func(Source, *Target, *Context) {}, shape: MutatesTargetWithContext},
		{name: "producer", fn: func(Source) Target { return Target{} }, shape: ReturnsTarget},
		{name: "producer with error", fn: func(Source) (Target, error) { return Target{}, nil }, shape: ReturnsTarget},
		{name: "producer with context", fn: func(Source, *Context) (Target, error) { return Target{}, nil }, shape: ReturnsTargetWithContext},
		{name: "typed mutator", fn: Mutator(sourceToTarget), shape: MutatesTarget},
		{name: "typed producer with context", fn: ProducerWithContext(func(Source, *Context) (Target, error) { return Target{}, nil }), shape: ReturnsTargetWithContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			k, err := r.Register("", tt.fn)
			require.NoError(t, err)
			assert.Equal(t, KeyFor[Source, Target](""), k)
			e, ok := r.Resolve(k)
			require.True(t, ok)
			assert.Equal(t, tt.shape, e.Shape())
			assert.Equal(t, tt.shape.RequiresContext(), e.RequiresContext())
			assert.Equal(t, tt.shape.ReturnsNewInstance(), e.ReturnsNewInstance())
		})
	}
}

func TestRegistry_AncestorFallback(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("", animalToDTO)
	require.NoError(t, err)
	base, ok := r.Resolve(animalDTOKey)
	require.True(t, ok)

	got, ok := r.Resolve(dogDTOKey)
	require.True(t, ok)
	assert.Same(t, base, got)
	assert.True(t, r.isDerived(dogDTOKey))

	// two levels up through a pointer embedding
	got, ok = r.Resolve(puppyDTOKey)
	require.True(t, ok)
	assert.Same(t, base, got)

	// derived keys are not direct registrations
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []Key{animalDTOKey}, r.Keys())
}

func TestRegistry_FallbackKeepsTargetAndName(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("short", animalToDTO)
	require.NoError(t, err)

	_, ok := r.Resolve(dogDTOKey)
	assert.False(t, ok)
	_, ok = r.Resolve(KeyFor[Dog, Target]("short"))
	assert.False(t, ok)
	_, ok = r.Resolve(KeyFor[Dog, AnimalDTO]("short"))
	assert.True(t, ok)
}

func TestRegistry_DerivedNeverOverwritesDirect(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("", animalToDTO)
	require.NoError(t, err)

	viaBase, ok := r.Resolve(dogDTOKey)
	require.True(t, ok)
	assert.Equal(t, animalDTOKey, viaBase.Key())

	// registering directly under a derived key is not a duplicate
	_, err = r.Register("", dogToDTO)
	require.NoError(t, err)

	got, ok := r.Resolve(dogDTOKey)
	require.True(t, ok)
	assert.Equal(t, dogDTOKey, got.Key())
	assert.Contains(t, got.Origin(), "dogToDTO")
	assert.False(t, r.isDerived(dogDTOKey))
}

func TestRegistry_StaleDerivedAfterCloserRegistration(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("", animalToDTO)
	require.NoError(t, err)

	got, ok := r.Resolve(puppyDTOKey)
	require.True(t, ok)
	assert.Equal(t, animalDTOKey, got.Key())

	_, err = r.Register("", dogToDTO)
	require.NoError(t, err)

	got, ok = r.Resolve(puppyDTOKey)
	require.True(t, ok)
	assert.Equal(t, dogDTOKey, got.Key())
	assert.True(t, r.isDerived(puppyDTOKey))
}

func TestRegistry_MissIsForgottenOnRegistration(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
	}{
		{name: "miss cache enabled", ttl: time.Minute},
		{name: "miss cache disabled", ttl: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(WithMissCacheTTL(tt.ttl))
			_, ok := r.Resolve(dogDTOKey)
			require.False(t, ok)
			_, ok = r.Resolve(dogDTOKey)
			require.False(t, ok)

			_, err := r.Register("", animalToDTO)
			require.NoError(t, err)

			_, ok = r.Resolve(dogDTOKey)
			assert.True(t, ok)
		})
	}
}

func TestRegistry_Load(t *testing.T) {
	r := NewRegistry()
	_, err := r.Load(KeyFor[Source, Target]("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDefinitionNotFound))
	var nf *DefinitionNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "x", nf.Key.Name)
	assert.Contains(t, err.Error(), "mapping.Source -> mapping.Target ('x')")
}

func TestRegistry_RegisterAllIsAtomic(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterAll([]Definition{
		{Name: "", Func: sourceToTarget},
		{Name: "", Func: animalToDTO},
		{Name: "", Func: func(Source, *Target) {}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateDefinition))
	assert.Equal(t, 0, r.Len())

	_, err = r.RegisterAll([]Definition{
		{Name: "", Func: sourceToTarget},
		{Name: "", Func: "nope"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalDefinition))
	assert.Equal(t, 0, r.Len())

	keys, err := r.RegisterAll([]Definition{
		{Name: "", Func: sourceToTarget},
		{Name: "", Func: animalToDTO},
	})
	require.NoError(t, err)
	assert.Equal(t, []Key{KeyFor[Source, Target](""), animalDTOKey}, keys)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_KeysSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		_, err := r.Register(name, sourceToTarget)
		require.NoError(t, err)
	}
	keys := r.Keys()
	require.Len(t, keys, 3)
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1].String(), keys[i].String())
	}
}

func TestRegistry_DeclareInvalidatesDerived(t *testing.T) {
	type Cat struct {
		Name string
	}
	r := NewRegistry()
	_, err := r.Register("", animalToDTO)
	require.NoError(t, err)

	catKey := KeyFor[Cat, AnimalDTO]("")
	_, ok := r.Resolve(catKey)
	require.False(t, ok)

	err = r.Declare(reflect.TypeFor[Cat](), reflect.TypeFor[Animal](), func(v any) (any, error) {
		return &Animal{Name: v.(*Cat).Name}, nil
	})
	require.NoError(t, err)

	e, ok := r.Resolve(catKey)
	require.True(t, ok)
	assert.Equal(t, animalDTOKey, e.Key())
}

func TestRegistry_ConcurrentResolveAndRegister(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Register("", animalToDTO)
	require.NoError(t, err)

	var start sync.WaitGroup
	start.Add(1)
	readers := runtime.GOMAXPROCS(0) * 3
	var wg sync.WaitGroup
	wg.Add(readers + 1)
	errs := make(chan string, readers)

	// Writer: unrelated registrations force new generations while readers train
	go func() {
		defer wg.Done()
		start.Wait()
		for i := 0; i < 200; i++ {
			if _, err := r.Register(fmt.Sprintf("n%d", i), sourceToTarget); err != nil {
				errs <- fmt.Sprintf("register error: %v", err)
				return
			}
		}
	}()

	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			start.Wait()
			for j := 0; j < 500; j++ {
				for _, k := range []Key{dogDTOKey, puppyDTOKey} {
					e, ok := r.Resolve(k)
					if !ok {
						errs <- fmt.Sprintf("unresolved %s", k)
						return
					}
					if e.Key() != animalDTOKey {
						errs <- fmt.Sprintf("resolved %s to %s", k, e.Key())
						return
					}
				}
			}
		}()
	}

	start.Done()
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatalf("concurrent resolve failed: %s", msg)
	}
	assert.Equal(t, 201, r.Len())
}

func TestRegistry_ResolutionDeterminism(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry()
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		keys := make([]Key, 0, n)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("m%d", i)
			src := rapid.SampledFrom([]any{animalToDTO, dogToDTO}).Draw(rt, "fn")
			k, err := r.Register(name, src)
			if err != nil {
				rt.Fatalf("register %s: %v", name, err)
			}
			keys = append(keys, k)
		}
		probes := rapid.IntRange(1, 50).Draw(rt, "probes")
		first := make(map[Key]*Entry, len(keys))
		for i := 0; i < probes; i++ {
			k := keys[rapid.IntRange(0, len(keys)-1).Draw(rt, "key")]
			sub := k.parent(reflect.TypeFor[Puppy]())
			for _, probe := range []Key{k, sub} {
				e, ok := r.Resolve(probe)
				if !ok {
					rt.Fatalf("unresolved %s", probe)
				}
				if prev, seen := first[probe]; seen && prev != e {
					rt.Fatalf("%s resolved to %s then %s", probe, prev, e)
				}
				first[probe] = e
			}
		}
	})
}
