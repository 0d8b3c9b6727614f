package mapping

import (
	"iter"
	"reflect"

	"github.com/Station-Manager/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// HintReuseMapping, when present in the Context, makes bulk operations resolve
// the mapping once from the first non-nil element and reuse it for the rest.
// Only use it for homogeneous collections.
const HintReuseMapping = "mapping.hint.reuse"

// bulk carries the state shared by the elements of one collection.
type bulk struct {
	m      *Mapper
	target reflect.Type
	co     callOptions
	entry  *Entry
	reuse  bool
}

func (m *Mapper) newBulk(target reflect.Type, opts []CallOption) *bulk {
	co := m.callOptions(opts)
	return &bulk{m: m, target: indirect(target), co: co, reuse: co.ctx.ContainsKey(HintReuseMapping)}
}

// enter records source on the Context and returns a func restoring the
// previous source and index.
func (b *bulk) enter(source any) func() {
	ctx := b.co.ctx
	if ctx == nil {
		return func() {}
	}
	prevSrc, prevPos := ctx.source, ctx.pos
	ctx.source = source
	return func() { ctx.source, ctx.pos = prevSrc, prevPos }
}

func (b *bulk) at(i int) {
	if b.co.ctx != nil {
		b.co.ctx.SetSourceIndex(i)
	}
}

// one maps a single element. Nil elements map to nil.
func (b *bulk) one(src any) (any, error) {
	if isNil(src) {
		return nil, nil
	}
	if !b.reuse {
		return b.m.mapOne(src, nil, b.target, b.co)
	}
	if b.entry == nil {
		e, err := b.m.registry.Load(NewKey(b.m.narrow(src), b.target, b.co.name))
		if err != nil {
			b.m.logger.Debug("bulk mapping failed", zap.Stringer("target", b.target), zap.Error(err))
			return nil, err
		}
		b.entry = e
	}
	out, err := b.m.dispatcher.Invoke(b.entry, src, nil, b.co.ctx)
	if err != nil {
		b.m.logger.Debug("bulk mapping failed", zap.Stringer("key", b.entry.key), zap.Int("index", b.co.ctx.SourceIndex()), zap.Error(err))
	}
	return out, err
}

func (b *bulk) run(name string, size int, fn func() error) error {
	_, err := b.m.traced(b.co.ctx, name, func() (any, error) {
		return nil, fn()
	}, append(spanAttrs(b.target, b.co.name), attribute.Int("mapping.size", size))...)
	return err
}

// MapSlice maps every element of src to a T, preserving order.
func MapSlice[T, S any](m *Mapper, src []S, opts ...CallOption) ([]T, error) {
	return AppendSlice(m, make([]T, 0, len(src)), src, opts...)
}

// AppendSlice maps every element of src and appends the results to dst.
func AppendSlice[T, S any](m *Mapper, dst []T, src []S, opts ...CallOption) ([]T, error) {
	b := m.newBulk(reflect.TypeFor[T](), opts)
	err := b.run("mapping.AppendSlice", len(src), func() error {
		defer b.enter(src)()
		for i, s := range src {
			b.at(i)
			t, err := mapElem[T](b, s)
			if err != nil {
				return err
			}
			dst = append(dst, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// MapToMap maps every element of src and stores the result in dst keyed by the
// source element.
func MapToMap[T any, S comparable](m *Mapper, dst map[S]T, src []S, opts ...CallOption) (map[S]T, error) {
	if dst == nil {
		return nil, ErrNilTarget
	}
	b := m.newBulk(reflect.TypeFor[T](), opts)
	err := b.run("mapping.MapToMap", len(src), func() error {
		defer b.enter(src)()
		for i, s := range src {
			b.at(i)
			t, err := mapElem[T](b, s)
			if err != nil {
				return err
			}
			dst[s] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// MapSet maps every element of src into a set of T.
func MapSet[T comparable, S any](m *Mapper, src []S, opts ...CallOption) (map[T]struct{}, error) {
	set := make(map[T]struct{}, len(src))
	b := m.newBulk(reflect.TypeFor[T](), opts)
	err := b.run("mapping.MapSet", len(src), func() error {
		defer b.enter(src)()
		for i, s := range src {
			b.at(i)
			t, err := mapElem[T](b, s)
			if err != nil {
				return err
			}
			set[t] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// MapSeq maps every value yielded by seq, preserving order.
func MapSeq[T, S any](m *Mapper, seq iter.Seq[S], opts ...CallOption) ([]T, error) {
	if seq == nil {
		return nil, ErrNilSource
	}
	var out []T
	b := m.newBulk(reflect.TypeFor[T](), opts)
	err := b.run("mapping.MapSeq", -1, func() error {
		defer b.enter(seq)()
		i := 0
		for s := range seq {
			b.at(i)
			t, err := mapElem[T](b, s)
			if err != nil {
				return err
			}
			out = append(out, t)
			i++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func mapElem[T, S any](b *bulk, s S) (T, error) {
	v, err := b.one(s)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](v)
}

// MapEach maps a slice or array held in src. Arrays produce [N]target and
// slices []target; target may be a pointer type. A nil src yields nil.
func (m *Mapper) MapEach(src any, target reflect.Type, opts ...CallOption) (any, error) {
	const op errors.Op = "mapping.Mapper.MapEach"
	if target == nil {
		return nil, ErrNilTarget
	}
	if src == nil {
		return nil, nil
	}
	v := reflect.ValueOf(src)
	var out reflect.Value
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		out = reflect.MakeSlice(reflect.SliceOf(target), v.Len(), v.Len())
	case reflect.Array:
		out = reflect.New(reflect.ArrayOf(v.Len(), target)).Elem()
	default:
		return nil, errors.New(op).Errorf("%T is neither a slice nor an array", src)
	}

	b := m.newBulk(target, opts)
	err := b.run("mapping.MapEach", v.Len(), func() error {
		defer b.enter(src)()
		for i := 0; i < v.Len(); i++ {
			b.at(i)
			r, err := b.one(v.Index(i).Interface())
			if err != nil {
				return err
			}
			if r == nil {
				continue
			}
			c, ok := coerce(reflect.ValueOf(r), target)
			if !ok {
				return errors.New(op).Errorf("mapping produced %T, not %s", r, target)
			}
			out.Index(i).Set(c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}
