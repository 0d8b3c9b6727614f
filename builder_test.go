package mapping

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	m, err := NewBuilder().
		WithOptions(WithEnforceContext(false)).
		Add("", sourceToTarget).
		AddProvider(ProviderFunc(func() []Definition {
			return []Definition{{Name: "immutable", Func: sourceToImmutable}}
		})).
		AddSupertype(Robot{}, (*Named)(nil), nil).
		Add("", func(n Named, dto *AnimalDTO) { dto.Label = n.GetName() }).
		Build()
	require.NoError(t, err)

	assert.False(t, m.Options().EnforceContext)
	assert.Equal(t, 3, m.Registry().Len())

	out, err := MapTo[Target](m, Source{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "T#1", out.Name)

	imm, err := MapTo[ImmutableTarget](m, Source{ID: 2}, WithMappingName("immutable"))
	require.NoError(t, err)
	assert.Equal(t, "T#2", imm.Name())

	dto, err := MapTo[AnimalDTO](m, Robot{Serial: "x"})
	require.NoError(t, err)
	assert.Equal(t, "robot-x", dto.Label)
}

func TestBuilder_BuildFailsAtomically(t *testing.T) {
	_, err := NewBuilder().
		Add("", sourceToTarget).
		Add("", sourceToTarget).
		Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateDefinition))

	_, err = NewBuilder().Add("", 3).Build()
	assert.True(t, errors.Is(err, ErrIllegalDefinition))

	_, err = NewBuilder().AddSupertype(Source{}, Target{}, nil).Build()
	assert.Error(t, err, "Source does not convert to Target")
}

func TestBuilder_MustBuild(t *testing.T) {
	assert.NotPanics(t, func() {
		m := NewBuilder().Add("", sourceToTarget).MustBuild()
		assert.True(t, m.AllowsToMap(reflect.TypeFor[Source](), reflect.TypeFor[Target](), ""))
	})
	assert.Panics(t, func() { NewBuilder().Add("", nil).MustBuild() })
}
