package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeRegistry_Builtins(t *testing.T) {
	r := NewTypeRegistry()

	assert.True(t, r.IsChildOf(TypeLevelScript, TypeActor))
	assert.True(t, r.IsChildOf(TypePrimitiveComponent, TypeComponent))
	assert.False(t, r.IsChildOf(TypeActor, TypeComponent))
	assert.True(t, r.IsAbstract(TypeObject))
	assert.NotContains(t, r.Concrete(), TypeComponent)
	assert.Contains(t, r.Concrete(), TypeActor)
}

func TestTypeRegistry_Register(t *testing.T) {
	r := NewTypeRegistry()

	require.NoError(t, r.Register("Pawn", TypeActor))
	require.NoError(t, r.Register("Character", "Pawn"))
	require.ErrorIs(t, r.Register("Pawn", TypeActor), ErrTypeExists)
	require.ErrorIs(t, r.Register("Ghost", "Missing"), ErrUnknownType)
	require.ErrorIs(t, r.Register("", TypeActor), ErrInvalidType)

	parent, ok := r.Parent("Character")
	require.True(t, ok)
	assert.Equal(t, TypeRef("Pawn"), parent)
	assert.Equal(t, []TypeRef{"Character", "Pawn", TypeActor, TypeObject}, r.Ancestors("Character"))

	types := r.Types()
	assert.Equal(t, TypeRef("Character"), types[len(types)-1])
}

func TestTypeRegistry_Lookup(t *testing.T) {
	r := NewTypeRegistry()

	ref, ok := r.Lookup("Actor")
	assert.True(t, ok)
	assert.Equal(t, TypeActor, ref)

	_, ok = r.Lookup("")
	assert.False(t, ok)
	_, ok = r.Lookup("Removed")
	assert.False(t, ok)
}

func TestTransform(t *testing.T) {
	tr := At(Vector{X: 1, Y: 2, Z: 3})
	assert.Equal(t, IdentityQuat, tr.Rotation)
	assert.Equal(t, Vector{X: 1, Y: 1, Z: 1}, tr.Scale)
	assert.True(t, Vector{}.IsZero())
	assert.False(t, tr.Location.IsZero())
	assert.InDelta(t, 5.0, Vector{X: 3, Y: 4}.Length(), 1e-9)
	assert.Equal(t, Vector{X: 2, Y: 4, Z: 6}, tr.Location.Add(tr.Location).Scale(1))
}
