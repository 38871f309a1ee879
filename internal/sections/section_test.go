package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heroSection() Section {
	return Section{
		ID:   "sec-1",
		Type: TypeHero,
		Data: map[string]any{
			"title": "Spring sale",
			"buttons": []any{
				map[string]any{"label": "Shop", "href": "/shop"},
			},
		},
		Style: map[string]any{"background": map[string]any{"color": "#fff"}},
	}
}

func TestGet(t *testing.T) {
	s := heroSection()

	v, ok := s.Get("data.title")
	require.True(t, ok)
	assert.Equal(t, "Spring sale", v)

	v, ok = s.Get("data.buttons.0.label")
	require.True(t, ok)
	assert.Equal(t, "Shop", v)

	assert.Equal(t, "#fff", s.GetString("style.background.color", ""))
	assert.Equal(t, "center", s.GetString("style.align", "center"))

	for _, path := range []string{"data.buttons.3", "data.title.length", "meta.title", "", "data..title"} {
		_, ok := s.Get(path)
		assert.False(t, ok, path)
	}
}

func TestSetCreatesIntermediates(t *testing.T) {
	s := Section{}
	require.NoError(t, s.Set("style.typography.heading.size", float64(32)))
	assert.Equal(t, float64(32), s.Style["typography"].(map[string]any)["heading"].(map[string]any)["size"])

	require.NoError(t, s.Set("data", map[string]any{"title": "Hi"}))
	assert.Equal(t, "Hi", s.GetString("data.title", ""))
}

func TestSetArrayIndices(t *testing.T) {
	s := heroSection()

	require.NoError(t, s.Set("data.buttons.0.label", "Browse"))
	require.NoError(t, s.Set("data.buttons.1", map[string]any{"label": "Contact"}))
	assert.Equal(t, "Browse", s.GetString("data.buttons.0.label", ""))
	assert.Equal(t, "Contact", s.GetString("data.buttons.1.label", ""))

	err := s.Set("data.buttons.5.label", "x")
	assert.ErrorIs(t, err, ErrInvalidPath)
	err = s.Set("data.title.main", "x")
	assert.ErrorIs(t, err, ErrInvalidPath)
	err = s.Set("style", "red")
	assert.ErrorIs(t, err, ErrInvalidPath)
	err = s.Set("layout.width", 3)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestDelete(t *testing.T) {
	s := heroSection()
	require.NoError(t, s.Set("data.buttons.1", map[string]any{"label": "Contact"}))

	require.NoError(t, s.Delete("data.buttons.0"))
	assert.Equal(t, "Contact", s.GetString("data.buttons.0.label", ""))
	_, ok := s.Get("data.buttons.1")
	assert.False(t, ok)

	require.NoError(t, s.Delete("style.background.color"))
	_, ok = s.Get("style.background.color")
	assert.False(t, ok)

	require.NoError(t, s.Delete("data.missing.deep"))
	require.NoError(t, s.Delete("data.buttons.9"))
	assert.ErrorIs(t, s.Delete("data.buttons.first"), ErrInvalidPath)

	require.NoError(t, s.Delete("style"))
	assert.Empty(t, s.Style)
}

func TestApplyIsAllOrNothing(t *testing.T) {
	s := heroSection()

	err := s.Apply([]Op{
		{Op: OpSet, Path: "data.title", Value: "Summer sale"},
		{Op: OpSet, Path: "data.title.main", Value: "broken"},
	})
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.Equal(t, "Spring sale", s.GetString("data.title", ""))

	require.NoError(t, s.Apply([]Op{
		{Op: OpSet, Path: "data.title", Value: "Summer sale"},
		{Op: OpDelete, Path: "data.buttons"},
		{Op: OpSet, Path: "style.background.color", Value: "#000"},
	}))
	assert.Equal(t, "Summer sale", s.GetString("data.title", ""))
	assert.Equal(t, "#000", s.GetString("style.background.color", ""))
	_, ok := s.Get("data.buttons")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Apply([]Op{{Op: "move", Path: "data.title"}}), ErrValidation)
}

func TestCloneIsDeep(t *testing.T) {
	s := heroSection()
	c := s.Clone()
	require.NoError(t, c.Set("data.buttons.0.label", "Changed"))
	assert.Equal(t, "Shop", s.GetString("data.buttons.0.label", ""))

	empty := Section{}.Clone()
	assert.NotNil(t, empty.Data)
	assert.NotNil(t, empty.Style)
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeGallery.Valid())
	assert.False(t, Type("carousel").Valid())
}
