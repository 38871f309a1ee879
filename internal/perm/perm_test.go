package perm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetQuantifiers(t *testing.T) {
	s := NewSet("order_view", " ", "pos_view")

	assert.True(t, s.Satisfies(HasOne("order_view")))
	assert.False(t, s.Satisfies(HasOne("finance_reports")))
	assert.True(t, s.Satisfies(HasAny("finance_reports", "pos_view")))
	assert.False(t, s.Satisfies(HasAll("order_view", "finance_reports")))
	assert.True(t, s.Satisfies(HasAll("order_view", "pos_view")))
	assert.Len(t, s, 2)
}

func TestEmptyKeyLists(t *testing.T) {
	s := NewSet("order_view")

	assert.False(t, s.Satisfies(Query{Kind: One}))
	assert.False(t, s.Satisfies(HasAny()))
	assert.True(t, s.Satisfies(HasAll()))
}

func TestKindJSON(t *testing.T) {
	var q Query
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"all","keys":["a"]}`), &q))
	assert.Equal(t, All, q.Kind)

	out, err := json.Marshal(HasAny("x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"any","keys":["x"]}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"some"}`), &q))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, Normalize([]string{" b", "a", "b", ""}))
	assert.Equal(t, []string{"a", "b"}, NewSet("b", "a").Keys())
}
