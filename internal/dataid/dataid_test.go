package dataid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDomain enumerates values for visit and filter and accepts anything
// for ccd, mirroring a small test camera.
type fakeDomain struct{}

func (fakeDomain) HasKey(key string) bool {
	switch key {
	case "visit", "filter", "ccd":
		return true
	}
	return false
}

func (fakeDomain) Values(key string) ([]string, bool) {
	switch key {
	case "visit":
		return []string{"1", "2", "3"}, true
	case "filter":
		return []string{"g", "r"}, true
	}
	return nil, false
}

func (fakeDomain) Keys() []string { return []string{"visit", "filter", "ccd"} }

func pairs(ids []Identifier, keys ...string) [][]string {
	out := make([][]string, len(ids))
	for i, id := range ids {
		row := make([]string, len(keys))
		for j, k := range keys {
			row[j] = id.Values[k]
		}
		out[i] = row
	}
	return out
}

func TestExpand(t *testing.T) {
	dom := fakeDomain{}

	t.Run("clause without alternatives yields one identifier", func(t *testing.T) {
		ids, err := Expand([][]string{{"visit=1", "filter=g"}}, dom)
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, []string{"visit", "filter"}, ids[0].Keys)
		assert.Equal(t, map[string]string{"visit": "1", "filter": "g"}, ids[0].Values)
	})

	t.Run("cross product preserves key and value order", func(t *testing.T) {
		ids, err := Expand([][]string{{"filter=g^r", "visit=1^2^3"}}, dom)
		require.NoError(t, err)
		require.Len(t, ids, 6)
		assert.Equal(t, [][]string{
			{"g", "1"}, {"g", "2"}, {"g", "3"},
			{"r", "1"}, {"r", "2"}, {"r", "3"},
		}, pairs(ids, "filter", "visit"))
	})

	t.Run("clauses concatenate and never cross-multiply", func(t *testing.T) {
		ids, err := Expand([][]string{
			{"visit=1", "filter=g"},
			{"visit=3", "filter=r"},
		}, dom)
		require.NoError(t, err)
		require.Len(t, ids, 2)
		assert.Equal(t, map[string]string{"visit": "1", "filter": "g"}, ids[0].Values)
		assert.Equal(t, map[string]string{"visit": "3", "filter": "r"}, ids[1].Values)
	})

	t.Run("omitted keys stay unconstrained", func(t *testing.T) {
		ids, err := Expand([][]string{{"visit=2"}}, dom)
		require.NoError(t, err)
		require.Len(t, ids, 1)
		_, ok := ids[0].Get("filter")
		assert.False(t, ok)
	})

	t.Run("empty clause list yields empty sequence", func(t *testing.T) {
		ids, err := Expand(nil, dom)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("repeated key within a clause is a syntax error", func(t *testing.T) {
		_, err := Expand([][]string{{"visit=1", "visit=2"}}, dom)
		var synErr *SyntaxError
		require.ErrorAs(t, err, &synErr)
		assert.Equal(t, "visit=2", synErr.Token)
	})

	t.Run("token without equals sign is a syntax error", func(t *testing.T) {
		_, err := Expand([][]string{{"visit"}}, dom)
		var synErr *SyntaxError
		require.ErrorAs(t, err, &synErr)
	})

	t.Run("unknown key fails with KeyError", func(t *testing.T) {
		_, err := Expand([][]string{{"exposure=5"}}, dom)
		var keyErr *KeyError
		require.ErrorAs(t, err, &keyErr)
		assert.Equal(t, "exposure", keyErr.Key)
		assert.Contains(t, keyErr.Error(), "visit, filter, ccd")
	})

	t.Run("value outside an enumerated domain fails with ValueError", func(t *testing.T) {
		_, err := Expand([][]string{{"filter=z"}}, dom)
		var valErr *ValueError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "filter", valErr.Key)
		assert.Equal(t, "z", valErr.Value)
	})

	t.Run("unenumerated keys accept arbitrary values", func(t *testing.T) {
		ids, err := Expand([][]string{{"ccd=0^1", "visit=1"}}, dom)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	})
}

func TestIdentifierString(t *testing.T) {
	id := Identifier{
		Keys:   []string{"visit", "filter"},
		Values: map[string]string{"visit": "1", "filter": "g"},
	}
	assert.Equal(t, "visit=1 filter=g", id.String())
}
