package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsKeyOrderIndependent(t *testing.T) {
	a := map[string]any{"churchName": "Grace", "teamName": "Warriors", "count": 11}
	b := map[string]any{"teamName": "Warriors", "count": 11, "churchName": "Grace"}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashDiffersOnValueChange(t *testing.T) {
	a := map[string]any{"teamName": "Warriors"}
	b := map[string]any{"teamName": "Raiders"}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestHashIsDeterministic(t *testing.T) {
	v := struct {
		Name    string
		Players []string
	}{Name: "Warriors", Players: []string{"A", "B", "C"}}

	h1, err := Hash(v)
	require.NoError(t, err)
	h2, err := Hash(v)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex-encoded SHA-256
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(m))
}

func TestUnmarshalJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	out, err := UnmarshalJSON[payload]([]byte(`{"name":"Warriors"}`))
	require.NoError(t, err)
	assert.Equal(t, "Warriors", out.Name)

	_, err = UnmarshalJSON[payload]([]byte(`not json`))
	assert.Error(t, err)
}
