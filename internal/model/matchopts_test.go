package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPairsKeepOrder(t *testing.T) {
	pairs := MatchPairs{
		{Left: "zulu", Right: "1"},
		{Left: "alpha", Right: "2"},
		{Left: "mike", Right: "3"},
	}

	data, err := json.Marshal(pairs)
	require.NoError(t, err)
	assert.Equal(t, `{"zulu":"1","alpha":"2","mike":"3"}`, string(data))

	var decoded MatchPairs
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, pairs, decoded)
}

func TestMatchPairsRejectNonObject(t *testing.T) {
	var decoded MatchPairs
	assert.Error(t, json.Unmarshal([]byte(`["a","b"]`), &decoded))
}

func TestMatchOptionsRoundTrip(t *testing.T) {
	external := json.RawMessage(`{"left":["tcp","http","smtp"],"right":["transport","web","mail"]}`)

	internal, err := MatchOptionsToInternal(external)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tcp":"transport","http":"web","smtp":"mail"}`, string(internal))

	// Round-tripping restores the exact list order.
	back, err := MatchOptionsToExternal(internal)
	require.NoError(t, err)

	var opts MatchOptions
	require.NoError(t, json.Unmarshal(back, &opts))
	assert.Equal(t, []string{"tcp", "http", "smtp"}, opts.Left)
	assert.Equal(t, []string{"transport", "web", "mail"}, opts.Right)
}

func TestMatchOptionsPassThrough(t *testing.T) {
	internal := json.RawMessage(`{"a":"1","b":"2"}`)
	out, err := MatchOptionsToInternal(internal)
	require.NoError(t, err)
	assert.Equal(t, internal, out)

	external := json.RawMessage(`{"left":["a"],"right":["1"]}`)
	out, err = MatchOptionsToExternal(external)
	require.NoError(t, err)
	assert.Equal(t, external, out)
}

func TestMatchOptionsUnevenLists(t *testing.T) {
	external := json.RawMessage(`{"left":["a","b"],"right":["1"]}`)

	internal, err := MatchOptionsToInternal(external)
	require.NoError(t, err)

	var pairs MatchPairs
	require.NoError(t, json.Unmarshal(internal, &pairs))
	require.Len(t, pairs, 2)
	assert.Equal(t, MatchPair{Left: "a", Right: "1"}, pairs[0])
	assert.Equal(t, MatchPair{Left: "b", Right: ""}, pairs[1])
}
