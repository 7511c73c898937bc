package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	state := map[string]map[string]any{
		"counter": {"count": 3},
		"todos":   {"items": []any{map[string]any{"title": "a", "done": false}}},
	}

	data, err := Encode(state)
	require.NoError(t, err)

	env, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, env.Version)
	assert.False(t, env.SavedAt.IsZero())
	assert.Equal(t, float64(3), env.Stores["counter"]["count"])

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestEncodeNilState(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"invalid json", `{"version":`, ErrSnapshotDecode},
		{"missing version", `{"stores":{}}`, ErrSnapshotDecode},
		{"newer version", `{"version":99,"stores":{}}`, ErrSnapshotVersion},
		{"wrong shape", `{"version":1,"stores":[]}`, ErrSnapshotDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtract(t *testing.T) {
	data := []byte(`{"version":1,"stores":{"counter":{"count":3},"a.b":{"x":true},"bad":5}}`)

	state, found, err := Extract(data, "counter")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]any{"count": float64(3)}, state)

	state, found, err = Extract(data, "a.b")
	require.NoError(t, err)
	assert.True(t, found, "ids with path characters are escaped")
	assert.Equal(t, true, state["x"])

	_, found, err = Extract(data, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = Extract(data, "bad")
	assert.ErrorIs(t, err, ErrSnapshotDecode)

	_, _, err = Extract([]byte(`nope`), "counter")
	assert.ErrorIs(t, err, ErrSnapshotDecode)

	_, _, err = Extract([]byte(`{"version":7,"stores":{}}`), "counter")
	assert.ErrorIs(t, err, ErrSnapshotVersion)
}

func TestExtractField(t *testing.T) {
	data := []byte(`{"version":1,"stores":{"todos":{"items":[{"title":"write"},{"title":"ship"}]}}}`)

	res, err := ExtractField(data, "todos", "items.1.title")
	require.NoError(t, err)
	assert.Equal(t, "ship", res.String())

	res, err = ExtractField(data, "todos", "items.#")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Int())

	res, err = ExtractField(data, "todos", "")
	require.NoError(t, err)
	assert.True(t, res.IsObject())
}
