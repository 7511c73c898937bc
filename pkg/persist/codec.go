package persist

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CurrentVersion is the snapshot format version written by Encode.
// Increment when making breaking changes to the format.
const CurrentVersion = 1

// Envelope is the serialized form of a registry state tree.
type Envelope struct {
	// Version is the serialization format version.
	Version int `json:"version"`

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time `json:"saved_at"`

	// Stores maps store ids to their plain state.
	Stores map[string]map[string]any `json:"stores"`
}

// Encode wraps state in an envelope stamped with the current version and
// time.
func Encode(state map[string]map[string]any) ([]byte, error) {
	if state == nil {
		state = map[string]map[string]any{}
	}
	env := Envelope{
		Version: CurrentVersion,
		SavedAt: time.Now().UTC(),
		Stores:  state,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses data and checks its version.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errDecode(err)
	}
	if env.Version < 1 {
		return nil, errDecode(fmt.Errorf("missing version"))
	}
	if env.Version > CurrentVersion {
		return nil, errVersion(env.Version)
	}
	if env.Stores == nil {
		env.Stores = map[string]map[string]any{}
	}
	return &env, nil
}

// Decode returns the state tree held by data. Numbers come back as
// float64; stores convert them when the values are hydrated.
func Decode(data []byte) (map[string]map[string]any, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	return env.Stores, nil
}

// Extract reads the state of one store without decoding the whole
// snapshot. found is false when the snapshot has no such store.
func Extract(data []byte, id string) (state map[string]any, found bool, err error) {
	if !gjson.ValidBytes(data) {
		return nil, false, errDecode(fmt.Errorf("invalid JSON"))
	}
	if v := gjson.GetBytes(data, "version"); !v.Exists() || v.Int() < 1 {
		return nil, false, errDecode(fmt.Errorf("missing version"))
	} else if v.Int() > CurrentVersion {
		return nil, false, errVersion(int(v.Int()))
	}

	res := gjson.GetBytes(data, "stores."+escapePath(id))
	if !res.Exists() {
		return nil, false, nil
	}
	if !res.IsObject() {
		return nil, false, errDecode(fmt.Errorf("store %q is not an object", id))
	}
	state, _ = res.Value().(map[string]any)
	return state, true, nil
}

// ExtractField reads a single value by gjson path inside one store, e.g.
// "items.0.title".
func ExtractField(data []byte, id, path string) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errDecode(fmt.Errorf("invalid JSON"))
	}
	full := "stores." + escapePath(id)
	if path != "" {
		full += "." + path
	}
	return gjson.GetBytes(data, full), nil
}

// escapePath escapes the characters gjson treats as path syntax.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
