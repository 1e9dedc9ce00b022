package ai

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare object",
			raw:  `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "fenced with language tag",
			raw:  "Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps!",
			want: `{"a": 1}`,
		},
		{
			name: "fenced without language tag",
			raw:  "```\n[1, 2, 3]\n```",
			want: `[1, 2, 3]`,
		},
		{
			name: "object embedded in prose",
			raw:  `Sure, the mapping is {"ip_address": "IP"} as requested.`,
			want: `{"ip_address": "IP"}`,
		},
		{
			name: "array embedded in prose",
			raw:  `The results: [{"original_index": 0}] done.`,
			want: `[{"original_index": 0}]`,
		},
		{
			name: "braces inside string literals",
			raw:  `prefix {"note": "a } inside", "n": 2} suffix`,
			want: `{"note": "a } inside", "n": 2}`,
		},
		{
			name: "escaped quote inside string",
			raw:  `{"note": "she said \"hi\""}`,
			want: `{"note": "she said \"hi\""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSONNoValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain prose", "I could not determine the categories."},
		{"unbalanced object", `{"a": 1`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractJSON(tt.raw)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestExtractJSONTruncatesRaw(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}

	_, err := ExtractJSON(string(long))
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Len(t, perr.Raw, rawTruncateLen)
}

// Wrapping the same value in a markdown fence must not change what gets
// extracted.
func TestExtractJSONFencedMatchesBare(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		obj := map[string]string{}
		keys := rapid.SliceOfN(rapid.StringMatching(`[a-z_]{1,12}`), 1, 6).Draw(t, "keys")
		for _, k := range keys {
			obj[k] = rapid.StringMatching(`[ -~]{0,20}`).Draw(t, "value")
		}
		encoded, err := json.Marshal(obj)
		require.NoError(t, err)

		bare, err := ExtractJSON(string(encoded))
		require.NoError(t, err)
		fenced, err := ExtractJSON("```json\n" + string(encoded) + "\n```")
		require.NoError(t, err)

		var fromBare, fromFenced map[string]string
		require.NoError(t, json.Unmarshal(bare, &fromBare))
		require.NoError(t, json.Unmarshal(fenced, &fromFenced))
		assert.Equal(t, fromBare, fromFenced)
	})
}
