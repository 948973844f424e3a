package jsonx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"pure object", `{"score": 7}`, `{"score": 7}`},
		{"surrounding whitespace", "\n  {\"score\": 7}\n", `{"score": 7}`},
		{"json fence", "```json\n{\"score\": 7}\n```", `{"score": 7}`},
		{"bare fence", "```\n{\"score\": 7}\n```", `{"score": 7}`},
		{"fence after prose", "Here you go:\n```json\n{\"score\": 7}\n```\nGood luck!", `{"score": 7}`},
		{"prose wrapped", `Sure! {"score": 7} Hope that helps.`, `{"score": 7}`},
		{"brace in string", `Result: {"summary": "uses {braces}", "score": 5} done`, `{"summary": "uses {braces}", "score": 5}`},
		{"skips invalid first span", `{not json} then {"score": 4}`, `{"score": 4}`},
		{"nested", `x {"a": {"b": 1}, "score": 2} y`, `{"a": {"b": 1}, "score": 2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractFailures(t *testing.T) {
	for _, input := range []string{"", "no json here", "[1,2,3]", "{unterminated", `"just a string"`} {
		_, err := Extract(input)
		assert.True(t, errors.Is(err, ErrNoJSON), "input %q", input)
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Score int      `json:"score"`
		Tips  []string `json:"tips"`
	}
	got, err := Decode[payload]("```json\n{\"score\": 9, \"tips\": [\"a\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Score)
	assert.Equal(t, []string{"a"}, got.Tips)

	_, err = Decode[payload](`{"score": "nine"}`)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoJSON))
}
