package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	record := map[string]any{
		"user":   "u1",
		"item":   "i9",
		"score":  4.5,
		"source": "click",
		"attrs":  map[string]any{"device": "ios"},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"x.score >= 4.0", true},
		{"x.score >= 5.0", false},
		{`x.source == "click" && x.score > 3.0`, true},
		{`x.item in ["i1", "i2"]`, false},
		{`x.user.startsWith("u")`, true},
		{"has(x.attrs.device)", true},
		{"has(x.attrs.os)", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := f.Match(record)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_Errors(t *testing.T) {
	_, err := Compile("x.score >=")
	assert.Error(t, err)

	f, err := Compile("x.score + 1.0")
	require.NoError(t, err)
	_, err = f.Match(map[string]any{"score": 1.0})
	assert.Error(t, err)

	f, err = Compile("x.missing > 1.0")
	require.NoError(t, err)
	_, err = f.Match(map[string]any{"score": 1.0})
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	ok, err := Evaluate("x.score < 2.0", map[string]any{"score": 1.0})
	require.NoError(t, err)
	assert.True(t, ok)

	var nilFilter *Filter
	ok, err = nilFilter.Match(nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
