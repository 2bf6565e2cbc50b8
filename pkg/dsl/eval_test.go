package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	vars := map[string]any{
		"extractor": "inceptionv3",
		"feature":   "Granny_Smith",
		"value":     0.92,
		"stim":      map[string]any{"name": "apple", "onset": 1.5},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{expr: "", want: true},
		{expr: `extractor == "inceptionv3"`, want: true},
		{expr: `value > 0.5`, want: true},
		{expr: `value > 0.95`, want: false},
		{expr: `feature.startsWith("Granny") && stim.name == "apple"`, want: true},
		{expr: `has(stim.duration)`, want: false},
		{expr: `stim.onset >= 1.0`, want: true},
		{expr: `feature in ["cat", "dog"]`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := NewEval(tt.expr)
			require.NoError(t, err)
			got, err := e.Evaluate(vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	_, err := NewEval(`value >`)
	assert.Error(t, err)

	_, err = NewEval(`unknown_var == 1`)
	assert.Error(t, err)

	e, err := NewEval(`value + 1.0`)
	if err == nil {
		_, err = e.Evaluate(map[string]any{"value": 1.0})
	}
	assert.Error(t, err)
}
