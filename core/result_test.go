package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Rows(t *testing.T) {
	probs, _ := NewFloat32([]int{1, 3}, []float32{0.7, 0.2, 0.1})
	tokens, _ := NewFloat32([]int{1, 2, 2}, []float32{1, 2, 3, 4})

	tests := []struct {
		name        string
		features    []string
		data        *Tensor
		wantColumns []string
		wantErr     error
	}{
		{
			name:        "one scalar column per feature",
			features:    []string{"Granny_Smith", "orange", "lemon"},
			data:        probs,
			wantColumns: []string{"Granny_Smith", "orange", "lemon"},
		},
		{
			name:        "single feature holds the vector",
			features:    []string{"embedding"},
			data:        probs,
			wantColumns: []string{"embedding"},
		},
		{
			name:        "auto feature names",
			data:        probs,
			wantColumns: []string{"feature_0", "feature_1", "feature_2"},
		},
		{
			name:        "matrix row in one column",
			features:    []string{"token_encodings"},
			data:        tokens,
			wantColumns: []string{"token_encodings"},
		},
		{
			name:     "count mismatch",
			features: []string{"a", "b"},
			data:     probs,
			wantErr:  ErrFeatureCountMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Result{Extractor: "test", Features: tt.features, Data: tt.data}
			rows, err := r.Rows()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.wantColumns, rows[0].Columns)
			assert.Len(t, rows[0].Values, len(tt.wantColumns))
		})
	}
}

func TestResult_RowsArrayCell(t *testing.T) {
	tokens, _ := NewFloat32([]int{1, 2, 2}, []float32{1, 2, 3, 4})
	r := &Result{Extractor: "electra", Features: []string{"token_encodings"}, Data: tokens}
	rows, err := r.Rows()
	require.NoError(t, err)

	cell := rows[0].Values["token_encodings"]
	assert.False(t, cell.IsScalar())
	assert.Equal(t, []int{2, 2}, cell.Shape)
	assert.Equal(t, []float64{1, 2, 3, 4}, cell.Data)
}

func TestMeta_Clone(t *testing.T) {
	onset := 4.2
	m := Meta{ID: "a", Onset: &onset}
	c := m.Clone()
	*c.Onset = 1
	assert.Equal(t, 4.2, *m.Onset)
}
