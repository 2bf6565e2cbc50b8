package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/store"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name      string
		wantMode  PreprocessMode
		wantShape [3]int
	}{
		{name: "vgg16", wantMode: ModeCaffe, wantShape: [3]int{224, 224, 3}},
		{name: "ResNet50", wantMode: ModeCaffe, wantShape: [3]int{224, 224, 3}},
		{name: "inception_resnetv2", wantMode: ModeTF, wantShape: [3]int{299, 299, 3}},
		{name: "InceptionV3", wantMode: ModeTF, wantShape: [3]int{299, 299, 3}},
		{name: "densenet201", wantMode: ModeTorch, wantShape: [3]int{224, 224, 3}},
		{name: "nasnetlarge", wantMode: ModeTF, wantShape: [3]int{331, 331, 3}},
		{name: "nasnetmobile", wantMode: ModeTF, wantShape: [3]int{224, 224, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arch, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(tt.name), arch.Name)
			assert.Equal(t, tt.wantMode, arch.Mode)
			assert.Equal(t, tt.wantShape, arch.InputShape)
		})
	}
	assert.Len(t, Architectures(), 11)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("foo")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownArchitecture)
	assert.True(t, core.IsConfigError(err))
	assert.Contains(t, err.Error(), "Unknown architecture 'foo'")
	assert.Contains(t, err.Error(), "'vgg16', 'vgg19', 'resnet50'")
	assert.Contains(t, err.Error(), "'nasnetmobile'.")
}

func TestPreprocess(t *testing.T) {
	pixel, err := core.NewFloat32([]int{1, 1, 3}, []float32{255, 127.5, 0})
	require.NoError(t, err)

	caffe, err := Preprocess(ModeCaffe, pixel)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0 - 103.939, 127.5 - 116.779, 255 - 123.68}, caffe.Floats, 1e-4)

	tf, err := Preprocess(ModeTF, pixel)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 0, -1}, tf.Floats, 1e-6)

	torch, err := Preprocess(ModeTorch, pixel)
	require.NoError(t, err)
	assert.InDelta(t, (1-0.485)/0.229, torch.Floats[0], 1e-4)
	assert.InDelta(t, (0.5-0.456)/0.224, torch.Floats[1], 1e-4)
	assert.InDelta(t, (0-0.406)/0.225, torch.Floats[2], 1e-4)

	assert.Equal(t, []float32{255, 127.5, 0}, pixel.Floats, "input must not be modified")

	gray, _ := core.NewFloat32([]int{2, 2, 1}, make([]float32, 4))
	_, err = Preprocess(ModeTF, gray)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

const tinyIndex = `{"0": ["n0", "tench"], "1": ["n1", "goldfish"], "2": ["n2", "Granny_Smith"], "3": ["n3", "orange"]}`

func TestDecodePredictions(t *testing.T) {
	idx, err := ParseClassIndex([]byte(tinyIndex))
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())

	preds, err := core.NewFloat32([]int{2, 4}, []float32{
		0.1, 0.2, 0.6, 0.1,
		0.3, 0.3, 0.1, 0.3,
	})
	require.NoError(t, err)

	decoded, err := DecodePredictions(preds, idx, 2)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "Granny_Smith", decoded[0][0].Label)
	assert.Equal(t, "n2", decoded[0][0].ID)
	assert.InDelta(t, 0.6, decoded[0][0].Probability, 1e-6)
	assert.Equal(t, "goldfish", decoded[0][1].Label)
	// 概率相同时类别编号小的在前
	assert.Equal(t, "tench", decoded[1][0].Label)
	assert.Equal(t, "goldfish", decoded[1][1].Label)

	wrong, _ := core.NewFloat32([]int{1, 3}, []float32{1, 2, 3})
	_, err = DecodePredictions(wrong, idx, 2)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestParseClassIndex_Invalid(t *testing.T) {
	_, err := ParseClassIndex([]byte(`{"0": ["n0", "a"], "5": ["n5", "b"]}`))
	assert.Error(t, err)
	_, err = ParseClassIndex([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadClassIndex(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(tinyIndex))
	}))
	defer srv.Close()

	ctx := context.Background()
	cache := store.NewMemoryStore()
	defer cache.Close()

	for i := 0; i < 2; i++ {
		idx, err := LoadClassIndex(ctx, srv.URL+"/imagenet_class_index.json", WithClassIndexStore(cache, 0))
		require.NoError(t, err)
		assert.Equal(t, "orange", idx.Labels[3])
	}
	assert.Equal(t, int32(1), hits.Load(), "second load must come from the store")

	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(tinyIndex), 0o644))
	idx, err := LoadClassIndex(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "tench", idx.Labels[0])
}

func TestLoadClassIndex_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := LoadClassIndex(context.Background(), srv.URL)
	assert.ErrorIs(t, err, core.ErrUnavailable)
}
