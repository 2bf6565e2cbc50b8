package builders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/featx/config"
	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
	"github.com/rushteam/featx/model"
	"github.com/rushteam/featx/pipeline"
	"github.com/rushteam/featx/service"
)

// newServer 是假的 TF Serving：mobilenet 返回 3 维嵌入，electra 返回 keyed 输出
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models/mobilenet:predict":
			_, _ = w.Write([]byte(`{"outputs": [[0.1, 0.2, 0.3]]}`))
		case "/v1/models/electra:predict":
			_, _ = w.Write([]byte(`{"outputs": {"default": [[1, 2]], "sequence_output": [[[0]]]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeClassIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	data := `{"0": ["n0", "tench"], "1": ["n1", "goldfish"], "2": ["n2", "shark"]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestRegisteredTypes(t *testing.T) {
	assert.Equal(t, []string{
		"hub", "hub.image", "hub.image.classification", "hub.image.embedding",
		"hub.text", "hub.text.embedding", "keras.application",
	}, config.SupportedTypes())
}

func TestBuildPipeline(t *testing.T) {
	srv := newServer(t)
	var loaded string
	env := &pipeline.Env{
		Opener:  service.NewOpener(),
		Monitor: extractor.NewMemoryMonitor(),
		Loader: model.LoaderFunc(func(ctx context.Context, arch model.Architecture, weights string) (core.Model, error) {
			loaded = arch.Name
			return service.NewFuncModel(arch.Name, func(ctx context.Context, in core.Value) (core.Value, error) {
				return core.TensorValue(core.Vector([]float32{0.2, 0.7, 0.1}).ExpandDims(0)), nil
			}), nil
		}),
	}
	yml := strings.NewReplacer("SRV", srv.URL, "INDEX", writeClassIndex(t)).Replace(`
pipeline:
  name: test
  max_concurrent: 2
  extractors:
    - type: hub.image.embedding
      name: mobilenet
      config:
        url_or_path: SRV/v1/models/mobilenet
        reshape_input: [4, 4, 3]
    - type: hub.text.embedding
      config:
        url_or_path: SRV/v1/models/electra
    - type: keras.application
      config:
        architecture: vgg16
        num_predictions: 2
        class_index: INDEX
`)
	cfg, err := pipeline.ParseYAML([]byte(yml))
	require.NoError(t, err)

	p, err := config.Build(context.Background(), cfg, env)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "vgg16", loaded)
	require.Len(t, p.Extractors, 3)
	assert.Equal(t, "mobilenet", p.Extractors[0].Name())
	assert.Equal(t, "electra", p.Extractors[1].Name())

	img, err := core.NewFloat32([]int{8, 8, 3}, make([]float32, 192))
	require.NoError(t, err)
	stims := []core.Stimulus{
		&core.ImageStim{Meta: core.Meta{ID: "img"}, Data: img},
		&core.TextStim{Meta: core.Meta{ID: "txt"}, Text: "hello"},
	}
	results, err := p.Run(context.Background(), stims)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"embedding"}, results[0].Features)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, results[0].Data.Floats)
	assert.Equal(t, "txt", results[1].Stimulus.ID)
	assert.Equal(t, []float32{1, 2}, results[1].Data.Floats)
	assert.Equal(t, []string{"goldfish", "tench"}, results[2].Features)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown type",
			yaml:    "pipeline:\n  extractors:\n    - type: hub.video\n",
			wantErr: core.ErrInvalidConfig,
			wantMsg: `unsupported extractor type "hub.video" (supported: [hub`,
		},
		{
			name:    "no extractors",
			yaml:    "pipeline:\n  name: empty\n",
			wantErr: core.ErrInvalidConfig,
		},
		{
			name:    "missing url",
			yaml:    "pipeline:\n  extractors:\n    - type: hub\n      config: {}\n",
			wantErr: core.ErrInvalidConfig,
			wantMsg: "url_or_path or service is required",
		},
		{
			name:    "unknown architecture",
			yaml:    "pipeline:\n  extractors:\n    - type: keras.application\n      config:\n        architecture: foo\n",
			wantErr: core.ErrUnknownArchitecture,
		},
		{
			name:    "onnx without runtime",
			yaml:    "pipeline:\n  extractors:\n    - type: hub.image\n      config:\n        url_or_path: /models/mobilenet.onnx\n",
			wantErr: core.ErrMissingDependency,
		},
		{
			name:    "bad output key",
			yaml:    "pipeline:\n  extractors:\n    - type: hub.text\n      config:\n        url_or_path: http://localhost/v1/models/x\n        output_key: 3\n",
			wantErr: core.ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := pipeline.ParseYAML([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = config.Build(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestBuildHub_ServiceBlock(t *testing.T) {
	srv := newServer(t)
	ex, err := BuildHub(context.Background(), nil, map[string]any{
		"labels":     []any{"a", "b", "c"},
		"stim_kinds": "image",
		"service": map[string]any{
			"type":       "tf_serving",
			"endpoint":   srv.URL,
			"model_name": "mobilenet",
		},
	})
	require.NoError(t, err)
	assert.True(t, ex.Accepts(core.KindImage))
	assert.False(t, ex.Accepts(core.KindText))

	img, err := core.NewFloat32([]int{1, 1, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	res, err := ex.Extract(context.Background(), &core.ImageStim{Meta: core.Meta{ID: "i"}, Data: img})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.Features)
}
