package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/model"
)

func TestTFServingClient_Infer(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/mobilenet/versions/4:predict", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"outputs": [[0.1, 0.9]]}`))
	}))
	defer srv.Close()

	c := NewTFServingClient(srv.URL, "mobilenet",
		WithTFServingVersion("4"),
		WithTFServingAuth(&AuthConfig{Type: "bearer", Token: "secret"}))
	in, _ := core.NewFloat32([]int{1, 2}, []float32{1, 2})
	out, err := c.Infer(context.Background(), core.TensorValue(in))
	require.NoError(t, err)

	assert.Equal(t, "serving_default", gotBody["signature_name"])
	assert.Equal(t, []any{[]any{1.0, 2.0}}, gotBody["inputs"])
	require.False(t, out.IsKeyed())
	assert.Equal(t, []int{1, 2}, out.Tensor.Shape)
	assert.InDeltaSlice(t, []float32{0.1, 0.9}, out.Tensor.Floats, 1e-6)
}

func TestTFServingClient_KeyedOutputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"outputs": {"pooled_output": [[1, 2]], "sequence_output": [[[1], [2]]]}}`))
	}))
	defer srv.Close()

	c := NewTFServingClient(srv.URL, "electra")
	in, _ := core.NewString([]int{1}, []string{"hello"})
	out, err := c.Infer(context.Background(), core.TensorValue(in))
	require.NoError(t, err)
	require.True(t, out.IsKeyed())
	assert.Equal(t, []string{"pooled_output", "sequence_output"}, out.Keys())
	assert.Equal(t, []int{1, 2, 1}, out.Keyed["sequence_output"].Shape)
}

func TestTFServingClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	}))
	defer srv.Close()

	c := NewTFServingClient(srv.URL, "m")
	_, err := c.Infer(context.Background(), core.TensorValue(core.Vector([]float32{1})))
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
	assert.Contains(t, err.Error(), "loading")

	assert.Error(t, c.Health(context.Background()))
}

func TestKServeClient_Infer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/health/ready":
			w.WriteHeader(http.StatusOK)
			return
		case "/v2/models/bert/infer":
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Inputs []v2Tensor `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Inputs, 2)
		assert.Equal(t, "input_mask", req.Inputs[0].Name)
		assert.Equal(t, "INT64", req.Inputs[0].Datatype)
		assert.Equal(t, "input_word_ids", req.Inputs[1].Name)

		_, _ = w.Write([]byte(`{"model_name":"bert","outputs":[
			{"name":"pooled_output","shape":[1,2],"datatype":"FP32","data":[0.5,0.25]},
			{"name":"default","shape":[1,2],"datatype":"FP32","data":[1,2]}]}`))
	}))
	defer srv.Close()

	c := NewKServeClient(srv.URL, "bert")
	ids, _ := core.NewInt64([]int{1, 2}, []int64{101, 102})
	mask, _ := core.NewInt64([]int{1, 2}, []int64{1, 1})
	out, err := c.Infer(context.Background(), core.KeyedValue(map[string]*core.Tensor{
		"input_word_ids": ids,
		"input_mask":     mask,
	}))
	require.NoError(t, err)
	require.True(t, out.IsKeyed())
	assert.Equal(t, []string{"default", "pooled_output"}, out.Keys())
	assert.Equal(t, []float32{0.5, 0.25}, out.Keyed["pooled_output"].Floats)

	require.NoError(t, c.Health(context.Background()))

	single := NewKServeClient(srv.URL, "bert", WithKServeOutputName("pooled_output"))
	out, err = single.Infer(context.Background(), core.KeyedValue(map[string]*core.Tensor{
		"input_word_ids": ids,
		"input_mask":     mask,
	}))
	require.NoError(t, err)
	assert.False(t, out.IsKeyed())
	assert.Equal(t, []int{1, 2}, out.Tensor.Shape)
}

func TestKServeClient_SingleOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"outputs":[{"name":"probs","shape":[1,3],"datatype":"FP32","data":[0.1,0.2,0.7]}]}`))
	}))
	defer srv.Close()

	in := core.TensorValue(core.Vector([]float32{1, 2, 3}))
	out, err := NewKServeClient(srv.URL, "m").Infer(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.IsKeyed())

	out, err = NewKServeClient(srv.URL, "m", WithKServeKeyedOutputs()).Infer(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"probs"}, out.Keys())
}

func TestOpener_Resolve(t *testing.T) {
	o := NewOpener()
	tests := []struct {
		in      string
		want    Target
		wantErr error
	}{
		{
			in:   "http://localhost:8501/v1/models/mobilenet",
			want: Target{Type: ServiceTypeTFServing, Endpoint: "http://localhost:8501", ModelName: "mobilenet"},
		},
		{
			in:   "https://serving.example.com/tf/v1/models/effnet/versions/2",
			want: Target{Type: ServiceTypeTFServing, Endpoint: "https://serving.example.com/tf", ModelName: "effnet", Version: "2"},
		},
		{
			in:   "http://localhost:8000/v2/models/electra_small",
			want: Target{Type: ServiceTypeKServe, Endpoint: "http://localhost:8000", ModelName: "electra_small"},
		},
		{
			in:   "file:///models/inceptionv3.onnx",
			want: Target{Type: ServiceTypeONNX, Endpoint: "/models/inceptionv3.onnx", ModelName: "inceptionv3"},
		},
		{in: "https://tfhub.dev/google/electra_small/2", wantErr: core.ErrInvalidConfig},
		{in: "", wantErr: core.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := o.Resolve(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpener_ONNXWithoutRuntime(t *testing.T) {
	_, err := NewOpener().Open(context.Background(), "/models/resnet50.onnx")
	require.Error(t, err)
	assert.True(t, core.IsMissingDependency(err))
}

func TestArchitectureLoader(t *testing.T) {
	arch, err := model.Lookup("resnet50")
	require.NoError(t, err)
	ctx := context.Background()

	m, err := NewArchitectureLoader(NewOpener(), "http://localhost:8501/").LoadArchitecture(ctx, arch, model.DefaultWeights)
	require.NoError(t, err)
	tf, ok := m.(*TFServingClient)
	require.True(t, ok)
	assert.Equal(t, "resnet50", tf.ModelName)
	assert.Equal(t, "http://localhost:8501", tf.Endpoint)

	m, err = NewArchitectureLoader(NewOpener(), "").LoadArchitecture(ctx, arch, "http://localhost:8000/v2/models/custom")
	require.NoError(t, err)
	assert.IsType(t, &KServeClient{}, m)

	_, err = NewArchitectureLoader(NewOpener(), "").LoadArchitecture(ctx, arch, model.DefaultWeights)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewArchitectureLoader(NewOpener(), "/weights").LoadArchitecture(ctx, arch, model.DefaultWeights)
	assert.True(t, core.IsMissingDependency(err))
}

func TestFuncModel(t *testing.T) {
	m := NewFuncModel("double", func(ctx context.Context, in core.Value) (core.Value, error) {
		out := in.Tensor.Clone()
		for i := range out.Floats {
			out.Floats[i] *= 2
		}
		return core.TensorValue(out), nil
	})
	out, err := m.Infer(context.Background(), core.TensorValue(core.Vector([]float32{1, 2})))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4}, out.Tensor.Floats)
	assert.Equal(t, int64(1), m.Calls())

	require.NoError(t, m.Close())
	_, err = m.Infer(context.Background(), core.TensorValue(core.Vector(nil)))
	assert.True(t, core.IsUnavailable(err))
}

func TestServiceConfigFromMap(t *testing.T) {
	cfg, err := ServiceConfigFromMap(map[string]any{
		"type":       "kserve",
		"endpoint":   "http://localhost:8000",
		"model_name": "electra_small",
		"timeout":    5,
		"auth":       map[string]any{"type": "api_key", "api_key": "k"},
	})
	require.NoError(t, err)
	assert.Equal(t, ServiceTypeKServe, cfg.Type)
	assert.Equal(t, 5, cfg.Timeout)
	assert.Equal(t, "k", cfg.Auth.APIKey)

	m, err := NewModel(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "electra_small", m.Name())

	_, err = ServiceConfigFromMap(map[string]any{"type": "kserve"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewModel(&ServiceConfig{Type: ServiceTypeONNX, Endpoint: "/m.onnx"}, nil)
	assert.True(t, core.IsMissingDependency(err))
}
