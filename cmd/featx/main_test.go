package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, files, err := LoadSettings([]string{"-pipeline", "p.yaml", "a.jpg", "b.txt"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.txt"}, files)
	assert.Equal(t, "p.yaml", s.Pipeline)
	assert.Equal(t, "wide", s.Format)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, 30*time.Second, s.Model.Timeout)
	assert.Equal(t, "featx", s.Metrics.Namespace)
	assert.Empty(t, s.Redis.Addr)
}

func TestLoadSettings_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline: from-file.yaml
format: long
max_concurrent: 2
log:
  level: debug
redis:
  addr: localhost:6379
  ttl: 60
`), 0o644))
	t.Setenv("FEATX_MAX_CONCURRENT", "8")
	t.Setenv("FEATX_MODEL_WEIGHTS_ROOT", "http://serving:8501")

	s, _, err := LoadSettings([]string{"-settings", path, "-log-level", "warn", "-model-timeout", "5s"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "from-file.yaml", s.Pipeline)
	assert.Equal(t, "long", s.Format)
	assert.Equal(t, 8, s.MaxConcurrent)
	assert.Equal(t, "warn", s.Log.Level)
	assert.Equal(t, "http://serving:8501", s.Model.WeightsRoot)
	assert.Equal(t, 5*time.Second, s.Model.Timeout)
	assert.Equal(t, "localhost:6379", s.Redis.Addr)
	assert.Equal(t, 60, s.Redis.TTL)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing pipeline", args: []string{"a.jpg"}},
		{name: "bad format", args: []string{"-pipeline", "p.yaml", "-format", "tall"}},
		{name: "bad extractor names", args: []string{"-pipeline", "p.yaml", "-extractor-names", "multi"}},
		{name: "bad log level", args: []string{"-pipeline", "p.yaml", "-log-level", "loud"}},
		{name: "unknown flag", args: []string{"-pipeline", "p.yaml", "-nope"}},
		{name: "missing settings file", args: []string{"-settings", "/nonexistent/featx.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadSettings(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

// newServer 是假的 TF Serving，每个文本返回两个特征
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.URL.Path != "/v1/models/sentiment:predict" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"outputs": [[0.5, 0.25]]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	pipelinePath := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(pipelinePath, []byte(strings.ReplaceAll(`
pipeline:
  name: sentiment
  extractors:
    - type: hub.text
      name: txt
      config:
        url_or_path: SRV/v1/models/sentiment
        features: [pos, neg]
`, "SRV", srv.URL)), 0o644))
	hello := filepath.Join(dir, "hello.txt")
	world := filepath.Join(dir, "world.txt")
	require.NoError(t, os.WriteFile(hello, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(world, []byte("world"), 0o644))

	t.Run("wide", func(t *testing.T) {
		var out bytes.Buffer
		err := run(context.Background(), []string{"-pipeline", pipelinePath, "-log-level", "error", hello, world}, &out, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "onset,duration,order,stim_name,txt#pos,txt#neg\n"+
			",,,hello,0.5,0.25\n"+
			",,,world,0.5,0.25\n", out.String())
	})

	t.Run("long filtered", func(t *testing.T) {
		var out bytes.Buffer
		err := run(context.Background(), []string{
			"-pipeline", pipelinePath, "-log-level", "error",
			"-format", "long", "-filter", `feature == "pos" && stim.name == "world"`,
			hello, world,
		}, &out, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "onset,duration,order,stim_name,extractor,feature,value\n"+
			",,,world,txt,pos,0.5\n", out.String())
	})

	t.Run("output file", func(t *testing.T) {
		path := filepath.Join(dir, "out.csv")
		err := run(context.Background(), []string{"-pipeline", pipelinePath, "-log-level", "error", "-output", path, hello}, io.Discard, io.Discard)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), ",,,hello,0.5,0.25")
	})

	t.Run("no files", func(t *testing.T) {
		err := run(context.Background(), []string{"-pipeline", pipelinePath}, io.Discard, io.Discard)
		assert.Error(t, err)
	})

	t.Run("unsupported file", func(t *testing.T) {
		err := run(context.Background(), []string{"-pipeline", pipelinePath, "-log-level", "error", filepath.Join(dir, "clip.mp4")}, io.Discard, io.Discard)
		assert.Error(t, err)
	})
}
