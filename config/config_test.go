package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
	"github.com/rushteam/featx/pipeline"
)

func TestRegister(t *testing.T) {
	builder := func(ctx context.Context, env *pipeline.Env, cfg map[string]any) (extractor.Extractor, error) {
		return nil, nil
	}
	Register("test.noop", builder)
	Register("", builder)
	Register("test.nil", nil)

	assert.Contains(t, SupportedTypes(), "test.noop")
	assert.NotContains(t, SupportedTypes(), "test.nil")
	assert.Contains(t, DefaultFactory().Types(), "test.noop")

	cfg := &pipeline.Config{}
	cfg.Pipeline.Extractors = []pipeline.ExtractorConfig{{Type: "test.noop"}, {Type: "test.missing"}}
	err := ValidatePipelineConfig(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Contains(t, err.Error(), `unsupported extractor type "test.missing"`)

	assert.NoError(t, ValidatePipelineConfig(nil))
}

func TestCommonOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     map[string]any
		wantLen int
		wantErr bool
	}{
		{name: "empty", cfg: map[string]any{}, wantLen: 0},
		{name: "all", cfg: map[string]any{
			"name": "x", "task": "embedding", "labels": []any{"a"}, "features": "f", "output_key": nil,
		}, wantLen: 5},
		{name: "bad labels", cfg: map[string]any{"labels": 3}, wantErr: true},
		{name: "bad output key", cfg: map[string]any{"output_key": []any{"a"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := CommonOptions(nil, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, opts, tt.wantLen)
		})
	}
	// env 的日志和监控选项在最前面
	opts, err := CommonOptions(&pipeline.Env{}, map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Len(t, opts, 3)
}

func TestOpenModel(t *testing.T) {
	m, ok, err := OpenModel(context.Background(), nil, map[string]any{}, "preprocessor_url_or_path")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, m)

	_, _, err = OpenModel(context.Background(), nil, map[string]any{"url_or_path": 12}, "url_or_path")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	m, ok, err = OpenModel(context.Background(), nil, map[string]any{"url_or_path": "http://localhost:8501/v1/models/resnet"}, "url_or_path")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "resnet", m.Name())

	_, err = RequireModel(context.Background(), nil, map[string]any{}, "url_or_path")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
