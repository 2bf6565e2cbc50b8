package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
	"github.com/rushteam/featx/pkg/conv"
	"github.com/rushteam/featx/service"
)

// lengthBuilder 构建一个返回文本长度的抽取器
func lengthBuilder(ctx context.Context, env *Env, cfg map[string]any) (extractor.Extractor, error) {
	m := service.NewFuncModel("length", func(ctx context.Context, in core.Value) (core.Value, error) {
		return core.TensorValue(core.Vector([]float32{float32(len(in.Tensor.Strings[0]))})), nil
	})
	opts := append(env.ExtractorOptions(),
		extractor.WithName(conv.ConfigGet(cfg, "name", "length")),
		extractor.WithTask("length"))
	return extractor.NewTextExtractor(m, opts...)
}

func failingBuilder(ctx context.Context, env *Env, cfg map[string]any) (extractor.Extractor, error) {
	return nil, errors.New("boom")
}

func testFactory() *ExtractorFactory {
	f := NewExtractorFactory()
	f.Register("length", lengthBuilder)
	f.Register("failing", failingBuilder)
	return f
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "p.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(`
pipeline:
  name: words
  max_concurrent: 3
  extractors:
    - type: length
      name: len
      config:
        reshape_input: [224, 224, 3]
`), 0o644))
	js := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"pipeline": {"name": "words", "max_concurrent": 3,
		"extractors": [{"type": "length", "name": "len", "config": {"reshape_input": [224, 224, 3]}}]}}`), 0o644))

	for _, path := range []string{yml, js} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "words", cfg.Pipeline.Name)
			assert.Equal(t, 3, cfg.Pipeline.MaxConcurrent)
			require.Len(t, cfg.Pipeline.Extractors, 1)
			ec := cfg.Pipeline.Extractors[0]
			assert.Equal(t, "length", ec.Type)
			assert.Equal(t, "len", ec.Name)
			shape, ok, err := conv.ConfigGetInts(ec.Config, "reshape_input")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []int{224, 224, 3}, shape)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestPipeline_Run(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
pipeline:
  name: words
  extractors:
    - type: length
      name: first
    - type: length
      name: second
`))
	require.NoError(t, err)

	mon := extractor.NewMemoryMonitor()
	p, err := cfg.BuildPipeline(context.Background(), testFactory(), &Env{Monitor: mon})
	require.NoError(t, err)
	defer p.Close()

	stims := []core.Stimulus{
		&core.TextStim{Meta: core.Meta{ID: "a"}, Text: "a"},
		&core.ComplexTextStim{Meta: core.Meta{ID: "doc"}, Elements: []*core.TextStim{
			{Meta: core.Meta{ID: "doc#0"}, Text: "bb"},
			{Meta: core.Meta{ID: "doc#1"}, Text: "ccc"},
		}},
	}
	results, err := p.Run(context.Background(), stims)
	require.NoError(t, err)
	require.Len(t, results, 6)

	wantIDs := []string{"a", "doc#0", "doc#1", "a", "doc#0", "doc#1"}
	for i, res := range results {
		assert.Equal(t, wantIDs[i], res.Stimulus.ID)
	}
	assert.Equal(t, "first", results[0].Extractor)
	assert.Equal(t, "second", results[3].Extractor)
	assert.Equal(t, float32(3), results[5].Data.Floats[0])

	stats, err := mon.Stats("second")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Calls)

	require.NoError(t, p.Close())
	_, err = p.Run(context.Background(), stims)
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestBuildPipeline_Errors(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
pipeline:
  extractors:
    - type: length
    - type: failing
`))
	require.NoError(t, err)
	_, err = cfg.BuildPipeline(context.Background(), testFactory(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build extractor 1 (failing): boom")

	cfg.Pipeline.Extractors[1].Type = "video"
	_, err = cfg.BuildPipeline(context.Background(), testFactory(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "supported: [failing length]")
}
