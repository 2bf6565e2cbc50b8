package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
)

// Config 是 Pipeline 的配置结构（支持 YAML/JSON）。
//
//	pipeline:
//	  name: images
//	  max_concurrent: 4
//	  extractors:
//	    - type: keras.application
//	      name: inception
//	      config:
//	        architecture: inceptionv3
//	        num_predictions: 5
type Config struct {
	Pipeline struct {
		Name          string            `yaml:"name" json:"name"`
		MaxConcurrent int               `yaml:"max_concurrent" json:"max_concurrent"`
		Extractors    []ExtractorConfig `yaml:"extractors" json:"extractors"`
	} `yaml:"pipeline" json:"pipeline"`
}

// ExtractorConfig 是单个抽取器的配置。
type ExtractorConfig struct {
	Type   string         `yaml:"type" json:"type"`     // hub / hub.image.embedding / keras.application 等
	Name   string         `yaml:"name" json:"name"`     // 可选，覆盖默认名称
	Config map[string]any `yaml:"config" json:"config"` // 抽取器特定配置
}

// Load 按扩展名加载配置（.json 为 JSON，其余按 YAML 解析）
func Load(path string) (*Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadFromJSON(path)
	}
	return LoadFromYAML(path)
}

// LoadFromYAML 从 YAML 文件加载 Pipeline 配置。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML 解析 YAML 配置
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// LoadFromJSON 从 JSON 文件加载 Pipeline 配置。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	return &cfg, nil
}

// BuildPipeline 根据配置构建 Pipeline（需要 ExtractorFactory 注册抽取器构建器）。
// 注意：factory 应该在独立的 config 包中，避免循环依赖。
// 构建失败时已构建的抽取器会被关闭。
func (c *Config) BuildPipeline(ctx context.Context, factory *ExtractorFactory, env *Env) (*Pipeline, error) {
	if env == nil {
		env = &Env{}
	}
	p := &Pipeline{Name: c.Pipeline.Name, MaxConcurrent: c.Pipeline.MaxConcurrent, Logger: env.Logger}
	for i, ec := range c.Pipeline.Extractors {
		cfg := make(map[string]any, len(ec.Config)+1)
		for k, v := range ec.Config {
			cfg[k] = v
		}
		if ec.Name != "" {
			cfg["name"] = ec.Name
		}
		ex, err := factory.Build(ctx, ec.Type, env, cfg)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("build extractor %d (%s): %w", i, ec.Type, err)
		}
		p.Extractors = append(p.Extractors, ex)
	}
	return p, nil
}

// ExtractorFactory 用于根据配置构建抽取器实例。
type ExtractorFactory struct {
	builders map[string]ExtractorBuilder
}

func NewExtractorFactory() *ExtractorFactory {
	return &ExtractorFactory{
		builders: make(map[string]ExtractorBuilder),
	}
}

// Register 注册抽取器构建器。
func (f *ExtractorFactory) Register(typeName string, builder ExtractorBuilder) {
	f.builders[typeName] = builder
}

// Types 返回已注册的类型（排序）
func (f *ExtractorFactory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build 根据类型和配置构建抽取器。
func (f *ExtractorFactory) Build(ctx context.Context, typeName string, env *Env, cfg map[string]any) (extractor.Extractor, error) {
	builder, ok := f.builders[typeName]
	if !ok {
		return nil, core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidConfig,
			"unknown extractor type %q (supported: %v)", typeName, f.Types())
	}
	return builder(ctx, env, cfg)
}
