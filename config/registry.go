// Package config 维护抽取器类型注册表，把 pipeline 配置构建为可运行的 Pipeline。
package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/pipeline"
)

// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/featx/config/builders"
// 以触发内置抽取器（hub、hub.image.embedding、hub.text.embedding、keras.application 等）的 init 注册。

// ExtractorBuilder 与 pipeline.ExtractorBuilder 一致：根据 config 构建抽取器。
// 各组件在 init 中调用 Register(typeName, builder) 即可被配置驱动。
type ExtractorBuilder = pipeline.ExtractorBuilder

var (
	defaultBuilders   = make(map[string]ExtractorBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种抽取器的构建逻辑，供 DefaultFactory 与配置驱动使用。
// 建议在各组件的 init 中调用，例如：func init() { config.Register("hub", BuildHub) }
func Register(typeName string, builder ExtractorBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的抽取器类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回基于当前注册表构建的 ExtractorFactory。
func DefaultFactory() *pipeline.ExtractorFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewExtractorFactory()
	for typeName, builder := range defaultBuilders {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 校验 pipeline 配置中所有抽取器类型均已注册；若有未支持类型则返回包含已支持列表的错误。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	if len(cfg.Pipeline.Extractors) == 0 {
		return core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidConfig, "pipeline %q has no extractors", cfg.Pipeline.Name)
	}
	supported := SupportedTypes()
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	for i, ec := range cfg.Pipeline.Extractors {
		if ec.Type == "" {
			return core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidConfig, "extractor %d has no type", i)
		}
		if _, ok := defaultBuilders[ec.Type]; !ok {
			return core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidConfig,
				"unsupported extractor type %q (supported: %v)", ec.Type, supported)
		}
	}
	return nil
}

// Build 校验并构建 Pipeline
func Build(ctx context.Context, cfg *pipeline.Config, env *pipeline.Env) (*pipeline.Pipeline, error) {
	if err := ValidatePipelineConfig(cfg); err != nil {
		return nil, err
	}
	p, err := cfg.BuildPipeline(ctx, DefaultFactory(), env)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", cfg.Pipeline.Name, err)
	}
	return p, nil
}
