package config

import (
	"context"
	"fmt"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
	"github.com/rushteam/featx/pipeline"
	"github.com/rushteam/featx/pkg/conv"
	"github.com/rushteam/featx/service"
)

// OpenModel 打开 cfg 中描述的模型，供各构建器共用。
//
// 支持两种写法：
//   - key 对应的 url_or_path 字符串：交给 env.Opener 解析
//   - service 块：{type, endpoint, model_name, model_version, timeout, auth}
//
// key 不存在且没有 service 块时返回 (nil, false, nil)。
func OpenModel(ctx context.Context, env *pipeline.Env, cfg map[string]any, key string) (core.Model, bool, error) {
	opener := service.NewOpener()
	if env != nil && env.Opener != nil {
		opener = env.Opener
	}
	if key == "" || cfg[key] == nil {
		sub := conv.ConfigGetMap(cfg, "service")
		if sub == nil || key != "url_or_path" {
			return nil, false, nil
		}
		sc, err := service.ServiceConfigFromMap(sub)
		if err != nil {
			return nil, true, err
		}
		m, err := opener.OpenConfig(sc)
		if err != nil {
			return nil, true, err
		}
		return m, true, nil
	}
	target, ok := cfg[key].(string)
	if !ok || target == "" {
		return nil, true, core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidConfig,
			"config %q: expected a model url or path, got %T", key, cfg[key])
	}
	m, err := opener.Open(ctx, target)
	if err != nil {
		return nil, true, fmt.Errorf("open %s: %w", target, err)
	}
	return m, true, nil
}

// RequireModel 与 OpenModel 相同，但模型缺失时返回 INVALID_CONFIG
func RequireModel(ctx context.Context, env *pipeline.Env, cfg map[string]any, key string) (core.Model, error) {
	m, ok, err := OpenModel(ctx, env, cfg, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidConfig, "%s or service is required", key)
	}
	return m, nil
}

// CommonOptions 解析所有抽取器共用的配置：name、task、labels、features、output_key。
//
// output_key 显式写为 null 时关闭输出选择。
func CommonOptions(env *pipeline.Env, cfg map[string]any) ([]extractor.Option, error) {
	opts := env.ExtractorOptions()
	if name := conv.ConfigGet(cfg, "name", ""); name != "" {
		opts = append(opts, extractor.WithName(name))
	}
	if task := conv.ConfigGet(cfg, "task", ""); task != "" {
		opts = append(opts, extractor.WithTask(task))
	}
	labels, ok, err := conv.ConfigGetStrings(cfg, "labels")
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, extractor.WithLabels(labels...))
	}
	features, ok, err := conv.ConfigGetStrings(cfg, "features")
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, extractor.WithFeatures(features...))
	}
	if v, ok := cfg["output_key"]; ok {
		switch key := v.(type) {
		case nil:
			opts = append(opts, extractor.WithOutputKey(""))
		case string:
			opts = append(opts, extractor.WithOutputKey(key))
		default:
			return nil, core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidConfig,
				"config \"output_key\": expected string or null, got %T", v)
		}
	}
	return opts, nil
}
