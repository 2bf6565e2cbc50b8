package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
	"github.com/rushteam/featx/model"
	"github.com/rushteam/featx/service"
)

// Env 是配置驱动构建抽取器时可用的依赖。
//
// 抽取器配置只描述“用什么模型、怎么预处理”，模型运行时、日志、监控等由调用方注入。
type Env struct {
	// Opener 把 url_or_path 解析为模型（TF Serving / KServe / ONNX）
	Opener *service.Opener

	// Loader 加载固定架构模型（keras.application）
	Loader model.Loader

	// Store 可选，用于缓存类别索引下载
	Store core.Store

	// Logger 默认 zap.NewNop()
	Logger *zap.Logger

	// Monitor 默认 extractor.NopMonitor
	Monitor extractor.Monitor
}

// ExtractorOptions 返回所有抽取器共用的选项（日志、监控）
func (e *Env) ExtractorOptions() []extractor.Option {
	if e == nil {
		return nil
	}
	return []extractor.Option{extractor.WithLogger(e.Logger), extractor.WithMonitor(e.Monitor)}
}

// ExtractorBuilder 根据 config 构建抽取器。
// 各组件在 init 中调用 config.Register(typeName, builder) 即可被配置驱动。
type ExtractorBuilder func(ctx context.Context, env *Env, cfg map[string]any) (extractor.Extractor, error)
