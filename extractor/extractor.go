// Package extractor 提供基于预训练模型的特征抽取器。
//
// 抽取器是模型之上的薄适配层：
//  1. preprocess：把刺激转为模型输入（张量或命名张量）
//  2. invoke：调用 core.Model 推理
//  3. postprocess：选择输出、整理为 core.Result
//
// 具体模型的加载、下载、推理均由 service 包中的 core.Model 实现完成。
package extractor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/model"
)

// Extractor 是抽取器的统一接口。
type Extractor interface {
	// Name 返回抽取器名称（结果合并时作为列前缀）
	Name() string

	// Accepts 判断是否接受该类型的刺激
	Accepts(kind core.StimKind) bool

	// Extract 对单个刺激抽取特征
	Extract(ctx context.Context, stim core.Stimulus) (*core.Result, error)
}

// InputTransform 在模型调用前变换输入（如增加 batch 维度）
type InputTransform func(in core.Value) (core.Value, error)

// Option 配置抽取器。
// 不同抽取器只读取与自己相关的选项，其余选项被忽略。
type Option func(*options)

type options struct {
	name         string
	task         string
	labels       []string
	features     []string
	outputKey    *string
	transformInp InputTransform
	kinds        []core.StimKind
	logger       *zap.Logger
	monitor      Monitor

	// image
	rescaleRGB   bool
	reshapeInput []int

	// text
	preprocessor core.Model

	// application
	architecture   string
	weights        string
	numPredictions int
	classIndex     *model.ClassIndex
	classIndexOpts []model.ClassIndexOption
	classIndexSrc  string
}

func defaultOptions() *options {
	return &options{
		logger:         zap.NewNop(),
		monitor:        NopMonitor{},
		rescaleRGB:     true,
		architecture:   model.DefaultArchitecture,
		weights:        model.DefaultWeights,
		numPredictions: 5,
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithName 设置抽取器名称
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithTask 设置任务名（没有 labels/features 时作为唯一的特征名）
func WithTask(task string) Option {
	return func(o *options) {
		o.task = task
	}
}

// WithLabels 设置类别标签（分类模型的输出列名）
func WithLabels(labels ...string) Option {
	return func(o *options) {
		o.labels = labels
	}
}

// WithFeatures 显式设置特征名，优先于 labels 和 task
func WithFeatures(features ...string) Option {
	return func(o *options) {
		o.features = features
	}
}

// WithOutputKey 从 keyed 输出中选择 key；空字符串表示不选择，直接使用输出
func WithOutputKey(key string) Option {
	return func(o *options) {
		o.outputKey = &key
	}
}

// WithInputTransform 设置模型调用前的输入变换
func WithInputTransform(fn InputTransform) Option {
	return func(o *options) {
		o.transformInp = fn
	}
}

// WithStimKinds 设置可接受的刺激类型（通用抽取器默认接受全部类型）
func WithStimKinds(kinds ...core.StimKind) Option {
	return func(o *options) {
		o.kinds = kinds
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMonitor 设置监控
func WithMonitor(m Monitor) Option {
	return func(o *options) {
		if m != nil {
			o.monitor = m
		}
	}
}

// WithRescaleRGB 是否把像素从 0~255 缩放到 0~1（默认 true）
func WithRescaleRGB(rescale bool) Option {
	return func(o *options) {
		o.rescaleRGB = rescale
	}
}

// WithReshapeInput 设置模型输入形状 (高, 宽, 通道)，图像会先缩放到该尺寸
func WithReshapeInput(shape ...int) Option {
	return func(o *options) {
		o.reshapeInput = shape
	}
}

// WithPreprocessor 设置文本预处理模型（如 BERT tokenizer），其输出作为主模型输入
func WithPreprocessor(m core.Model) Option {
	return func(o *options) {
		o.preprocessor = m
	}
}

// WithArchitecture 设置固定架构名称（默认 inceptionv3）
func WithArchitecture(name string) Option {
	return func(o *options) {
		o.architecture = name
	}
}

// WithWeights 设置权重（默认 imagenet）
func WithWeights(weights string) Option {
	return func(o *options) {
		if weights != "" {
			o.weights = weights
		}
	}
}

// WithNumPredictions 设置保留的 top-K 预测数（默认 5）
func WithNumPredictions(n int) Option {
	return func(o *options) {
		o.numPredictions = n
	}
}

// WithClassIndex 直接提供类别索引
func WithClassIndex(idx *model.ClassIndex) Option {
	return func(o *options) {
		o.classIndex = idx
	}
}

// WithClassIndexSource 设置类别索引的文件路径或 URL（默认 keras ImageNet 索引）
func WithClassIndexSource(source string, opts ...model.ClassIndexOption) Option {
	return func(o *options) {
		o.classIndexSrc = source
		o.classIndexOpts = opts
	}
}

// observe 记录一次抽取的日志和监控
func observe(o *options, name string, stim core.Stimulus, start time.Time, err error) {
	elapsed := time.Since(start)
	o.monitor.ObserveExtract(name, stim.Kind(), elapsed, err)
	if err != nil {
		o.logger.Debug("extract failed",
			zap.String("extractor", name),
			zap.String("stim", stim.Metadata().ID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	o.logger.Debug("extract",
		zap.String("extractor", name),
		zap.String("stim", stim.Metadata().ID),
		zap.Duration("elapsed", elapsed))
}
