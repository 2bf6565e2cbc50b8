package extractor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/filter"
	"github.com/rushteam/featx/model"
)

// ApplicationExtractor 使用固定架构的 ImageNet 分类模型给图像打标签。
//
// 图像必须是 RGB 且为 3 维 (高, 宽, 通道)。尺寸与架构要求不一致时会被缩放（不保持宽高比）。
// 结果为一行：特征名是 top-N 类别标签，值是对应概率，按概率降序。
type ApplicationExtractor struct {
	arch    model.Architecture
	weights string
	model   core.Model
	index   *model.ClassIndex
	resizer *filter.ImageResizingFilter
	opts    *options
	name    string
}

// NewApplicationExtractor 创建固定架构抽取器。
//
// 架构名在加载任何模型之前校验，未知架构返回 UNKNOWN_ARCHITECTURE；
// 随后加载类别索引，最后通过 loader 加载权重（可能较慢，可能失败）。
func NewApplicationExtractor(ctx context.Context, loader model.Loader, opts ...Option) (*ApplicationExtractor, error) {
	o := buildOptions(opts)
	arch, err := model.Lookup(o.architecture)
	if err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeMissingDependency,
			"architecture %s requires a model loader", arch.Name)
	}
	if o.numPredictions <= 0 {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeInvalidConfig,
			"num_predictions must be positive, got %d", o.numPredictions)
	}

	index := o.classIndex
	if index == nil {
		index, err = model.LoadClassIndex(ctx, o.classIndexSrc, o.classIndexOpts...)
		if err != nil {
			return nil, fmt.Errorf("load class index: %w", err)
		}
	}

	start := time.Now()
	m, err := loader.LoadArchitecture(ctx, arch, o.weights)
	if err != nil {
		return nil, fmt.Errorf("load architecture %s: %w", arch.Name, err)
	}
	if m == nil {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeMissingDependency,
			"loader returned no model for architecture %s", arch.Name)
	}
	o.logger.Info("architecture loaded",
		zap.String("architecture", arch.Name),
		zap.String("weights", o.weights),
		zap.String("model", m.Name()),
		zap.Duration("elapsed", time.Since(start)))

	name := o.name
	if name == "" {
		name = arch.Name
	}
	return &ApplicationExtractor{
		arch:    arch,
		weights: o.weights,
		model:   m,
		index:   index,
		resizer: filter.NewImageResizingFilter(arch.Height(), arch.Width()),
		opts:    o,
		name:    name,
	}, nil
}

// Name 实现 Extractor
func (e *ApplicationExtractor) Name() string { return e.name }

// Architecture 返回使用的架构
func (e *ApplicationExtractor) Architecture() model.Architecture { return e.arch }

// Accepts 只接受图像
func (e *ApplicationExtractor) Accepts(kind core.StimKind) bool { return kind == core.KindImage }

// Extract 实现 Extractor
func (e *ApplicationExtractor) Extract(ctx context.Context, stim core.Stimulus) (res *core.Result, err error) {
	start := time.Now()
	defer func() { observe(e.opts, e.name, stim, start, err) }()

	img, ok := stim.(*core.ImageStim)
	if !ok {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeUnsupportedStimulus,
			"%s expects an image stimulus, got %s", e.name, stim.Kind())
	}
	if img.Data == nil {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeInvalidInput, "image stimulus %s has no data", img.ID)
	}
	if rank := img.Data.Rank(); rank != 3 {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeInvalidRank,
			"Stim data must have rank 3 but got rank %d", rank)
	}
	if img.Data.Shape[0] != e.arch.Height() || img.Data.Shape[1] != e.arch.Width() {
		img, err = e.resizer.Resize(img)
		if err != nil {
			return nil, err
		}
	}
	x, err := img.Data.AsFloat32()
	if err != nil {
		return nil, err
	}
	x, err = model.Preprocess(e.arch.Mode, x.ExpandDims(0))
	if err != nil {
		return nil, err
	}

	out, err := e.model.Infer(ctx, core.TensorValue(x))
	if err != nil {
		return nil, fmt.Errorf("%s: infer: %w", e.name, err)
	}
	preds, err := selectOutput(e.name, out, e.opts.outputKey)
	if err != nil {
		return nil, err
	}
	decoded, err := model.DecodePredictions(preds, e.index, e.opts.numPredictions)
	if err != nil {
		return nil, err
	}
	// 单个刺激，batch 只有一个样本
	top := decoded[0]
	labels := make([]string, len(top))
	probs := make([]float32, len(top))
	for i, p := range top {
		labels[i] = p.Label
		probs[i] = float32(p.Probability)
	}
	data, err := core.NewFloat32([]int{1, len(probs)}, probs)
	if err != nil {
		return nil, err
	}
	return newResult(e.name, stim, labels, data), nil
}

// Close 释放模型
func (e *ApplicationExtractor) Close() error {
	return e.model.Close()
}

var _ Extractor = (*ApplicationExtractor)(nil)
