package extractor

import (
	"context"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/filter"
)

// ImageExtractor 是图像模型抽取器。
//
// preprocess：可选缩放到 reshape_input 的 (高, 宽)，可选把像素缩放到 0~1，
// 然后增加长度为 1 的 batch 维度，即输入形状为 [1, H, W, C]。
type ImageExtractor struct {
	*HubExtractor
	resizer *filter.ImageResizingFilter
	rescale bool
}

// NewImageExtractor 创建图像抽取器
func NewImageExtractor(m core.Model, opts ...Option) (*ImageExtractor, error) {
	return newImage(m, buildOptions(opts))
}

// NewImageEmbeddingExtractor 创建图像嵌入抽取器（task 为 embedding）
func NewImageEmbeddingExtractor(m core.Model, opts ...Option) (*ImageExtractor, error) {
	o := buildOptions(opts)
	if o.task == "" {
		o.task = "embedding"
	}
	return newImage(m, o)
}

// NewImageClassificationExtractor 创建图像分类抽取器（task 为 classification）
func NewImageClassificationExtractor(m core.Model, opts ...Option) (*ImageExtractor, error) {
	o := buildOptions(opts)
	if o.task == "" {
		o.task = "classification"
	}
	return newImage(m, o)
}

func newImage(m core.Model, o *options) (*ImageExtractor, error) {
	hub, err := newHub(m, o, []core.StimKind{core.KindImage})
	if err != nil {
		return nil, err
	}
	e := &ImageExtractor{HubExtractor: hub, rescale: o.rescaleRGB}
	if len(o.reshapeInput) > 0 {
		if len(o.reshapeInput) < 2 || o.reshapeInput[0] <= 0 || o.reshapeInput[1] <= 0 {
			return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeInvalidConfig,
				"reshape_input must be (height, width, channels), got %v", o.reshapeInput)
		}
		e.resizer = filter.NewImageResizingFilter(o.reshapeInput[0], o.reshapeInput[1])
	}
	hub.prepare = e.preprocess
	return e, nil
}

func (e *ImageExtractor) preprocess(_ context.Context, stim core.Stimulus) (core.Value, error) {
	img, ok := stim.(*core.ImageStim)
	if !ok {
		return core.Value{}, core.Errorf(core.ModuleExtractor, core.ErrorCodeUnsupportedStimulus,
			"%s expects an image stimulus, got %s", e.name, stim.Kind())
	}
	if img.Data == nil {
		return core.Value{}, core.Errorf(core.ModuleExtractor, core.ErrorCodeInvalidInput, "image stimulus %s has no data", img.ID)
	}
	if e.resizer != nil {
		resized, err := e.resizer.Resize(img)
		if err != nil {
			return core.Value{}, err
		}
		img = resized
	}
	x, err := img.Data.AsFloat32()
	if err != nil {
		return core.Value{}, err
	}
	if e.rescale {
		x = x.Clone()
		for i, v := range x.Floats {
			x.Floats[i] = v / 255
		}
	}
	return core.TensorValue(x.ExpandDims(0)), nil
}

var _ Extractor = (*ImageExtractor)(nil)
