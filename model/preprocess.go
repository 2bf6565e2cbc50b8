package model

import "github.com/rushteam/featx/core"

var (
	// caffeMeans 是 BGR 顺序的 ImageNet 均值
	caffeMeans = [3]float32{103.939, 116.779, 123.68}

	torchMean = [3]float32{0.485, 0.456, 0.406}
	torchStd  = [3]float32{0.229, 0.224, 0.225}
)

// Preprocess 按 keras imagenet_utils.preprocess_input 的语义归一化像素。
//
// x 为 float32 张量，最后一维是 RGB 通道（HWC 或 NHWC），取值 0~255。
// 返回新张量，不修改输入。
func Preprocess(mode PreprocessMode, x *core.Tensor) (*core.Tensor, error) {
	if x == nil || x.DType != core.Float32 {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput, "preprocess expects a float32 tensor")
	}
	if x.Rank() == 0 || x.Shape[x.Rank()-1] != 3 {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
			"preprocess expects 3 channels in the last dimension, got shape %v", x.Shape)
	}
	out := x.Clone()
	data := out.Floats
	switch mode {
	case ModeCaffe:
		for i := 0; i+2 < len(data); i += 3 {
			r, g, b := data[i], data[i+1], data[i+2]
			data[i] = b - caffeMeans[0]
			data[i+1] = g - caffeMeans[1]
			data[i+2] = r - caffeMeans[2]
		}
	case ModeTF:
		for i, v := range data {
			data[i] = v/127.5 - 1
		}
	case ModeTorch:
		for i, v := range data {
			c := i % 3
			data[i] = (v/255 - torchMean[c]) / torchStd[c]
		}
	default:
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidConfig, "unknown preprocess mode %q", mode)
	}
	return out, nil
}
