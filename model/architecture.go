// Package model 描述 keras.applications 风格的固定架构目录：
// 每个架构的预处理方式、输入形状、ImageNet 类别索引和 top-K 解码。
//
// 本包不包含任何网络实现，推理通过 Loader 返回的 core.Model 完成。
package model

import (
	"context"
	"strings"

	"github.com/rushteam/featx/core"
)

// PreprocessMode 是 keras imagenet_utils 的归一化方式。
type PreprocessMode string

const (
	// ModeCaffe RGB→BGR，减去 ImageNet BGR 均值，不缩放
	ModeCaffe PreprocessMode = "caffe"
	// ModeTF 缩放到 [-1, 1]
	ModeTF PreprocessMode = "tf"
	// ModeTorch 缩放到 [0, 1] 后按 ImageNet mean/std 标准化
	ModeTorch PreprocessMode = "torch"
)

// Architecture 是一个固定架构：名称、预处理方式、输入形状（高、宽、通道）。
type Architecture struct {
	Name       string
	Mode       PreprocessMode
	InputShape [3]int
}

// Height 返回输入高度
func (a Architecture) Height() int { return a.InputShape[0] }

// Width 返回输入宽度
func (a Architecture) Width() int { return a.InputShape[1] }

// Shape 以切片返回输入形状
func (a Architecture) Shape() []int { return a.InputShape[:] }

// DefaultArchitecture 是未指定架构时使用的架构
const DefaultArchitecture = "inceptionv3"

// DefaultWeights 表示使用 ImageNet 预训练权重
const DefaultWeights = "imagenet"

// catalogue 保持固定顺序，错误消息按此顺序列出可用架构。
var catalogue = []Architecture{
	{Name: "vgg16", Mode: ModeCaffe, InputShape: [3]int{224, 224, 3}},
	{Name: "vgg19", Mode: ModeCaffe, InputShape: [3]int{224, 224, 3}},
	{Name: "resnet50", Mode: ModeCaffe, InputShape: [3]int{224, 224, 3}},
	{Name: "inception_resnetv2", Mode: ModeTF, InputShape: [3]int{299, 299, 3}},
	{Name: "inceptionv3", Mode: ModeTF, InputShape: [3]int{299, 299, 3}},
	{Name: "xception", Mode: ModeTF, InputShape: [3]int{299, 299, 3}},
	{Name: "densenet121", Mode: ModeTorch, InputShape: [3]int{224, 224, 3}},
	{Name: "densenet169", Mode: ModeTorch, InputShape: [3]int{224, 224, 3}},
	{Name: "densenet201", Mode: ModeTorch, InputShape: [3]int{224, 224, 3}},
	{Name: "nasnetlarge", Mode: ModeTF, InputShape: [3]int{331, 331, 3}},
	{Name: "nasnetmobile", Mode: ModeTF, InputShape: [3]int{224, 224, 3}},
}

// Architectures 返回全部架构（目录顺序）
func Architectures() []Architecture {
	return append([]Architecture(nil), catalogue...)
}

// Names 返回全部架构名称（目录顺序）
func Names() []string {
	names := make([]string, len(catalogue))
	for i, a := range catalogue {
		names[i] = a.Name
	}
	return names
}

// Lookup 按名称查找架构，大小写不敏感。
func Lookup(name string) (Architecture, error) {
	lower := strings.ToLower(name)
	for _, a := range catalogue {
		if a.Name == lower {
			return a, nil
		}
	}
	return Architecture{}, core.Errorf(core.ModuleModel, core.ErrorCodeUnknownArchitecture,
		"Unknown architecture '%s'. Available architectures are '%s'.", name, strings.Join(Names(), "', '"))
}

// Loader 按架构和权重加载可推理的模型。
//
// weights 为 "imagenet" 时使用 ImageNet 预训练权重，否则为权重文件路径或 URL。
// 实现：service.ArchitectureLoader
type Loader interface {
	LoadArchitecture(ctx context.Context, arch Architecture, weights string) (core.Model, error)
}

// LoaderFunc 将函数适配为 Loader
type LoaderFunc func(ctx context.Context, arch Architecture, weights string) (core.Model, error)

// LoadArchitecture 实现 Loader
func (f LoaderFunc) LoadArchitecture(ctx context.Context, arch Architecture, weights string) (core.Model, error) {
	return f(ctx, arch, weights)
}
