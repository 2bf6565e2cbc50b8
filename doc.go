// Package featx 用预训练模型从刺激（图像、文本、音频）中抽取特征。
//
// 设计要点：
// - Extractor-first: 每个抽取器封装一个模型，输入单个刺激，输出带特征名的 core.Result
// - Model 可替换: TF Serving / KServe / 本地 ONNX / 自定义函数均实现 core.Model
// - Pipeline 可配置: YAML 声明抽取器，按类型注册构建，结果合并为 wide / long 表
package featx

import (
	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
	"github.com/rushteam/featx/pipeline"
)

// 轻量 facade：便于用户直接 import "featx" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Extractor = extractor.Extractor
type Model = core.Model
type Stimulus = core.Stimulus
type Result = core.Result
type StimKind = core.StimKind

const (
	KindImage       = core.KindImage
	KindText        = core.KindText
	KindComplexText = core.KindComplexText
	KindAudio       = core.KindAudio
)
