package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/featx/core"
)

// DefaultTextOutputKey 是文本嵌入模型默认选择的输出 key
const DefaultTextOutputKey = "default"

// TextExtractor 是文本模型抽取器。
//
// 文本被包装为形状 [1] 的字符串张量；配置了预处理模型（WithPreprocessor）时，
// 先调用预处理模型（如 tokenizer），其输出作为主模型的输入。
type TextExtractor struct {
	*HubExtractor
	preprocessor core.Model
}

// NewTextExtractor 创建文本抽取器
func NewTextExtractor(m core.Model, opts ...Option) (*TextExtractor, error) {
	return newText(m, buildOptions(opts))
}

// NewTextEmbeddingExtractor 创建文本嵌入抽取器：task 为 embedding，
// 默认选择 "default" 输出，WithOutputKey("") 可关闭选择。
func NewTextEmbeddingExtractor(m core.Model, opts ...Option) (*TextExtractor, error) {
	o := buildOptions(opts)
	if o.task == "" {
		o.task = "embedding"
	}
	if o.outputKey == nil {
		key := DefaultTextOutputKey
		o.outputKey = &key
	}
	return newText(m, o)
}

func newText(m core.Model, o *options) (*TextExtractor, error) {
	hub, err := newHub(m, o, []core.StimKind{core.KindText})
	if err != nil {
		return nil, err
	}
	e := &TextExtractor{HubExtractor: hub, preprocessor: o.preprocessor}
	hub.prepare = e.preprocess
	return e, nil
}

func (e *TextExtractor) preprocess(ctx context.Context, stim core.Stimulus) (core.Value, error) {
	txt, ok := stim.(*core.TextStim)
	if !ok {
		return core.Value{}, core.Errorf(core.ModuleExtractor, core.ErrorCodeUnsupportedStimulus,
			"%s expects a text stimulus, got %s", e.name, stim.Kind())
	}
	in, err := textInput(txt)
	if err != nil {
		return core.Value{}, err
	}
	if e.preprocessor == nil {
		return in, nil
	}
	out, err := e.preprocessor.Infer(ctx, in)
	if err != nil {
		return core.Value{}, fmt.Errorf("%s: preprocessor %s: %w", e.name, e.preprocessor.Name(), err)
	}
	return out, nil
}

// Close 释放主模型和预处理模型
func (e *TextExtractor) Close() error {
	err := e.model.Close()
	if e.preprocessor != nil {
		err = errors.Join(err, e.preprocessor.Close())
	}
	return err
}

var _ Extractor = (*TextExtractor)(nil)
