package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rushteam/featx/core"
)

// prepareFunc 把刺激转为模型输入
type prepareFunc func(ctx context.Context, stim core.Stimulus) (core.Value, error)

// HubExtractor 是通用的预训练模型抽取器。
//
// 流程：
//   - preprocess：图像直接使用像素张量，文本包装为 [1] 的字符串张量，音频为 [n] 的采样张量
//   - transform_inp：可选的输入变换（WithInputTransform）
//   - invoke：model.Infer
//   - postprocess：keyed 输出按 output key 选择，单个张量直接使用
//
// 特征名优先级：WithFeatures > WithLabels > WithTask；都没有时由结果自动命名。
type HubExtractor struct {
	model    core.Model
	opts     *options
	name     string
	features []string
	kinds    []core.StimKind
	prepare  prepareFunc
}

// NewHubExtractor 创建通用抽取器，model 为 nil 时返回 MISSING_DEPENDENCY
func NewHubExtractor(m core.Model, opts ...Option) (*HubExtractor, error) {
	return newHub(m, buildOptions(opts), []core.StimKind{core.KindImage, core.KindText, core.KindAudio})
}

func newHub(m core.Model, o *options, defaultKinds []core.StimKind) (*HubExtractor, error) {
	if m == nil {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeMissingDependency, "extractor requires a model")
	}
	e := &HubExtractor{
		model:    m,
		opts:     o,
		name:     o.name,
		features: featureNames(o),
		kinds:    o.kinds,
		prepare:  rawInput,
	}
	if e.name == "" {
		e.name = m.Name()
	}
	if len(e.kinds) == 0 {
		e.kinds = defaultKinds
	}
	return e, nil
}

func featureNames(o *options) []string {
	switch {
	case len(o.features) > 0:
		return append([]string(nil), o.features...)
	case len(o.labels) > 0:
		return append([]string(nil), o.labels...)
	case o.task != "":
		return []string{o.task}
	default:
		return nil
	}
}

// Name 实现 Extractor
func (e *HubExtractor) Name() string { return e.name }

// Features 返回配置的特征名
func (e *HubExtractor) Features() []string { return append([]string(nil), e.features...) }

// Model 返回底层模型
func (e *HubExtractor) Model() core.Model { return e.model }

// Accepts 实现 Extractor
func (e *HubExtractor) Accepts(kind core.StimKind) bool {
	for _, k := range e.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Extract 实现 Extractor
func (e *HubExtractor) Extract(ctx context.Context, stim core.Stimulus) (res *core.Result, err error) {
	start := time.Now()
	defer func() { observe(e.opts, e.name, stim, start, err) }()

	if !e.Accepts(stim.Kind()) {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeUnsupportedStimulus,
			"%s does not accept %s stimuli", e.name, stim.Kind())
	}
	in, err := e.prepare(ctx, stim)
	if err != nil {
		return nil, err
	}
	if e.opts.transformInp != nil {
		in, err = e.opts.transformInp(in)
		if err != nil {
			return nil, fmt.Errorf("%s: transform input: %w", e.name, err)
		}
	}
	out, err := e.model.Infer(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: infer: %w", e.name, err)
	}
	data, err := selectOutput(e.name, out, e.opts.outputKey)
	if err != nil {
		return nil, err
	}
	if err := checkFeatureCount(e.name, e.features, data); err != nil {
		return nil, err
	}
	return newResult(e.name, stim, e.features, data), nil
}

// Close 释放模型
func (e *HubExtractor) Close() error {
	return e.model.Close()
}

// rawInput 是默认的 preprocess：直接使用刺激的数据
func rawInput(_ context.Context, stim core.Stimulus) (core.Value, error) {
	switch s := stim.(type) {
	case *core.ImageStim:
		if s.Data == nil {
			return core.Value{}, core.Errorf(core.ModuleExtractor, core.ErrorCodeInvalidInput, "image stimulus %s has no data", s.ID)
		}
		return core.TensorValue(s.Data), nil
	case *core.TextStim:
		return textInput(s)
	case *core.AudioStim:
		return core.TensorValue(core.Vector(s.Samples)), nil
	default:
		return core.Value{}, core.Errorf(core.ModuleExtractor, core.ErrorCodeUnsupportedStimulus,
			"no default input for %s stimuli", stim.Kind())
	}
}

func textInput(s *core.TextStim) (core.Value, error) {
	t, err := core.NewString([]int{1}, []string{s.Text})
	if err != nil {
		return core.Value{}, err
	}
	return core.TensorValue(t), nil
}

// selectOutput 从模型输出中取出结果张量。
//
// key 为 nil 或空字符串时不做选择：单个张量直接返回，只有一个 key 的 keyed 输出取该 key，
// 多个 key 时返回 OUTPUT_KEY_REQUIRED。
func selectOutput(name string, out core.Value, key *string) (*core.Tensor, error) {
	if key != nil && *key != "" {
		if !out.IsKeyed() {
			return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeOutputNotKeyed,
				"%s: output key %q was requested but the model output is not a dictionary; "+
					"construct the extractor without an output key", name, *key)
		}
		t, ok := out.Keyed[*key]
		if !ok {
			return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeOutputKeyNotFound,
				"%s: output key %q not found in model output. Check which keys are available: %s",
				name, *key, strings.Join(out.Keys(), ", "))
		}
		return t, nil
	}
	if !out.IsKeyed() {
		if out.Tensor == nil {
			return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeInvalidInput, "%s: model returned no output", name)
		}
		return out.Tensor, nil
	}
	keys := out.Keys()
	if len(keys) == 1 {
		return out.Keyed[keys[0]], nil
	}
	return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeOutputKeyRequired,
		"%s: model output is a dictionary with keys %s; set an output key", name, strings.Join(keys, ", "))
}

// checkFeatureCount 校验每行元素数与特征名数量一致（单个特征名承载整行数组）
func checkFeatureCount(name string, features []string, data *core.Tensor) error {
	if data == nil || len(features) <= 1 {
		return nil
	}
	rows := data.Rows()
	if rows == 0 {
		return nil
	}
	if perRow := data.Size() / rows; perRow != len(features) {
		return core.Errorf(core.ModuleExtractor, core.ErrorCodeFeatureCountMismatch,
			"%s: model output has %d values per row but %d feature names were given", name, perRow, len(features))
	}
	return nil
}

func newResult(name string, stim core.Stimulus, features []string, data *core.Tensor) *core.Result {
	return &core.Result{
		Extractor: name,
		Stimulus:  stim.Metadata().Clone(),
		Kind:      stim.Kind(),
		Features:  append([]string(nil), features...),
		Data:      data,
	}
}

var _ Extractor = (*HubExtractor)(nil)
