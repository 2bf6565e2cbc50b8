package service

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/rushteam/featx/core"
)

// ONNXRuntime 持有进程级的 ONNX Runtime 环境。
//
// onnxruntime 共享库（libonnxruntime.so / onnxruntime.dll）由调用方提供路径，
// 环境在第一次 Open 时初始化。未注入 ONNXRuntime 的 Opener 遇到 .onnx 路径时
// 立即返回 MISSING_DEPENDENCY。
type ONNXRuntime struct {
	libraryPath string

	once sync.Once
	err  error
}

// NewONNXRuntime 创建 ONNX Runtime 环境；libraryPath 为空时使用 onnxruntime_go 的默认查找路径
func NewONNXRuntime(libraryPath string) *ONNXRuntime {
	return &ONNXRuntime{libraryPath: libraryPath}
}

func (r *ONNXRuntime) init() error {
	r.once.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if r.libraryPath != "" {
			ort.SetSharedLibraryPath(r.libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			r.err = core.Errorf(core.ModuleService, core.ErrorCodeMissingDependency,
				"onnxruntime: initialize environment: %v", err)
		}
	})
	return r.err
}

// ONNXOption 配置 ONNX 模型
type ONNXOption func(*ONNXModel)

// WithONNXInputNames 指定输入名称（默认读取模型文件中的全部输入）
func WithONNXInputNames(names ...string) ONNXOption {
	return func(m *ONNXModel) {
		m.inputNames = names
	}
}

// WithONNXOutputNames 指定输出名称（默认读取模型文件中的全部输出）
func WithONNXOutputNames(names ...string) ONNXOption {
	return func(m *ONNXModel) {
		m.outputNames = names
	}
}

// Open 加载 .onnx 模型文件
func (r *ONNXRuntime) Open(path string, opts ...ONNXOption) (*ONNXModel, error) {
	if err := r.init(); err != nil {
		return nil, err
	}
	m := &ONNXModel{path: path}
	for _, opt := range opts {
		opt(m)
	}
	if len(m.inputNames) == 0 || len(m.outputNames) == 0 {
		inputs, outputs, err := ort.GetInputOutputInfo(path)
		if err != nil {
			return nil, fmt.Errorf("onnxruntime: read %s: %w", path, err)
		}
		if len(m.inputNames) == 0 {
			for _, info := range inputs {
				m.inputNames = append(m.inputNames, info.Name)
			}
		}
		if len(m.outputNames) == 0 {
			for _, info := range outputs {
				m.outputNames = append(m.outputNames, info.Name)
			}
		}
	}
	session, err := ort.NewDynamicAdvancedSession(path, m.inputNames, m.outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("onnxruntime: create session for %s: %w", path, err)
	}
	m.session = session
	return m, nil
}

// Close 销毁 ONNX Runtime 环境（进程退出前调用）
func (r *ONNXRuntime) Close() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXModel 是本地 ONNX Runtime 会话的 core.Model 实现。
//
// 输入：
//   - 单个张量：模型必须只有一个输入
//   - keyed：按输入名称取张量，缺少任一输入报错
//
// 输出：单个输出返回张量，多个输出返回 keyed。
// 支持 float32 和 int64 张量；字符串张量不受支持。
type ONNXModel struct {
	path        string
	inputNames  []string
	outputNames []string
	session     *ort.DynamicAdvancedSession
}

// Name 实现 core.Model
func (m *ONNXModel) Name() string { return m.path }

// InputNames 返回模型输入名称
func (m *ONNXModel) InputNames() []string { return m.inputNames }

// OutputNames 返回模型输出名称
func (m *ONNXModel) OutputNames() []string { return m.outputNames }

// Infer 实现 core.Model
func (m *ONNXModel) Infer(ctx context.Context, in core.Value) (core.Value, error) {
	if err := ctx.Err(); err != nil {
		return core.Value{}, err
	}
	tensors, err := m.inputTensors(in)
	if err != nil {
		return core.Value{}, err
	}
	inputs := make([]ort.Value, len(tensors))
	for i, t := range tensors {
		v, err := toORT(t)
		if err != nil {
			destroyAll(inputs[:i])
			return core.Value{}, fmt.Errorf("onnxruntime input %q: %w", m.inputNames[i], err)
		}
		inputs[i] = v
	}
	defer destroyAll(inputs)

	// nil 输出由 onnxruntime 按实际形状分配
	outputs := make([]ort.Value, len(m.outputNames))
	if err := m.session.Run(inputs, outputs); err != nil {
		destroyAll(outputs)
		return core.Value{}, fmt.Errorf("onnxruntime run %s: %w", m.path, err)
	}
	defer destroyAll(outputs)

	results := make(map[string]*core.Tensor, len(outputs))
	for i, o := range outputs {
		t, err := fromORT(o)
		if err != nil {
			return core.Value{}, fmt.Errorf("onnxruntime output %q: %w", m.outputNames[i], err)
		}
		results[m.outputNames[i]] = t
	}
	if len(results) == 1 {
		return core.TensorValue(results[m.outputNames[0]]), nil
	}
	return core.KeyedValue(results), nil
}

func (m *ONNXModel) inputTensors(in core.Value) ([]*core.Tensor, error) {
	if !in.IsKeyed() {
		if len(m.inputNames) != 1 {
			return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidInput,
				"onnxruntime: model %s expects named inputs %v", m.path, m.inputNames)
		}
		if in.Tensor == nil {
			return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidInput, "onnxruntime: empty input")
		}
		return []*core.Tensor{in.Tensor}, nil
	}
	out := make([]*core.Tensor, len(m.inputNames))
	for i, name := range m.inputNames {
		t, ok := in.Keyed[name]
		if !ok {
			return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidInput,
				"onnxruntime: missing input %q (got %v)", name, in.Keys())
		}
		out[i] = t
	}
	return out, nil
}

func toORT(t *core.Tensor) (ort.Value, error) {
	dims := make([]int64, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = int64(d)
	}
	shape := ort.NewShape(dims...)
	switch t.DType {
	case core.Float32:
		return ort.NewTensor(shape, t.Floats)
	case core.Int64:
		return ort.NewTensor(shape, t.Ints)
	default:
		return nil, core.Errorf(core.ModuleService, core.ErrorCodeNotSupported, "%s tensors are not supported", t.DType)
	}
}

// fromORT 拷贝输出数据，随后 ort 张量会被销毁
func fromORT(v ort.Value) (*core.Tensor, error) {
	shape := make([]int, 0, len(v.GetShape()))
	for _, d := range v.GetShape() {
		shape = append(shape, int(d))
	}
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return core.NewFloat32(shape, append([]float32(nil), t.GetData()...))
	case *ort.Tensor[int64]:
		return core.NewInt64(shape, append([]int64(nil), t.GetData()...))
	case *ort.Tensor[int32]:
		data := t.GetData()
		ints := make([]int64, len(data))
		for i, x := range data {
			ints[i] = int64(x)
		}
		return core.NewInt64(shape, ints)
	case *ort.Tensor[float64]:
		data := t.GetData()
		floats := make([]float32, len(data))
		for i, x := range data {
			floats[i] = float32(x)
		}
		return core.NewFloat32(shape, floats)
	default:
		return nil, core.Errorf(core.ModuleService, core.ErrorCodeNotSupported, "unsupported output value %T", v)
	}
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			_ = v.Destroy()
		}
	}
}

// Close 实现 core.Model
func (m *ONNXModel) Close() error {
	if m.session == nil {
		return nil
	}
	return m.session.Destroy()
}

var _ core.Model = (*ONNXModel)(nil)
