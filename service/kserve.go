package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rushteam/featx/core"
)

// KServeClient 是 KServe V2（Open Inference Protocol）的 core.Model 实现。
//
// KServe V2：
//   - Infer: POST /v2/models/{model_name}[/versions/{version}]/infer
//   - 请求：{"inputs": [{"name": "input0", "shape": [1, 224, 224, 3], "datatype": "FP32", "data": [...]}]}
//   - 响应：{"outputs": [{"name": "...", "shape": [...], "datatype": "FP32", "data": [...]}]}
//   - Server Ready: GET /v2/health/ready
//
// 单个输出映射为张量；多个输出（或 WithKServeKeyedOutputs）映射为 keyed 输出。
// V1 协议与 TF Serving REST 相同，使用 TFServingClient。
type KServeClient struct {
	// Endpoint 服务根地址，如 "http://localhost:8000"
	Endpoint string
	// ModelName 模型名称
	ModelName string
	// ModelVersion 模型版本（可选，路径中会带 /versions/{version}）
	ModelVersion string
	// InputName 非 keyed 输入的张量名称，默认 "input0"
	InputName string
	// OutputName 只取指定名称的输出（可选）；为空时返回全部输出
	OutputName string
	// KeyedOutputs 单输出也按 keyed 返回
	KeyedOutputs bool
	// Timeout 请求超时
	Timeout time.Duration
	// Auth 认证配置
	Auth *AuthConfig

	httpClient *http.Client
	transport  httpTransport
}

// NewKServeClient 创建 KServe 客户端。endpoint 为根地址（如 http://localhost:8000），modelName 为模型名。
func NewKServeClient(endpoint, modelName string, opts ...KServeOption) *KServeClient {
	c := &KServeClient{
		Endpoint:  endpoint,
		ModelName: modelName,
		InputName: "input0",
		Timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = newHTTPTransport("kserve v2", c.Timeout, c.Auth, c.httpClient)
	return c
}

// KServeOption 配置 KServe 客户端
type KServeOption func(*KServeClient)

// WithKServeVersion 设置模型版本
func WithKServeVersion(version string) KServeOption {
	return func(c *KServeClient) {
		c.ModelVersion = version
	}
}

// WithKServeInputName 设置非 keyed 输入的张量名称
func WithKServeInputName(name string) KServeOption {
	return func(c *KServeClient) {
		c.InputName = name
	}
}

// WithKServeOutputName 只取指定名称的输出张量
func WithKServeOutputName(name string) KServeOption {
	return func(c *KServeClient) {
		c.OutputName = name
	}
}

// WithKServeKeyedOutputs 单输出也按 keyed 返回（供 output_key 选择）
func WithKServeKeyedOutputs() KServeOption {
	return func(c *KServeClient) {
		c.KeyedOutputs = true
	}
}

// WithKServeTimeout 设置超时
func WithKServeTimeout(timeout time.Duration) KServeOption {
	return func(c *KServeClient) {
		c.Timeout = timeout
	}
}

// WithKServeAuth 设置认证
func WithKServeAuth(auth *AuthConfig) KServeOption {
	return func(c *KServeClient) {
		c.Auth = auth
	}
}

// WithKServeHTTPClient 设置自定义 HTTP 客户端
func WithKServeHTTPClient(client *http.Client) KServeOption {
	return func(c *KServeClient) {
		c.httpClient = client
	}
}

// Name 实现 core.Model
func (c *KServeClient) Name() string {
	if c.ModelVersion != "" {
		return c.ModelName + "@" + c.ModelVersion
	}
	return c.ModelName
}

type v2Tensor struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	Datatype string `json:"datatype"`
	Data     []any  `json:"data"`
}

type v2InferResponse struct {
	ModelName    string     `json:"model_name"`
	ModelVersion string     `json:"model_version"`
	Outputs      []v2Tensor `json:"outputs"`
}

// Infer 实现 core.Model
func (c *KServeClient) Infer(ctx context.Context, in core.Value) (core.Value, error) {
	inputs, err := c.encodeInputs(in)
	if err != nil {
		return core.Value{}, err
	}
	url := fmt.Sprintf("%s/v2/models/%s", c.Endpoint, c.ModelName)
	if c.ModelVersion != "" {
		url = fmt.Sprintf("%s/versions/%s", url, c.ModelVersion)
	}

	var out v2InferResponse
	if err := c.transport.postJSON(ctx, url+"/infer", map[string]any{"inputs": inputs}, &out); err != nil {
		return core.Value{}, err
	}
	return c.decodeOutputs(out.Outputs)
}

func (c *KServeClient) encodeInputs(in core.Value) ([]v2Tensor, error) {
	if !in.IsKeyed() {
		if in.Tensor == nil {
			return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidInput, "kserve v2: empty input")
		}
		return []v2Tensor{encodeV2Tensor(c.InputName, in.Tensor)}, nil
	}
	inputs := make([]v2Tensor, 0, len(in.Keyed))
	for _, k := range in.Keys() {
		inputs = append(inputs, encodeV2Tensor(k, in.Keyed[k]))
	}
	return inputs, nil
}

func encodeV2Tensor(name string, t *core.Tensor) v2Tensor {
	out := v2Tensor{Name: name, Shape: t.Shape}
	switch t.DType {
	case core.Int64:
		out.Datatype = "INT64"
		out.Data = make([]any, len(t.Ints))
		for i, v := range t.Ints {
			out.Data[i] = v
		}
	case core.String:
		out.Datatype = "BYTES"
		out.Data = make([]any, len(t.Strings))
		for i, v := range t.Strings {
			out.Data[i] = v
		}
	default:
		out.Datatype = "FP32"
		out.Data = make([]any, len(t.Floats))
		for i, v := range t.Floats {
			out.Data[i] = v
		}
	}
	return out
}

func (c *KServeClient) decodeOutputs(outputs []v2Tensor) (core.Value, error) {
	if len(outputs) == 0 {
		return core.Value{}, fmt.Errorf("kserve v2 empty outputs")
	}
	if c.OutputName != "" {
		for _, o := range outputs {
			if o.Name == c.OutputName {
				t, err := decodeV2Tensor(o)
				return core.TensorValue(t), err
			}
		}
		names := make([]string, 0, len(outputs))
		for _, o := range outputs {
			names = append(names, o.Name)
		}
		sort.Strings(names)
		return core.Value{}, core.Errorf(core.ModuleService, core.ErrorCodeOutputKeyNotFound,
			"kserve v2: output %q not in response (outputs: %v)", c.OutputName, names)
	}
	if len(outputs) == 1 && !c.KeyedOutputs {
		t, err := decodeV2Tensor(outputs[0])
		if err != nil {
			return core.Value{}, err
		}
		return core.TensorValue(t), nil
	}
	keyed := make(map[string]*core.Tensor, len(outputs))
	for _, o := range outputs {
		t, err := decodeV2Tensor(o)
		if err != nil {
			return core.Value{}, err
		}
		keyed[o.Name] = t
	}
	return core.KeyedValue(keyed), nil
}

// decodeV2Tensor data 为行优先展平数组；BYTES 解码为字符串张量，整数类型解码为 int64 张量。
func decodeV2Tensor(o v2Tensor) (*core.Tensor, error) {
	shape := o.Shape
	if len(shape) == 0 {
		shape = []int{len(o.Data)}
	}
	switch o.Datatype {
	case "BYTES":
		data := make([]string, len(o.Data))
		for i, v := range o.Data {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("kserve v2 output %q: unexpected element %T", o.Name, v)
			}
			data[i] = s
		}
		return core.NewString(shape, data)
	case "INT8", "INT16", "INT32", "INT64", "UINT8", "UINT16", "UINT32", "UINT64", "BOOL":
		data := make([]int64, len(o.Data))
		for i, v := range o.Data {
			f, ok := v2Number(v)
			if !ok {
				return nil, fmt.Errorf("kserve v2 output %q: unexpected element %T", o.Name, v)
			}
			data[i] = int64(f)
		}
		return core.NewInt64(shape, data)
	default:
		data := make([]float32, len(o.Data))
		for i, v := range o.Data {
			f, ok := v2Number(v)
			if !ok {
				return nil, fmt.Errorf("kserve v2 output %q: unexpected element %T", o.Name, v)
			}
			data[i] = float32(f)
		}
		return core.NewFloat32(shape, data)
	}
}

func v2Number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Health 使用 GET /v2/health/ready
func (c *KServeClient) Health(ctx context.Context) error {
	return c.transport.get(ctx, fmt.Sprintf("%s/v2/health/ready", c.Endpoint))
}

// Close 实现 core.Model
func (c *KServeClient) Close() error {
	return nil
}

var (
	_ core.Model    = (*KServeClient)(nil)
	_ HealthChecker = (*KServeClient)(nil)
)
