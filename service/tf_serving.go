package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rushteam/featx/core"
)

// TFServingClient 是 TensorFlow Serving REST API 的 core.Model 实现。
//
// 使用列式（columnar）请求格式：
//   - Predict: POST /v1/models/{name}[/versions/{v}]:predict
//   - 请求：{"signature_name": "serving_default", "inputs": <嵌套数组> 或 {"name": <嵌套数组>}}
//   - 响应：{"outputs": <嵌套数组>}（单输出）或 {"outputs": {"name": ...}}（多输出，keyed）
//   - Model Status: GET /v1/models/{name}
//
// 使用场景：
//   - TF Hub SavedModel 部署到 TF Serving 后由 HubExtractor 调用
//   - keras.applications 模型导出后由 ApplicationExtractor 调用
type TFServingClient struct {
	// Endpoint 服务根地址，如 "http://localhost:8501"
	Endpoint string

	// ModelName 模型名称
	ModelName string

	// ModelVersion 模型版本（可选，为空则使用最新版本）
	ModelVersion string

	// SignatureName 签名名称（默认为 "serving_default"）
	SignatureName string

	// Timeout 超时时间
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig

	httpClient *http.Client
	transport  httpTransport
}

// NewTFServingClient 创建一个新的 TF Serving 客户端。
func NewTFServingClient(endpoint, modelName string, opts ...TFServingOption) *TFServingClient {
	client := &TFServingClient{
		Endpoint:      endpoint,
		ModelName:     modelName,
		SignatureName: "serving_default",
		Timeout:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.transport = newHTTPTransport("tf serving", client.Timeout, client.Auth, client.httpClient)
	return client
}

// TFServingOption TF Serving 客户端配置选项
type TFServingOption func(*TFServingClient)

// WithTFServingVersion 设置模型版本
func WithTFServingVersion(version string) TFServingOption {
	return func(c *TFServingClient) {
		c.ModelVersion = version
	}
}

// WithTFServingSignature 设置签名名称
func WithTFServingSignature(signatureName string) TFServingOption {
	return func(c *TFServingClient) {
		c.SignatureName = signatureName
	}
}

// WithTFServingTimeout 设置超时时间
func WithTFServingTimeout(timeout time.Duration) TFServingOption {
	return func(c *TFServingClient) {
		c.Timeout = timeout
	}
}

// WithTFServingAuth 设置认证信息
func WithTFServingAuth(auth *AuthConfig) TFServingOption {
	return func(c *TFServingClient) {
		c.Auth = auth
	}
}

// WithTFServingHTTPClient 设置自定义 HTTP 客户端
func WithTFServingHTTPClient(client *http.Client) TFServingOption {
	return func(c *TFServingClient) {
		c.httpClient = client
	}
}

// Name 实现 core.Model
func (c *TFServingClient) Name() string {
	if c.ModelVersion != "" {
		return c.ModelName + "@" + c.ModelVersion
	}
	return c.ModelName
}

func (c *TFServingClient) modelURL() string {
	url := fmt.Sprintf("%s/v1/models/%s", c.Endpoint, c.ModelName)
	if c.ModelVersion != "" {
		url = fmt.Sprintf("%s/versions/%s", url, c.ModelVersion)
	}
	return url
}

// Infer 实现 core.Model
func (c *TFServingClient) Infer(ctx context.Context, in core.Value) (core.Value, error) {
	inputs, err := encodeTFInputs(in)
	if err != nil {
		return core.Value{}, err
	}
	body := map[string]any{"inputs": inputs}
	if c.SignatureName != "" {
		body["signature_name"] = c.SignatureName
	}

	var result struct {
		Outputs     json.RawMessage `json:"outputs"`
		Predictions json.RawMessage `json:"predictions"`
	}
	if err := c.transport.postJSON(ctx, c.modelURL()+":predict", body, &result); err != nil {
		return core.Value{}, err
	}
	raw := result.Outputs
	if len(raw) == 0 {
		raw = result.Predictions
	}
	if len(raw) == 0 {
		return core.Value{}, fmt.Errorf("tf serving: response of %s has no outputs", c.Name())
	}
	return decodeTFOutputs(raw)
}

func encodeTFInputs(in core.Value) (any, error) {
	if in.IsKeyed() {
		named := make(map[string]any, len(in.Keyed))
		for k, t := range in.Keyed {
			named[k] = t.Nested()
		}
		return named, nil
	}
	if in.Tensor == nil {
		return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidInput, "tf serving: empty input")
	}
	return in.Tensor.Nested(), nil
}

// decodeTFOutputs 对象格式的 outputs 视为 keyed，数组格式视为单个张量。
func decodeTFOutputs(raw json.RawMessage) (core.Value, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return core.Value{}, fmt.Errorf("tf serving decode outputs: %w", err)
	}
	if named, ok := decoded.(map[string]any); ok {
		keyed := make(map[string]*core.Tensor, len(named))
		for k, v := range named {
			t, err := core.FromNested(v, core.Float32)
			if err != nil {
				return core.Value{}, fmt.Errorf("tf serving output %q: %w", k, err)
			}
			keyed[k] = t
		}
		return core.KeyedValue(keyed), nil
	}
	t, err := core.FromNested(decoded, core.Float32)
	if err != nil {
		return core.Value{}, fmt.Errorf("tf serving outputs: %w", err)
	}
	return core.TensorValue(t), nil
}

// Health 健康检查
func (c *TFServingClient) Health(ctx context.Context) error {
	return c.transport.get(ctx, c.modelURL())
}

// Close 关闭连接；HTTP 客户端不需要显式关闭
func (c *TFServingClient) Close() error {
	return nil
}

var (
	_ core.Model    = (*TFServingClient)(nil)
	_ HealthChecker = (*TFServingClient)(nil)
)
