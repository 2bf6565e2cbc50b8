// Package service 提供 core.Model 的具体绑定，用于对接 TF Serving、KServe、本地 ONNX Runtime、进程内函数等。
//
// 设计目标：
//   - 抽取器只依赖 core.Model，推理后端可替换
//   - 远程后端统一支持超时、认证、自定义 http.Client
//   - 运行时/网络错误用 %w 包装后原样返回，不重试
//
// 使用示例：
//
//	m := service.NewTFServingClient("http://localhost:8501", "mobilenet_v2")
//	out, err := m.Infer(ctx, core.TensorValue(img))
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rushteam/featx/core"
)

// ServiceType 服务类型
type ServiceType string

const (
	ServiceTypeTFServing ServiceType = "tf_serving" // TensorFlow Serving REST
	ServiceTypeKServe    ServiceType = "kserve"     // KServe / Open Inference Protocol V2
	ServiceTypeONNX      ServiceType = "onnx"       // 本地 ONNX Runtime
)

// ServiceConfig 服务配置（pipeline 配置文件和 NewModel 工厂使用）
type ServiceConfig struct {
	// Type 服务类型
	Type ServiceType

	// Endpoint 服务端点
	// TF Serving: "http://localhost:8501"
	// KServe: "http://localhost:8000"
	// ONNX: 模型文件路径 "/models/inceptionv3.onnx"
	Endpoint string

	// ModelName 模型名称（远程服务必填）
	ModelName string

	// ModelVersion 模型版本（可选）
	ModelVersion string

	// Timeout 超时时间（秒）
	Timeout int

	// Auth 认证信息（可选）
	Auth *AuthConfig
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type     string // "basic", "bearer", "api_key"
	Username string
	Password string
	Token    string
	APIKey   string
}

// apply 添加认证信息到 HTTP 请求
func (a *AuthConfig) apply(req *http.Request) {
	if a == nil {
		return
	}
	switch a.Type {
	case "basic":
		req.SetBasicAuth(a.Username, a.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case "api_key":
		req.Header.Set("X-API-Key", a.APIKey)
	}
}

// httpTransport 是远程客户端共用的 JSON over HTTP 调用。
type httpTransport struct {
	name       string
	auth       *AuthConfig
	httpClient *http.Client
}

func newHTTPTransport(name string, timeout time.Duration, auth *AuthConfig, client *http.Client) httpTransport {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return httpTransport{name: name, auth: auth, httpClient: client}
}

// postJSON 发送 JSON 请求，非 200 响应转为错误并携带响应体。
func (t httpTransport) postJSON(ctx context.Context, url string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s marshal request: %w", t.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("%s create request: %w", t.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	t.auth.apply(httpReq)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", t.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return core.Errorf(core.ModuleService, core.ErrorCodeUnavailable,
			"%s error: status=%d, body=%s", t.name, resp.StatusCode, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode response: %w", t.name, err)
	}
	return nil
}

// get 发送 GET 请求，用于健康检查
func (t httpTransport) get(ctx context.Context, url string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s health create request: %w", t.name, err)
	}
	t.auth.apply(httpReq)
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", t.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return core.Errorf(core.ModuleService, core.ErrorCodeUnavailable,
			"%s health check failed: status=%d, body=%s", t.name, resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// HealthChecker 由支持健康检查的模型实现（远程服务）。
type HealthChecker interface {
	Health(ctx context.Context) error
}
