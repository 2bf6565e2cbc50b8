package service

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/model"
)

// Opener 将 url_or_path 解析为 core.Model。
//
// 解析规则：
//   - http(s)://host[/prefix]/v1/models/NAME[/versions/V] → TFServingClient
//   - http(s)://host[/prefix]/v2/models/NAME[/versions/V] → KServeClient
//   - *.onnx 路径或 file://…onnx → ONNXModel（需要 WithONNXRuntime 注入，否则 MISSING_DEPENDENCY）
//   - 其他 → INVALID_CONFIG
//
// 解析在打开时完成，错误立即返回。
type Opener struct {
	onnx         *ONNXRuntime
	timeout      time.Duration
	auth         *AuthConfig
	httpClient   *http.Client
	keyedOutputs bool
}

// OpenerOption 配置 Opener
type OpenerOption func(*Opener)

// WithONNXRuntime 注入 ONNX Runtime 环境，启用本地 .onnx 模型
func WithONNXRuntime(rt *ONNXRuntime) OpenerOption {
	return func(o *Opener) {
		o.onnx = rt
	}
}

// WithOpenerTimeout 设置远程模型的请求超时
func WithOpenerTimeout(timeout time.Duration) OpenerOption {
	return func(o *Opener) {
		o.timeout = timeout
	}
}

// WithOpenerAuth 设置远程模型的认证
func WithOpenerAuth(auth *AuthConfig) OpenerOption {
	return func(o *Opener) {
		o.auth = auth
	}
}

// WithOpenerHTTPClient 设置远程模型共用的 HTTP 客户端
func WithOpenerHTTPClient(client *http.Client) OpenerOption {
	return func(o *Opener) {
		o.httpClient = client
	}
}

// WithOpenerKeyedOutputs 让 KServe 模型单输出也按 keyed 返回
func WithOpenerKeyedOutputs() OpenerOption {
	return func(o *Opener) {
		o.keyedOutputs = true
	}
}

// NewOpener 创建 Opener
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Target 是解析后的模型地址
type Target struct {
	Type      ServiceType
	Endpoint  string
	ModelName string
	Version   string
}

// Resolve 解析 url_or_path，不建立连接
func (o *Opener) Resolve(urlOrPath string) (Target, error) {
	if urlOrPath == "" {
		return Target{}, core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig, "url_or_path is required")
	}
	if strings.HasPrefix(urlOrPath, "http://") || strings.HasPrefix(urlOrPath, "https://") {
		return resolveHTTP(urlOrPath)
	}
	path := strings.TrimPrefix(urlOrPath, "file://")
	if strings.EqualFold(filepath.Ext(path), ".onnx") {
		return Target{Type: ServiceTypeONNX, Endpoint: path, ModelName: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}, nil
	}
	return Target{}, core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig,
		"cannot resolve model %q: expected a TF Serving (/v1/models/NAME) or KServe (/v2/models/NAME) URL, or an .onnx file", urlOrPath)
}

func resolveHTTP(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig, "invalid model url %q: %v", raw, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(segments); i++ {
		if segments[i+1] != "models" || (segments[i] != "v1" && segments[i] != "v2") {
			continue
		}
		t := Target{Type: ServiceTypeTFServing}
		if segments[i] == "v2" {
			t.Type = ServiceTypeKServe
		}
		prefix := strings.Join(segments[:i], "/")
		t.Endpoint = u.Scheme + "://" + u.Host
		if prefix != "" {
			t.Endpoint += "/" + prefix
		}
		name := segments[i+2]
		name = strings.TrimSuffix(name, ":predict")
		t.ModelName = name
		rest := segments[i+3:]
		if len(rest) >= 2 && rest[0] == "versions" {
			t.Version = strings.TrimSuffix(rest[1], ":predict")
		}
		if t.ModelName == "" {
			break
		}
		return t, nil
	}
	return Target{}, core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig,
		"cannot resolve model url %q: expected /v1/models/NAME or /v2/models/NAME", raw)
}

// Open 解析并打开模型
func (o *Opener) Open(ctx context.Context, urlOrPath string) (core.Model, error) {
	t, err := o.Resolve(urlOrPath)
	if err != nil {
		return nil, err
	}
	switch t.Type {
	case ServiceTypeTFServing:
		opts := []TFServingOption{WithTFServingTimeout(o.timeout), WithTFServingAuth(o.auth)}
		if t.Version != "" {
			opts = append(opts, WithTFServingVersion(t.Version))
		}
		if o.httpClient != nil {
			opts = append(opts, WithTFServingHTTPClient(o.httpClient))
		}
		return NewTFServingClient(t.Endpoint, t.ModelName, opts...), nil
	case ServiceTypeKServe:
		opts := []KServeOption{WithKServeTimeout(o.timeout), WithKServeAuth(o.auth)}
		if t.Version != "" {
			opts = append(opts, WithKServeVersion(t.Version))
		}
		if o.httpClient != nil {
			opts = append(opts, WithKServeHTTPClient(o.httpClient))
		}
		if o.keyedOutputs {
			opts = append(opts, WithKServeKeyedOutputs())
		}
		return NewKServeClient(t.Endpoint, t.ModelName, opts...), nil
	default:
		if o.onnx == nil {
			return nil, core.Errorf(core.ModuleService, core.ErrorCodeMissingDependency,
				"cannot open %s: ONNX Runtime is not configured (inject it with WithONNXRuntime)", t.Endpoint)
		}
		m, err := o.onnx.Open(t.Endpoint)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// OpenConfig 按显式的服务配置打开模型（pipeline 中的 service 块）
func (o *Opener) OpenConfig(config *ServiceConfig) (core.Model, error) {
	return NewModel(config, o.onnx)
}

// ArchitectureLoader 基于 Opener 实现 model.Loader。
//
// weights 为 "imagenet" 时从权重根目录解析：
//   - 根目录为 http(s) 地址：<root>/v1/models/<arch>（TF Serving 部署的 keras.applications 模型）
//   - 否则：<root>/<arch>.onnx
//
// 其他 weights 值作为 url_or_path 直接打开。
type ArchitectureLoader struct {
	opener      *Opener
	weightsRoot string
}

// NewArchitectureLoader 创建架构加载器
func NewArchitectureLoader(opener *Opener, weightsRoot string) *ArchitectureLoader {
	return &ArchitectureLoader{opener: opener, weightsRoot: strings.TrimSuffix(weightsRoot, "/")}
}

// LoadArchitecture 实现 model.Loader
func (l *ArchitectureLoader) LoadArchitecture(ctx context.Context, arch model.Architecture, weights string) (core.Model, error) {
	if weights != "" && weights != model.DefaultWeights {
		return l.opener.Open(ctx, weights)
	}
	if l.weightsRoot == "" {
		return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig,
			"no weights root configured for %s imagenet weights", arch.Name)
	}
	var target string
	if strings.HasPrefix(l.weightsRoot, "http://") || strings.HasPrefix(l.weightsRoot, "https://") {
		target = l.weightsRoot + "/v1/models/" + arch.Name
	} else {
		target = filepath.Join(l.weightsRoot, arch.Name+".onnx")
	}
	return l.opener.Open(ctx, target)
}

var _ model.Loader = (*ArchitectureLoader)(nil)
