package service

import (
	"fmt"
	"time"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/pkg/conv"
)

// NewModel 根据配置创建 core.Model 实例（工厂方法）。
// ONNX 类型需要 rt 非 nil。
func NewModel(config *ServiceConfig, rt *ONNXRuntime) (core.Model, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	switch config.Type {
	case ServiceTypeTFServing:
		opts := []TFServingOption{
			WithTFServingTimeout(timeout),
		}
		if config.ModelVersion != "" {
			opts = append(opts, WithTFServingVersion(config.ModelVersion))
		}
		if config.Auth != nil {
			opts = append(opts, WithTFServingAuth(config.Auth))
		}
		return NewTFServingClient(config.Endpoint, config.ModelName, opts...), nil

	case ServiceTypeKServe:
		opts := []KServeOption{
			WithKServeTimeout(timeout),
		}
		if config.ModelVersion != "" {
			opts = append(opts, WithKServeVersion(config.ModelVersion))
		}
		if config.Auth != nil {
			opts = append(opts, WithKServeAuth(config.Auth))
		}
		return NewKServeClient(config.Endpoint, config.ModelName, opts...), nil

	case ServiceTypeONNX:
		if rt == nil {
			return nil, core.Errorf(core.ModuleService, core.ErrorCodeMissingDependency,
				"cannot open %s: ONNX Runtime is not configured", config.Endpoint)
		}
		m, err := rt.Open(config.Endpoint)
		if err != nil {
			return nil, err
		}
		return m, nil

	default:
		return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig, "unsupported service type: %s", config.Type)
	}
}

// ValidateConfig 验证服务配置
func ValidateConfig(config *ServiceConfig) error {
	if config == nil {
		return core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig, "service config is required")
	}
	if config.Endpoint == "" {
		return core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig, "endpoint is required")
	}
	if config.ModelName == "" && config.Type != ServiceTypeONNX {
		return core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig,
			"model name is required for %s", config.Type)
	}
	return nil
}

// ServiceConfigFromMap 从 pipeline 配置（map[string]any）解析服务配置。
//
//	service:
//	  type: kserve
//	  endpoint: http://localhost:8000
//	  model_name: electra_small
//	  auth: {type: bearer, token: xxx}
func ServiceConfigFromMap(m map[string]any) (*ServiceConfig, error) {
	if m == nil {
		return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidConfig, "service config is required")
	}
	cfg := &ServiceConfig{
		Type:         ServiceType(conv.ConfigGet(m, "type", "")),
		Endpoint:     conv.ConfigGet(m, "endpoint", ""),
		ModelName:    conv.ConfigGet(m, "model_name", ""),
		ModelVersion: conv.ConfigGet(m, "model_version", ""),
		Timeout:      conv.ConfigGetInt(m, "timeout", 0),
	}
	if auth := conv.ConfigGetMap(m, "auth"); auth != nil {
		cfg.Auth = &AuthConfig{
			Type:     conv.ConfigGet(auth, "type", ""),
			Username: conv.ConfigGet(auth, "username", ""),
			Password: conv.ConfigGet(auth, "password", ""),
			Token:    conv.ConfigGet(auth, "token", ""),
			APIKey:   conv.ConfigGet(auth, "api_key", ""),
		}
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("service config: %w", err)
	}
	return cfg, nil
}
