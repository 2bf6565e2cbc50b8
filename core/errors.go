package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - errors.Is 按 Code 匹配，可直接与下方的哨兵错误比较
//
// 使用场景：
//   - 配置错误：UNKNOWN_ARCHITECTURE, OUTPUT_KEY_NOT_FOUND, OUTPUT_NOT_KEYED
//   - 输入错误：INVALID_RANK, INVALID_INPUT
//   - 依赖错误：MISSING_DEPENDENCY
//   - 存储错误：NOT_FOUND
type DomainError struct {
	Code    string // 错误代码（如 "UNKNOWN_ARCHITECTURE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "extractor", "model", "store"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is 只比较 Code；target 的 Module 非空时同时比较 Module。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Module != "" && t.Module != e.Module {
		return false
	}
	return t.Code == e.Code
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// Errorf 创建带格式化消息的领域错误
func Errorf(module, code, format string, args ...any) *DomainError {
	return NewDomainError(module, code, fmt.Sprintf(format, args...))
}

// 错误代码常量
const (
	// 配置类错误：构造或调用时立即、同步地返回
	ErrorCodeInvalidConfig       = "INVALID_CONFIG"
	ErrorCodeUnknownArchitecture = "UNKNOWN_ARCHITECTURE"
	ErrorCodeOutputKeyNotFound   = "OUTPUT_KEY_NOT_FOUND"
	ErrorCodeOutputNotKeyed      = "OUTPUT_NOT_KEYED"
	ErrorCodeOutputKeyRequired   = "OUTPUT_KEY_REQUIRED"

	// 输入/形状类错误
	ErrorCodeInvalidInput         = "INVALID_INPUT"
	ErrorCodeInvalidRank          = "INVALID_RANK"
	ErrorCodeFeatureCountMismatch = "FEATURE_COUNT_MISMATCH"
	ErrorCodeUnsupportedStimulus  = "UNSUPPORTED_STIMULUS"

	// 依赖/运行时类错误
	ErrorCodeMissingDependency = "MISSING_DEPENDENCY"
	ErrorCodeUnavailable       = "UNAVAILABLE"
	ErrorCodeNotFound          = "NOT_FOUND"
	ErrorCodeNotSupported      = "NOT_SUPPORTED"
)

// 模块名称常量
const (
	ModuleCore      = "core"
	ModuleExtractor = "extractor"
	ModuleModel     = "model"
	ModuleService   = "service"
	ModuleStore     = "store"
	ModuleResult    = "result"
	ModulePipeline  = "pipeline"
)

// 哨兵错误，仅用于 errors.Is 比较（Module 为空，匹配任意模块）。
var (
	ErrInvalidConfig        = &DomainError{Code: ErrorCodeInvalidConfig, Message: "invalid config"}
	ErrUnknownArchitecture  = &DomainError{Code: ErrorCodeUnknownArchitecture, Message: "unknown architecture"}
	ErrOutputKeyNotFound    = &DomainError{Code: ErrorCodeOutputKeyNotFound, Message: "output key not found"}
	ErrOutputNotKeyed       = &DomainError{Code: ErrorCodeOutputNotKeyed, Message: "model output is not keyed"}
	ErrOutputKeyRequired    = &DomainError{Code: ErrorCodeOutputKeyRequired, Message: "output key required"}
	ErrInvalidInput         = &DomainError{Code: ErrorCodeInvalidInput, Message: "invalid input"}
	ErrInvalidRank          = &DomainError{Code: ErrorCodeInvalidRank, Message: "invalid rank"}
	ErrFeatureCountMismatch = &DomainError{Code: ErrorCodeFeatureCountMismatch, Message: "feature count mismatch"}
	ErrUnsupportedStimulus  = &DomainError{Code: ErrorCodeUnsupportedStimulus, Message: "unsupported stimulus"}
	ErrMissingDependency    = &DomainError{Code: ErrorCodeMissingDependency, Message: "missing dependency"}
	ErrUnavailable          = &DomainError{Code: ErrorCodeUnavailable, Message: "unavailable"}
)

var configCodes = map[string]struct{}{
	ErrorCodeInvalidConfig:       {},
	ErrorCodeUnknownArchitecture: {},
	ErrorCodeOutputKeyNotFound:   {},
	ErrorCodeOutputNotKeyed:      {},
	ErrorCodeOutputKeyRequired:   {},
}

// IsConfigError 检查错误是否属于配置类错误（架构名、输出 key 等用户配置问题）
func IsConfigError(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr == nil {
		return false
	}
	_, ok := configCodes[domainErr.Code]
	return ok
}

// IsMissingDependency 检查错误是否为缺少运行时依赖
func IsMissingDependency(err error) bool {
	return errors.Is(err, ErrMissingDependency)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
