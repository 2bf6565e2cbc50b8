// Package logger 提供进程级的 zap 日志实例。
//
// 库代码（extractor、pipeline）通过选项接收 *zap.Logger，默认 zap.NewNop()；
// 只有 cmd 层调用 Init 并把 L() 传入。
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init 初始化日志系统。level 为 debug/info/warn/error，development 为 true 时使用开发配置（彩色、可读）。
func Init(level string, development bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	l, err := config.Build()
	if err != nil {
		return nil, err
	}
	Set(l)
	return l, nil
}

// Set 替换全局 Logger
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	global = l
	mu.Unlock()
	zap.ReplaceGlobals(l)
}

// L 返回全局 Logger，未初始化时为 Nop
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync 同步日志缓冲区
func Sync() {
	_ = L().Sync()
}
