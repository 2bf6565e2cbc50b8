package service

import (
	"context"
	"sync/atomic"

	"github.com/rushteam/featx/core"
)

// InferFunc 是进程内推理函数。
type InferFunc func(ctx context.Context, in core.Value) (core.Value, error)

// FuncModel 将普通函数绑定为 core.Model。
//
// 使用场景：
//   - 自定义模型（纯 Go 实现的特征计算）
//   - 测试中替代远程服务
type FuncModel struct {
	name   string
	fn     InferFunc
	calls  atomic.Int64
	closed atomic.Bool
}

// NewFuncModel 创建函数模型
func NewFuncModel(name string, fn InferFunc) *FuncModel {
	return &FuncModel{name: name, fn: fn}
}

// Name 实现 core.Model
func (m *FuncModel) Name() string { return m.name }

// Infer 实现 core.Model
func (m *FuncModel) Infer(ctx context.Context, in core.Value) (core.Value, error) {
	if m.closed.Load() {
		return core.Value{}, core.Errorf(core.ModuleService, core.ErrorCodeUnavailable, "model %s is closed", m.name)
	}
	if err := ctx.Err(); err != nil {
		return core.Value{}, err
	}
	m.calls.Add(1)
	return m.fn(ctx, in)
}

// Calls 返回 Infer 被调用的次数
func (m *FuncModel) Calls() int64 { return m.calls.Load() }

// Close 实现 core.Model
func (m *FuncModel) Close() error {
	m.closed.Store(true)
	return nil
}

var _ core.Model = (*FuncModel)(nil)
