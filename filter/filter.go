package filter

import (
	"context"

	"github.com/rushteam/featx/core"
)

// Filter 是刺激变换的抽象接口：输入一个刺激，返回一个新的刺激。
//
// 设计原则：
//   - 不修改输入刺激，元数据原样保留
//   - 不支持的刺激类型返回 UNSUPPORTED_STIMULUS
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// Transform 变换刺激
	Transform(ctx context.Context, stim core.Stimulus) (core.Stimulus, error)
}

// Chain 依次执行多个过滤器
type Chain []Filter

func (c Chain) Name() string { return "filter.chain" }

func (c Chain) Transform(ctx context.Context, stim core.Stimulus) (core.Stimulus, error) {
	cur := stim
	for _, f := range c {
		next, err := f.Transform(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func unsupported(name string, stim core.Stimulus) error {
	return core.Errorf(core.ModuleCore, core.ErrorCodeUnsupportedStimulus,
		"%s cannot transform %s stimuli", name, stim.Kind())
}

var _ Filter = Chain(nil)
