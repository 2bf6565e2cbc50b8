package extractor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/featx/core"
)

// Expand 把复合文本展开为元素（抽取器接受文本但不接受复合文本时），
// 并丢弃抽取器不接受的刺激。返回的顺序与输入一致。
func Expand(ex Extractor, stims []core.Stimulus) []core.Stimulus {
	out := make([]core.Stimulus, 0, len(stims))
	for _, s := range stims {
		if ex.Accepts(s.Kind()) {
			out = append(out, s)
			continue
		}
		if c, ok := s.(*core.ComplexTextStim); ok && ex.Accepts(core.KindText) {
			for _, el := range c.Elements {
				out = append(out, el)
			}
		}
	}
	return out
}

// Transform 对一组刺激执行抽取，结果顺序与（展开后的）输入顺序一致。
//
// maxConcurrent <= 1 时顺序执行；否则最多 maxConcurrent 个并发调用，
// 这要求底层模型支持并发推理。任一调用失败即取消其余调用并返回该错误。
func Transform(ctx context.Context, ex Extractor, stims []core.Stimulus, maxConcurrent int) ([]*core.Result, error) {
	items := Expand(ex, stims)
	results := make([]*core.Result, len(items))

	if maxConcurrent <= 1 {
		for i, s := range items {
			res, err := ex.Extract(ctx, s)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, s := range items {
		g.Go(func() error {
			res, err := ex.Extract(gctx, s)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
