// Package pipeline 把一组抽取器组织为配置驱动的批处理流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/extractor"
)

// Pipeline 依次用每个抽取器处理全部刺激。
//
// 每个抽取器只处理它接受的刺激（复合文本会展开为元素），
// 结果按“抽取器 → 刺激”的顺序排列，可直接交给 result.Merge。
type Pipeline struct {
	Name       string
	Extractors []extractor.Extractor

	// MaxConcurrent 单个抽取器内的最大并发调用数，<= 1 为顺序执行
	MaxConcurrent int

	Logger *zap.Logger
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Run 执行 Pipeline，任一抽取失败即返回错误
func (p *Pipeline) Run(ctx context.Context, stims []core.Stimulus) ([]*core.Result, error) {
	var out []*core.Result
	for _, ex := range p.Extractors {
		start := time.Now()
		results, err := extractor.Transform(ctx, ex, stims, p.MaxConcurrent)
		if err != nil {
			return nil, fmt.Errorf("extractor %s: %w", ex.Name(), err)
		}
		p.logger().Info("extractor finished",
			zap.String("pipeline", p.Name),
			zap.String("extractor", ex.Name()),
			zap.Int("results", len(results)),
			zap.Duration("elapsed", time.Since(start)))
		out = append(out, results...)
	}
	return out, nil
}

// Close 关闭所有持有模型的抽取器
func (p *Pipeline) Close() error {
	var errs []error
	for _, ex := range p.Extractors {
		if c, ok := ex.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", ex.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
