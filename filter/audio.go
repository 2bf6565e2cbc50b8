package filter

import (
	"context"
	"math"

	"github.com/rushteam/featx/core"
)

// AudioResamplingFilter 将单声道音频重采样到 TargetRate（线性插值）。
type AudioResamplingFilter struct {
	TargetRate int
}

// NewAudioResamplingFilter 创建重采样过滤器
func NewAudioResamplingFilter(targetRate int) *AudioResamplingFilter {
	return &AudioResamplingFilter{TargetRate: targetRate}
}

func (f *AudioResamplingFilter) Name() string { return "filter.audio_resampling" }

// Transform 实现 Filter
func (f *AudioResamplingFilter) Transform(ctx context.Context, stim core.Stimulus) (core.Stimulus, error) {
	audio, ok := stim.(*core.AudioStim)
	if !ok {
		return nil, unsupported(f.Name(), stim)
	}
	return f.Resample(audio)
}

// Resample 重采样音频刺激；采样率相同时返回原刺激
func (f *AudioResamplingFilter) Resample(stim *core.AudioStim) (*core.AudioStim, error) {
	if f.TargetRate <= 0 || stim.SampleRate <= 0 {
		return nil, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidConfig,
			"sample rates must be positive, got %d -> %d", stim.SampleRate, f.TargetRate)
	}
	if stim.SampleRate == f.TargetRate {
		return stim, nil
	}
	n := len(stim.Samples)
	outLen := int(math.Round(float64(n) * float64(f.TargetRate) / float64(stim.SampleRate)))
	out := make([]float32, outLen)
	step := float64(stim.SampleRate) / float64(f.TargetRate)
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= n-1 {
			out[i] = stim.Samples[n-1]
			continue
		}
		frac := float32(pos - float64(lo))
		out[i] = stim.Samples[lo]*(1-frac) + stim.Samples[lo+1]*frac
	}
	return &core.AudioStim{Meta: stim.Meta.Clone(), Samples: out, SampleRate: f.TargetRate}, nil
}

var _ Filter = (*AudioResamplingFilter)(nil)
