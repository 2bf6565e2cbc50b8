package stimulus

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/rushteam/featx/core"
)

// LoadAudio 读取 PCM WAV 文件，多声道取平均混为单声道，样本归一化到 [-1, 1]。
// 未设置 duration 时按样本数和采样率计算。
func LoadAudio(path string, opts ...Option) (*core.AudioStim, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidInput, "%s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	samples, rate, err := mixDown(buf, int(dec.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	stim := &core.AudioStim{Meta: newMeta(path, opts), Samples: samples, SampleRate: rate}
	if stim.Duration == nil && rate > 0 {
		d := float64(len(samples)) / float64(rate)
		stim.Duration = &d
	}
	return stim, nil
}

// NewAudio 由样本数据创建音频刺激
func NewAudio(samples []float32, sampleRate int, opts ...Option) *core.AudioStim {
	return &core.AudioStim{Meta: newMeta("", opts), Samples: samples, SampleRate: sampleRate}
}

func mixDown(buf *audio.IntBuffer, bitDepth int) ([]float32, int, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, 0, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidInput, "wav has no audio format")
	}
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, 0, core.Errorf(core.ModuleCore, core.ErrorCodeInvalidInput, "unsupported bit depth %d", bitDepth)
	}
	channels := buf.Format.NumChannels
	scale := float32(int64(1) << (bitDepth - 1))
	// 8 位 PCM 是无符号的
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]-offset) / scale
		}
		out[i] = sum / float32(channels)
	}
	return out, buf.Format.SampleRate, nil
}
