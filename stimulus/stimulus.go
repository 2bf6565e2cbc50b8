// Package stimulus 从文件或内存数据构造 core 包中的刺激（图像、文本、复合文本、音频）。
package stimulus

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rushteam/featx/core"
)

// Option 配置刺激元数据
type Option func(*core.Meta)

// WithOnset 设置起始时间（秒）
func WithOnset(onset float64) Option {
	return func(m *core.Meta) {
		m.Onset = &onset
	}
}

// WithDuration 设置持续时间（秒）
func WithDuration(duration float64) Option {
	return func(m *core.Meta) {
		m.Duration = &duration
	}
}

// WithOrder 设置序号
func WithOrder(order int) Option {
	return func(m *core.Meta) {
		m.Order = &order
	}
}

// WithName 设置名称（默认取文件名去掉扩展名）
func WithName(name string) Option {
	return func(m *core.Meta) {
		m.Name = name
	}
}

// WithID 设置 ID（默认生成 UUID）
func WithID(id string) Option {
	return func(m *core.Meta) {
		m.ID = id
	}
}

func newMeta(filename string, opts []Option) core.Meta {
	m := core.Meta{Filename: filename}
	if filename != "" {
		base := filepath.Base(filename)
		m.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return m
}

// Kind 按文件扩展名推断刺激类型
func Kind(path string) (core.StimKind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return core.KindImage, true
	case ".txt":
		return core.KindText, true
	case ".wav":
		return core.KindAudio, true
	default:
		return "", false
	}
}

// Load 按扩展名加载文件。complex 为 true 时文本文件按词切分为复合文本。
func Load(path string, complex bool, opts ...Option) (core.Stimulus, error) {
	kind, ok := Kind(path)
	if !ok {
		return nil, core.Errorf(core.ModuleCore, core.ErrorCodeUnsupportedStimulus,
			"cannot infer stimulus type of %s", path)
	}
	switch kind {
	case core.KindImage:
		return LoadImage(path, opts...)
	case core.KindAudio:
		return LoadAudio(path, opts...)
	default:
		if complex {
			return LoadComplexText(path, opts...)
		}
		return LoadText(path, opts...)
	}
}
