package stimulus

import (
	"fmt"
	"os"
	"strings"

	"github.com/rushteam/featx/core"
)

// NewText 创建文本刺激
func NewText(text string, opts ...Option) *core.TextStim {
	return &core.TextStim{Meta: newMeta("", opts), Text: text}
}

// LoadText 读取整个文本文件为一个文本刺激（去掉首尾空白）
func LoadText(path string, opts ...Option) (*core.TextStim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return &core.TextStim{Meta: newMeta(path, opts), Text: strings.TrimSpace(string(data))}, nil
}

// NewComplexText 按空白切分为词元素，每个元素带有序号
func NewComplexText(text string, opts ...Option) *core.ComplexTextStim {
	return complexText(text, newMeta("", opts))
}

// LoadComplexText 读取文本文件并按空白切分为词元素
func LoadComplexText(path string, opts ...Option) (*core.ComplexTextStim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return complexText(string(data), newMeta(path, opts)), nil
}

func complexText(text string, meta core.Meta) *core.ComplexTextStim {
	words := strings.Fields(text)
	elements := make([]*core.TextStim, len(words))
	for i, w := range words {
		order := i
		elements[i] = &core.TextStim{
			Meta: core.Meta{
				ID:       fmt.Sprintf("%s#%d", meta.ID, i),
				Name:     meta.Name,
				Filename: meta.Filename,
				Onset:    meta.Clone().Onset,
				Order:    &order,
			},
			Text: w,
		}
	}
	return &core.ComplexTextStim{Meta: meta, Elements: elements}
}
