package core

// StimKind 标记刺激（stimulus）类型，抽取器据此声明可接受的输入。
type StimKind string

const (
	KindImage       StimKind = "image"
	KindText        StimKind = "text"
	KindComplexText StimKind = "complex_text"
	KindAudio       StimKind = "audio"
)

// Meta 是随刺激透传到结果中的元数据，抽取器从不修改它。
type Meta struct {
	// ID 刺激唯一标识（加载器默认生成 UUID）
	ID string `json:"id"`

	// Name 刺激名称（可选，如文件名去掉扩展名）
	Name string `json:"name,omitempty"`

	// Filename 来源文件（可选）
	Filename string `json:"filename,omitempty"`

	// Onset 起始时间（秒，可选）
	Onset *float64 `json:"onset,omitempty"`

	// Duration 持续时间（秒，可选）
	Duration *float64 `json:"duration,omitempty"`

	// Order 在父刺激中的序号（可选，如复合文本中的第几个词）
	Order *int `json:"order,omitempty"`
}

// Clone 拷贝元数据，指针字段也会被复制，避免结果与刺激共享可变状态。
func (m Meta) Clone() Meta {
	out := m
	if m.Onset != nil {
		v := *m.Onset
		out.Onset = &v
	}
	if m.Duration != nil {
		v := *m.Duration
		out.Duration = &v
	}
	if m.Order != nil {
		v := *m.Order
		out.Order = &v
	}
	return out
}

// Stimulus 是不可变的输入单元（图像、文本、音频）。
type Stimulus interface {
	Kind() StimKind
	Metadata() Meta
}

// ImageStim 是图像刺激，Data 为 HWC 排布的 float32 像素数组（0~255）。
type ImageStim struct {
	Meta
	Data *Tensor
}

func (s *ImageStim) Kind() StimKind { return KindImage }
func (s *ImageStim) Metadata() Meta { return s.Meta }

// TextStim 是文本刺激。
type TextStim struct {
	Meta
	Text string
}

func (s *TextStim) Kind() StimKind { return KindText }
func (s *TextStim) Metadata() Meta { return s.Meta }

// ComplexTextStim 是由多个文本元素组成的复合文本（如按词切分的文档）。
type ComplexTextStim struct {
	Meta
	Elements []*TextStim
}

func (s *ComplexTextStim) Kind() StimKind { return KindComplexText }
func (s *ComplexTextStim) Metadata() Meta { return s.Meta }

// AudioStim 是单声道音频刺激，Samples 取值范围 [-1, 1]。
type AudioStim struct {
	Meta
	Samples    []float32
	SampleRate int
}

func (s *AudioStim) Kind() StimKind { return KindAudio }
func (s *AudioStim) Metadata() Meta { return s.Meta }

var (
	_ Stimulus = (*ImageStim)(nil)
	_ Stimulus = (*TextStim)(nil)
	_ Stimulus = (*ComplexTextStim)(nil)
	_ Stimulus = (*AudioStim)(nil)
)
