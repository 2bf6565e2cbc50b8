package result

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/featx/core"
)

// DefaultKeyPrefix 是结果在存储中的 key 前缀
const DefaultKeyPrefix = "featx:result:"

// record 是结果的存储格式
type record struct {
	Extractor string        `json:"extractor"`
	Stimulus  core.Meta     `json:"stimulus"`
	Kind      core.StimKind `json:"kind"`
	Features  []string      `json:"features,omitempty"`
	DType     core.DType    `json:"dtype"`
	Shape     []int         `json:"shape"`
	Floats    []float32     `json:"floats,omitempty"`
	Ints      []int64       `json:"ints,omitempty"`
	Strings   []string      `json:"strings,omitempty"`
}

// SinkOption 配置 Sink
type SinkOption func(*Sink)

// WithSinkTTL 设置过期时间（秒），0 为不过期
func WithSinkTTL(ttl int) SinkOption {
	return func(s *Sink) {
		s.ttl = ttl
	}
}

// WithSinkPrefix 设置 key 前缀
func WithSinkPrefix(prefix string) SinkOption {
	return func(s *Sink) {
		s.prefix = prefix
	}
}

// Sink 把结果以 JSON 形式持久化到 core.Store。
// key 为 <prefix><extractor>:<stim id>。
type Sink struct {
	store  core.Store
	ttl    int
	prefix string
}

// NewSink 创建 Sink
func NewSink(store core.Store, opts ...SinkOption) *Sink {
	s := &Sink{store: store, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key 返回结果的存储 key
func (s *Sink) Key(extractor, stimID string) string {
	return s.prefix + extractor + ":" + stimID
}

func (s *Sink) ttlArgs() []int {
	if s.ttl > 0 {
		return []int{s.ttl}
	}
	return nil
}

// Save 批量写入结果
func (s *Sink) Save(ctx context.Context, results []*core.Result) error {
	if len(results) == 0 {
		return nil
	}
	kvs := make(map[string][]byte, len(results))
	for _, res := range results {
		if res.Data == nil {
			return core.Errorf(core.ModuleResult, core.ErrorCodeInvalidInput, "result of %s has no data", res.Extractor)
		}
		data, err := json.Marshal(record{
			Extractor: res.Extractor,
			Stimulus:  res.Stimulus,
			Kind:      res.Kind,
			Features:  res.Features,
			DType:     res.Data.DType,
			Shape:     res.Data.Shape,
			Floats:    res.Data.Floats,
			Ints:      res.Data.Ints,
			Strings:   res.Data.Strings,
		})
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		kvs[s.Key(res.Extractor, res.Stimulus.ID)] = data
	}
	if err := s.store.BatchSet(ctx, kvs, s.ttlArgs()...); err != nil {
		return fmt.Errorf("save results to %s: %w", s.store.Name(), err)
	}
	return nil
}

// Load 读取单个结果，不存在时返回 core.ErrStoreNotFound
func (s *Sink) Load(ctx context.Context, extractor, stimID string) (*core.Result, error) {
	data, err := s.store.Get(ctx, s.Key(extractor, stimID))
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// LoadAll 读取某个抽取器的全部结果（按 key 排序），存储需实现 core.KeyScanner
func (s *Sink) LoadAll(ctx context.Context, extractor string) ([]*core.Result, error) {
	scanner, ok := s.store.(core.KeyScanner)
	if !ok {
		return nil, core.Errorf(core.ModuleResult, core.ErrorCodeNotSupported,
			"store %s cannot list keys", s.store.Name())
	}
	keys, err := scanner.Keys(ctx, s.prefix+extractor+":")
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	out := make([]*core.Result, 0, len(keys))
	for _, k := range keys {
		data, ok := values[k]
		if !ok {
			// 列出后过期
			continue
		}
		res, err := decodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func decodeRecord(data []byte) (*core.Result, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	var (
		t   *core.Tensor
		err error
	)
	switch rec.DType {
	case core.Float32:
		t, err = core.NewFloat32(rec.Shape, rec.Floats)
	case core.Int64:
		t, err = core.NewInt64(rec.Shape, rec.Ints)
	case core.String:
		t, err = core.NewString(rec.Shape, rec.Strings)
	default:
		err = core.Errorf(core.ModuleResult, core.ErrorCodeInvalidInput, "unknown dtype %q", rec.DType)
	}
	if err != nil {
		return nil, err
	}
	return &core.Result{
		Extractor: rec.Extractor,
		Stimulus:  rec.Stimulus,
		Kind:      rec.Kind,
		Features:  rec.Features,
		Data:      t,
	}, nil
}
