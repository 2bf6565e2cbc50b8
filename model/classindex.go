package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rushteam/featx/core"
)

// DefaultClassIndexURL 是 keras 使用的 ImageNet 类别索引
const DefaultClassIndexURL = "https://storage.googleapis.com/download.tensorflow.org/data/imagenet_class_index.json"

// classIndexCacheKey 是类别索引在 core.Store 中的缓存 key 前缀
const classIndexCacheKey = "featx:class_index:"

// ClassIndex 是类别编号到 (WordNet ID, 可读标签) 的映射。
type ClassIndex struct {
	IDs    []string
	Labels []string
}

// Len 返回类别数
func (c *ClassIndex) Len() int { return len(c.Labels) }

// ParseClassIndex 解析 {"0": ["n01440764", "tench"], ...} 格式的 JSON。
// 编号必须连续覆盖 0..n-1。
func ParseClassIndex(data []byte) (*ClassIndex, error) {
	var raw map[string][2]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse class index: %w", err)
	}
	idx := &ClassIndex{IDs: make([]string, len(raw)), Labels: make([]string, len(raw))}
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(raw) {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput, "class index: invalid class number %q", k)
		}
		idx.IDs[i] = v[0]
		idx.Labels[i] = v[1]
	}
	return idx, nil
}

// NewClassIndex 由标签列表构造类别索引（ID 与标签相同）。
func NewClassIndex(labels []string) *ClassIndex {
	return &ClassIndex{IDs: append([]string(nil), labels...), Labels: append([]string(nil), labels...)}
}

// ClassIndexOption 配置类别索引的加载
type ClassIndexOption func(*classIndexLoader)

type classIndexLoader struct {
	store      core.Store
	ttl        int
	httpClient *http.Client
}

// WithClassIndexStore 使用 core.Store 缓存下载结果，ttl 单位为秒（0 为不过期）
func WithClassIndexStore(store core.Store, ttl int) ClassIndexOption {
	return func(l *classIndexLoader) {
		l.store = store
		l.ttl = ttl
	}
}

// WithClassIndexHTTPClient 设置下载使用的 HTTP 客户端
func WithClassIndexHTTPClient(client *http.Client) ClassIndexOption {
	return func(l *classIndexLoader) {
		l.httpClient = client
	}
}

// LoadClassIndex 从文件路径或 http(s) URL 加载类别索引；source 为空时使用 DefaultClassIndexURL。
func LoadClassIndex(ctx context.Context, source string, opts ...ClassIndexOption) (*ClassIndex, error) {
	if source == "" {
		source = DefaultClassIndexURL
	}
	l := &classIndexLoader{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(l)
	}
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(strings.TrimPrefix(source, "file://"))
		if err != nil {
			return nil, fmt.Errorf("read class index: %w", err)
		}
		return ParseClassIndex(data)
	}

	key := classIndexCacheKey + source
	if l.store != nil {
		data, err := l.store.Get(ctx, key)
		if err == nil {
			return ParseClassIndex(data)
		}
		if !core.IsStoreNotFound(err) {
			return nil, fmt.Errorf("class index cache: %w", err)
		}
	}
	data, err := l.download(ctx, source)
	if err != nil {
		return nil, err
	}
	idx, err := ParseClassIndex(data)
	if err != nil {
		return nil, err
	}
	if l.store != nil {
		ttl := []int{}
		if l.ttl > 0 {
			ttl = append(ttl, l.ttl)
		}
		if err := l.store.Set(ctx, key, data, ttl...); err != nil {
			return nil, fmt.Errorf("class index cache: %w", err)
		}
	}
	return idx, nil
}

func (l *classIndexLoader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("class index create request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("class index download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeUnavailable,
			"class index download: status=%d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("class index download: %w", err)
	}
	return data, nil
}
