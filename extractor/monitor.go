package extractor

import (
	"sort"
	"sync"
	"time"

	"github.com/rushteam/featx/core"
)

// Monitor 记录抽取调用，用于监控耗时和错误率。
//
// 实现：
//   - NopMonitor（默认）
//   - MemoryMonitor（进程内统计，测试和 CLI 汇总使用）
//   - metrics.PrometheusMonitor（生产环境）
type Monitor interface {
	ObserveExtract(extractor string, kind core.StimKind, elapsed time.Duration, err error)
}

// NopMonitor 不做任何记录
type NopMonitor struct{}

func (NopMonitor) ObserveExtract(string, core.StimKind, time.Duration, error) {}

// ExtractorStats 是单个抽取器的调用统计
type ExtractorStats struct {
	Extractor string
	Calls     int64
	Errors    int64
	Total     time.Duration
	Max       time.Duration
	LastError string
	LastCall  time.Time
}

// Mean 返回平均耗时
func (s *ExtractorStats) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// ErrorRate 返回错误率
func (s *ExtractorStats) ErrorRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Calls)
}

// MemoryMonitor 是内存监控实现，按抽取器名称汇总调用次数、耗时和错误。
// 生产环境可以使用 metrics.PrometheusMonitor。
type MemoryMonitor struct {
	mu    sync.RWMutex
	stats map[string]*ExtractorStats
}

// NewMemoryMonitor 创建内存监控
func NewMemoryMonitor() *MemoryMonitor {
	return &MemoryMonitor{stats: make(map[string]*ExtractorStats)}
}

func (m *MemoryMonitor) ObserveExtract(extractor string, kind core.StimKind, elapsed time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats[extractor]
	if stats == nil {
		stats = &ExtractorStats{Extractor: extractor}
		m.stats[extractor] = stats
	}
	stats.Calls++
	stats.Total += elapsed
	if elapsed > stats.Max {
		stats.Max = elapsed
	}
	stats.LastCall = time.Now()
	if err != nil {
		stats.Errors++
		stats.LastError = err.Error()
	}
}

// Stats 返回某个抽取器的统计副本
func (m *MemoryMonitor) Stats(extractor string) (*ExtractorStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.stats[extractor]
	if !ok {
		return nil, core.Errorf(core.ModuleExtractor, core.ErrorCodeNotFound, "no stats for extractor %s", extractor)
	}
	cp := *stats
	return &cp, nil
}

// All 返回全部统计，按抽取器名称排序
func (m *MemoryMonitor) All() []*ExtractorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ExtractorStats, 0, len(m.stats))
	for _, s := range m.stats {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Extractor < out[j].Extractor })
	return out
}

// Reset 清空统计
func (m *MemoryMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = make(map[string]*ExtractorStats)
}

var (
	_ Monitor = NopMonitor{}
	_ Monitor = (*MemoryMonitor)(nil)
)
