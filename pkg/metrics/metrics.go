// Package metrics 提供抽取器的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/featx/core"
)

// PrometheusMonitor 记录每次抽取的耗时和错误数，按抽取器名称和刺激类型打标签。
// 实现 extractor.Monitor。
type PrometheusMonitor struct {
	extractDuration *prometheus.HistogramVec
	extractTotal    *prometheus.CounterVec
	extractErrors   *prometheus.CounterVec
}

// NewPrometheusMonitor 在 reg 上注册指标；reg 为 nil 时使用 prometheus.DefaultRegisterer
func NewPrometheusMonitor(reg prometheus.Registerer, namespace string) *PrometheusMonitor {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMonitor{
		extractDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extract_duration_seconds",
				Help:      "Duration of feature extraction calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"extractor", "kind"},
		),
		extractTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extract_total",
				Help:      "Total number of feature extraction calls",
			},
			[]string{"extractor", "kind"},
		),
		extractErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extract_errors_total",
				Help:      "Total number of failed feature extraction calls",
			},
			[]string{"extractor", "kind", "code"},
		),
	}
}

// ObserveExtract 记录一次抽取
func (m *PrometheusMonitor) ObserveExtract(extractor string, kind core.StimKind, elapsed time.Duration, err error) {
	m.extractTotal.WithLabelValues(extractor, string(kind)).Inc()
	m.extractDuration.WithLabelValues(extractor, string(kind)).Observe(elapsed.Seconds())
	if err != nil {
		code := "UNKNOWN"
		if de := core.GetDomainError(err); de != nil {
			code = de.Code
		}
		m.extractErrors.WithLabelValues(extractor, string(kind), code).Inc()
	}
}
