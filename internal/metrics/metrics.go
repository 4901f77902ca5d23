// Package metrics 定义简历抽取与匹配的 Prometheus 指标
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 抽取结果
const (
	OutcomeSuccess     = "success"
	OutcomeDuplicate   = "duplicate"
	OutcomeUnsupported = "unsupported"
	OutcomeFailed      = "failed"
)

// Metrics 持有所有 collector，使用独立 registry 以便测试
type Metrics struct {
	registry *prometheus.Registry

	ResumesProcessed   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	MatchRequests      *prometheus.CounterVec
	MatchDuration      prometheus.Histogram
	CorpusSize         prometheus.Gauge
}

// New 创建并注册指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ResumesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resume_match",
			Name:      "resumes_processed_total",
			Help:      "Resumes handled by the extraction pipeline, by outcome.",
		}, []string{"outcome"}),
		ExtractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resume_match",
			Name:      "extraction_duration_seconds",
			Help:      "Time spent decoding and extracting a single resume.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		MatchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resume_match",
			Name:      "match_requests_total",
			Help:      "Match requests, labelled by cache result (hit, miss, disabled).",
		}, []string{"cache"}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "resume_match",
			Name:      "match_duration_seconds",
			Help:      "Time spent ranking the corpus for one job description.",
			Buckets:   prometheus.DefBuckets,
		}),
		CorpusSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "resume_match",
			Name:      "corpus_size",
			Help:      "Number of stored profiles ranked by the last match request.",
		}),
	}
	reg.MustRegister(
		m.ResumesProcessed,
		m.ExtractionDuration,
		m.MatchRequests,
		m.MatchDuration,
		m.CorpusSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveExtraction 记录一次抽取
func (m *Metrics) ObserveExtraction(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ResumesProcessed.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.ExtractionDuration.Observe(elapsed.Seconds())
	}
}

// ObserveMatch 记录一次匹配请求
func (m *Metrics) ObserveMatch(cache string, corpusSize int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.MatchRequests.WithLabelValues(cache).Inc()
	m.MatchDuration.Observe(elapsed.Seconds())
	if corpusSize >= 0 {
		m.CorpusSize.Set(float64(corpusSize))
	}
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 的 http.Handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve 在独立端口暴露 /metrics，ctx 取消后关闭
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
