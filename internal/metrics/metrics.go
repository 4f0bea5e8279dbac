// Package metrics 暴露服务的 Prometheus 指标。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 持有全部采集器，使用独立的 Registry 以便测试中多次构造。
type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	riskPredictions   *prometheus.CounterVec
	aiFallbacks       *prometheus.CounterVec
	aiDuration        prometheus.Histogram
	checkIns          prometheus.Counter
	erpErrors         *prometheus.CounterVec
}

// New 构造并注册全部指标。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		riskPredictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_predictions_total",
			Help: "Risk predictions produced, by source and level.",
		}, []string{"source", "level"}),
		aiFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_fallbacks_total",
			Help: "Rule-based fallbacks taken instead of a model answer, by reason.",
		}, []string{"reason"}),
		aiDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Histogram of language model call durations.",
			Buckets: prometheus.DefBuckets,
		}),
		checkIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wellbeing_checkins_total",
			Help: "Total well-being check-ins stored.",
		}),
		erpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erp_request_errors_total",
			Help: "Academic records API failures by endpoint.",
		}, []string{"endpoint"}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.riskPredictions,
		m.aiFallbacks,
		m.aiDuration,
		m.checkIns,
		m.erpErrors,
		prometheus.NewGoCollector(),
	)

	return m
}

// Middleware 记录每个请求的路由模板、状态码与耗时。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 /metrics 的处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RiskPrediction 记录一次预测结果。
func (m *Metrics) RiskPrediction(source, level string) {
	if m == nil {
		return
	}
	m.riskPredictions.WithLabelValues(source, level).Inc()
}

// AIFallback 记录一次兜底。
func (m *Metrics) AIFallback(reason string) {
	if m == nil {
		return
	}
	m.aiFallbacks.WithLabelValues(reason).Inc()
}

// AIRequest 记录模型调用耗时。
func (m *Metrics) AIRequest(duration time.Duration) {
	if m == nil {
		return
	}
	m.aiDuration.Observe(duration.Seconds())
}

// CheckIn 记录一次自评。
func (m *Metrics) CheckIn() {
	if m == nil {
		return
	}
	m.checkIns.Inc()
}

// ERPError 记录教务接口失败。
func (m *Metrics) ERPError(endpoint string) {
	if m == nil {
		return
	}
	m.erpErrors.WithLabelValues(endpoint).Inc()
}
