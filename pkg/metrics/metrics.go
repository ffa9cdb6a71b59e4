// Package metrics 提供 Prometheus 指标集合；所有记录方法对 nil 接收者安全。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec
	// gRPC 请求计数
	GRPCRequestsTotal *prometheus.CounterVec

	// 业务指标
	OptionsCreated     prometheus.Counter
	OptionsExercised   prometheus.Counter
	OperationsRejected *prometheus.CounterVec
	Premiums           prometheus.Histogram
	ExpiredUnexercised prometheus.Gauge
	OutboxRelayed      prometheus.Counter
	OutboxFailures     prometheus.Counter
}

// New 创建指标实例并注册到独立的 registry
func New(serviceName string) *Metrics {
	const namespace = "optionescrow"
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC requests",
		}, []string{"method", "code"}),
		OptionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "options_created_total",
			Help:      "Option contracts created with escrow funded",
		}),
		OptionsExercised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "options_exercised_total",
			Help:      "Option contracts exercised",
		}),
		OperationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "operations_rejected_total",
			Help:      "Rejected lifecycle operations by error code",
		}, []string{"operation", "code"}),
		Premiums: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "premium_raw_units",
			Help:      "Premiums stored at creation, in raw asset units",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 12),
		}),
		ExpiredUnexercised: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "expired_unexercised",
			Help:      "Contracts past expiration that were never exercised",
		}),
		OutboxRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "outbox_relayed_total",
			Help:      "Outbox messages published to the broker",
		}),
		OutboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "outbox_failures_total",
			Help:      "Outbox relay batches that failed",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.OptionsCreated,
		m.OptionsExercised,
		m.OperationsRejected,
		m.Premiums,
		m.ExpiredUnexercised,
		m.OutboxRelayed,
		m.OutboxFailures,
	)
	return m
}

// Registry 返回底层 registry，测试中用于读取指标
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordGRPCRequest 记录 gRPC 请求
func (m *Metrics) RecordGRPCRequest(method, code string) {
	if m == nil {
		return
	}
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}

// RecordCreated 记录一次成功创建
func (m *Metrics) RecordCreated(premium uint64) {
	if m == nil {
		return
	}
	m.OptionsCreated.Inc()
	m.Premiums.Observe(float64(premium))
}

// RecordExercised 记录一次成功行权
func (m *Metrics) RecordExercised() {
	if m == nil {
		return
	}
	m.OptionsExercised.Inc()
}

// RecordRejected 记录被拒绝的操作
func (m *Metrics) RecordRejected(operation, code string) {
	if m == nil {
		return
	}
	m.OperationsRejected.WithLabelValues(operation, code).Inc()
}

// SetExpiredUnexercised 更新过期未行权合约数
func (m *Metrics) SetExpiredUnexercised(n int) {
	if m == nil {
		return
	}
	m.ExpiredUnexercised.Set(float64(n))
}

// RecordOutbox 记录一批中继结果
func (m *Metrics) RecordOutbox(relayed int, err error) {
	if m == nil {
		return
	}
	m.OutboxRelayed.Add(float64(relayed))
	if err != nil {
		m.OutboxFailures.Inc()
	}
}
