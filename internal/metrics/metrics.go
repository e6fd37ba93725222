package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 桥接核心业务指标
type AppMetrics struct {
	UpdatesTotal  *prometheus.CounterVec // labels: result=ok|unmapped|transform_error|encode_error|send_error|dropped
	RangeWarnings prometheus.Counter     // 饱和截断次数
	FramesSent    *prometheus.CounterVec // labels: frame (hex id)
	QueueDepth    prometheus.Gauge       // 待处理通知数
	StoreSignals  prometheus.Gauge       // 缓存中持有观测值的信号数
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_updates_total",
			Help: "Signal update notifications by outcome.",
		}, []string{"result"}),
		RangeWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_range_warnings_total",
			Help: "Values clamped to the representable range of their bit field.",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_frames_sent_total",
			Help: "Frames handed to the bus transport by frame id.",
		}, []string{"frame"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_queue_depth",
			Help: "Pending notifications in the dispatch queue.",
		}),
		StoreSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_store_signals",
			Help: "Signals currently holding an observed value.",
		}),
	}
	reg.MustRegister(m.UpdatesTotal, m.RangeWarnings, m.FramesSent, m.QueueDepth, m.StoreSignals)
	return m
}
