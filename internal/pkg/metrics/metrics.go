// Package metrics 持有进程内的 Prometheus 指标，由构造函数注入各组件
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	registry         *prometheus.Registry
	requestDuration  *prometheus.HistogramVec
	uploadsCompleted prometheus.Counter
	scans            *prometheus.CounterVec
	shareDownloads   prometheus.Counter
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status_code"}),
		uploadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uploads_completed_total",
			Help: "Number of multipart uploads finalized",
		}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "file_scans_total",
			Help: "Number of antivirus scans by outcome",
		}, []string{"result"}),
		shareDownloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "share_downloads_total",
			Help: "Number of downloads served through public shares",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requestDuration,
		r.uploadsCompleted,
		r.scans,
		r.shareDownloads,
	)
	return r
}

// Handler 暴露 /metrics
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (r *Registry) IncUploadsCompleted() {
	if r == nil {
		return
	}
	r.uploadsCompleted.Inc()
}

// ObserveScan result: clean | infected | error
func (r *Registry) ObserveScan(result string) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(result).Inc()
}

func (r *Registry) IncShareDownloads() {
	if r == nil {
		return
	}
	r.shareDownloads.Inc()
}
