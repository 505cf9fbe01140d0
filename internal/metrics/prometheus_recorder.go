package metrics

import (
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wxpublish"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry       *prom.Registry
	stageDuration  *prom.HistogramVec
	publishOutcome *prom.CounterVec
	uploads        *prom.CounterVec
	assetRewrites  *prom.CounterVec
	tokenRefreshes *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the publish metrics on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual publish stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		publishOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_outcomes_total",
			Help:      "Publish runs by terminal status",
		}, []string{"status"}),
		uploads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "image_uploads_total",
			Help:      "Image uploads by result",
		}, []string{"result"}),
		assetRewrites: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "asset_rewrites_total",
			Help:      "In-body image references by rewrite result",
		}, []string{"result"}),
		tokenRefreshes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Access token exchanges by result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.stageDuration, pr.publishOutcome, pr.uploads, pr.assetRewrites, pr.tokenRefreshes)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPublishOutcome(status string) {
	if p == nil {
		return
	}
	p.publishOutcome.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncUpload(success bool) {
	if p == nil {
		return
	}
	p.uploads.WithLabelValues(resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncAssetRewrite(replaced bool) {
	if p == nil {
		return
	}
	res := "skipped"
	if replaced {
		res = "replaced"
	}
	p.assetRewrites.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncTokenRefresh(success bool) {
	if p == nil {
		return
	}
	p.tokenRefreshes.WithLabelValues(resultLabel(success)).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
