// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/postrelay/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 投稿サービスとAPIクライアントから利用する。
type MetricsCollector interface {
	RecordPublishSuccess(platform model.Platform, endpoint string)
	RecordPublishFailure(platform model.Platform, reason string)
	RecordImageBytes(source string, size int)
	ObserveUpstream(platform model.Platform, operation string, status int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	publishSuccess  *prometheus.CounterVec
	publishFail     *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	imageBytes      *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		publishSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postrelay_publish_success_total",
			Help: "投稿成功の合計数",
		}, []string{"platform", "endpoint"}),
		publishFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postrelay_publish_fail_total",
			Help: "投稿失敗の合計数",
		}, []string{"platform", "reason"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postrelay_upstream_status_total",
			Help: "外部APIのHTTPステータスコード別のレスポンス数",
		}, []string{"platform", "operation", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "postrelay_upstream_latency_seconds",
			Help:    "外部API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform", "operation"}),
		imageBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "postrelay_image_bytes",
			Help:    "取得した画像のサイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"source"}),
	}

	reg.MustRegister(
		c.publishSuccess,
		c.publishFail,
		c.upstreamStatus,
		c.upstreamLatency,
		c.imageBytes,
	)

	return c
}

// RecordPublishSuccess は投稿成功を記録する。
func (c *Collector) RecordPublishSuccess(platform model.Platform, endpoint string) {
	c.publishSuccess.WithLabelValues(string(platform), endpoint).Inc()
}

// RecordPublishFailure は投稿失敗を記録する。
// reasonは validation, image, upstream のいずれか。
func (c *Collector) RecordPublishFailure(platform model.Platform, reason string) {
	c.publishFail.WithLabelValues(string(platform), reason).Inc()
}

// RecordImageBytes は取得した画像のサイズを記録する。
func (c *Collector) RecordImageBytes(source string, size int) {
	c.imageBytes.WithLabelValues(source).Observe(float64(size))
}

// ObserveUpstream は外部API呼び出しのステータスとレイテンシを記録する。
// 通信失敗の場合、statusは0として記録される。
func (c *Collector) ObserveUpstream(platform model.Platform, operation string, status int, duration time.Duration) {
	c.upstreamStatus.WithLabelValues(string(platform), operation, strconv.Itoa(status)).Inc()
	c.upstreamLatency.WithLabelValues(string(platform), operation).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
