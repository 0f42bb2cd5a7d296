// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 問い合わせパイプライン、ワーカー、ハンドラーから利用する。
type MetricsCollector interface {
	RecordInquirySubmitted(inquiryType string)
	RecordValidationFailure(field string)
	RecordPersistenceFailure()
	RecordHandoffFailure(channel string)
	RecordSubmitLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordFollowUpsSent(count int)
	RecordInquiriesPurged(count int)
	RecordAssetUploaded(source string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	inquirySubmitted *prometheus.CounterVec
	validationFail   *prometheus.CounterVec
	persistenceFail  prometheus.Counter
	handoffFail      *prometheus.CounterVec
	submitLatency    prometheus.Histogram
	httpStatus       *prometheus.CounterVec
	followUpsSent    prometheus.Counter
	inquiriesPurged  prometheus.Counter
	assetUploaded    *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		inquirySubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autowheel_inquiry_submitted_total",
			Help: "保存に成功した問い合わせの合計数（種別ごと）",
		}, []string{"inquiry_type"}),
		validationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autowheel_inquiry_validation_fail_total",
			Help: "問い合わせ入力エラーの合計数（項目ごと）",
		}, []string{"field"}),
		persistenceFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autowheel_inquiry_persistence_fail_total",
			Help: "問い合わせキューへの保存失敗の合計数",
		}),
		handoffFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autowheel_handoff_fail_total",
			Help: "外部チャネルへの引き渡し失敗の合計数（チャネルごと）",
		}, []string{"channel"}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autowheel_inquiry_submit_latency_seconds",
			Help:    "問い合わせ送信処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autowheel_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		followUpsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autowheel_followup_reminders_sent_total",
			Help: "送信したフォローアップリマインダーの合計数",
		}),
		inquiriesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autowheel_inquiries_purged_total",
			Help: "保存期間を過ぎて削除された問い合わせの合計数",
		}),
		assetUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autowheel_asset_uploaded_total",
			Help: "アップロードされた画像の合計数（取得元ごと）",
		}, []string{"source"}),
	}

	reg.MustRegister(
		c.inquirySubmitted,
		c.validationFail,
		c.persistenceFail,
		c.handoffFail,
		c.submitLatency,
		c.httpStatus,
		c.followUpsSent,
		c.inquiriesPurged,
		c.assetUploaded,
	)

	return c
}

// RecordInquirySubmitted は問い合わせの保存成功を記録する。
func (c *Collector) RecordInquirySubmitted(inquiryType string) {
	c.inquirySubmitted.WithLabelValues(inquiryType).Inc()
}

// RecordValidationFailure は入力エラーになった項目を記録する。
func (c *Collector) RecordValidationFailure(field string) {
	c.validationFail.WithLabelValues(field).Inc()
}

// RecordPersistenceFailure は問い合わせキューへの保存失敗を記録する。
func (c *Collector) RecordPersistenceFailure() {
	c.persistenceFail.Inc()
}

// RecordHandoffFailure は外部チャネルへの引き渡し失敗を記録する。
func (c *Collector) RecordHandoffFailure(channel string) {
	c.handoffFail.WithLabelValues(channel).Inc()
}

// RecordSubmitLatency は問い合わせ送信処理のレイテンシを記録する。
func (c *Collector) RecordSubmitLatency(duration time.Duration) {
	c.submitLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFollowUpsSent は送信したリマインダー数を記録する。
func (c *Collector) RecordFollowUpsSent(count int) {
	c.followUpsSent.Add(float64(count))
}

// RecordInquiriesPurged は削除した問い合わせ数を記録する。
func (c *Collector) RecordInquiriesPurged(count int) {
	c.inquiriesPurged.Add(float64(count))
}

// RecordAssetUploaded は画像アップロードを記録する。sourceは "upload" か "remote"。
func (c *Collector) RecordAssetUploaded(source string) {
	c.assetUploaded.WithLabelValues(source).Inc()
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない構成やテストで使う。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordInquirySubmitted(string)     {}
func (Nop) RecordValidationFailure(string)    {}
func (Nop) RecordPersistenceFailure()         {}
func (Nop) RecordHandoffFailure(string)       {}
func (Nop) RecordSubmitLatency(time.Duration) {}
func (Nop) RecordHTTPStatus(int)              {}
func (Nop) RecordFollowUpsSent(int)           {}
func (Nop) RecordInquiriesPurged(int)         {}
func (Nop) RecordAssetUploaded(string)        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集に失敗したメトリクスがあっても残りは返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}
