// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 上流API呼び出し結果のラベル値
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeUnauth      = "unauthenticated"
	OutcomeUnavailable = "unavailable"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 上流クライアントや認可ストアから利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(source, outcome string)
	RecordUpstreamLatency(source string, duration time.Duration)
	RecordCredentialRefresh(success bool)
	RecordTeamResolution(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests  *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	credentialRefresh *prometheus.CounterVec
	teamResolutions   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashhub_upstream_requests_total",
			Help: "上流API呼び出しの結果別合計数",
		}, []string{"source", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashhub_upstream_latency_seconds",
			Help:    "上流API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		credentialRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashhub_credential_refresh_total",
			Help: "Googleトークンリフレッシュの結果別合計数",
		}, []string{"result"}),
		teamResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashhub_team_resolutions_total",
			Help: "GitHubチーム所属解決の結果別合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.credentialRefresh,
		c.teamResolutions,
	)

	return c
}

// RecordUpstreamRequest は上流API呼び出しの結果を記録する。
func (c *Collector) RecordUpstreamRequest(source, outcome string) {
	c.upstreamRequests.WithLabelValues(source, outcome).Inc()
}

// RecordUpstreamLatency は上流API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(source string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCredentialRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordCredentialRefresh(success bool) {
	c.credentialRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// RecordTeamResolution はチーム所属解決の結果を記録する。
func (c *Collector) RecordTeamResolution(success bool) {
	c.teamResolutions.WithLabelValues(resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordUpstreamRequest(string, string)        {}
func (Nop) RecordUpstreamLatency(string, time.Duration) {}
func (Nop) RecordCredentialRefresh(bool)                {}
func (Nop) RecordTeamResolution(bool)                   {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
