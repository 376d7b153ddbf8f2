// Package metrics はPrometheusメトリクスの収集と公開を提供する。
//
// コレクタは明示的に生成してレジストリと共に注入する。
// プロセス全体で暗黙に共有されるシングルトンは持たない。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア層から利用する。
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordAllocationRetry()
	RecordAllocationExhausted()
	RecordResetIssued()
	RecordResetRedeemed()
	RecordResetRejected(reason string)
	RecordGateDecision(decision string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins              *prometheus.CounterVec
	allocationRetries   prometheus.Counter
	allocationExhausted prometheus.Counter
	resetIssued         prometheus.Counter
	resetRedeemed       prometheus.Counter
	resetRejected       *prometheus.CounterVec
	gateDecisions       *prometheus.CounterVec
	httpStatus          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "サインイン試行の結果別合計数",
		}, []string{"outcome"}),
		allocationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_account_id_allocation_retries_total",
			Help: "アカウント識別子割り当ての衝突再試行の合計数",
		}),
		allocationExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_account_id_allocation_exhausted_total",
			Help: "再試行上限に達した識別子割り当て失敗の合計数",
		}),
		resetIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_reset_tokens_issued_total",
			Help: "発行されたパスワードリセットトークンの合計数",
		}),
		resetRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_reset_tokens_redeemed_total",
			Help: "消費されたパスワードリセットトークンの合計数",
		}),
		resetRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_reset_tokens_rejected_total",
			Help: "拒否されたリセットトークン検証の理由別合計数",
		}, []string{"reason"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_gate_decisions_total",
			Help: "認可ゲートの判定別合計数",
		}, []string{"decision"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.allocationRetries,
		c.allocationExhausted,
		c.resetIssued,
		c.resetRedeemed,
		c.resetRejected,
		c.gateDecisions,
		c.httpStatus,
	)

	return c
}

// RecordLogin はサインイン試行の結果を記録する。
// outcome: "success", "invalid_credentials", "deactivated"
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordAllocationRetry は識別子割り当ての衝突再試行を記録する。
func (c *Collector) RecordAllocationRetry() {
	c.allocationRetries.Inc()
}

// RecordAllocationExhausted は識別子割り当ての失敗を記録する。
func (c *Collector) RecordAllocationExhausted() {
	c.allocationExhausted.Inc()
}

// RecordResetIssued はリセットトークンの発行を記録する。
func (c *Collector) RecordResetIssued() {
	c.resetIssued.Inc()
}

// RecordResetRedeemed はリセットトークンの消費を記録する。
func (c *Collector) RecordResetRedeemed() {
	c.resetRedeemed.Inc()
}

// RecordResetRejected はリセットトークン検証の拒否を記録する。
// reason: "not_found", "expired"
func (c *Collector) RecordResetRejected(reason string) {
	c.resetRejected.WithLabelValues(reason).Inc()
}

// RecordGateDecision は認可ゲートの判定を記録する。
// decision: "public", "authenticated", "denied"
func (c *Collector) RecordGateDecision(decision string) {
	c.gateDecisions.WithLabelValues(decision).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
