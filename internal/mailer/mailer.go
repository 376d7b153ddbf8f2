// Package mailer はリセットメールの外部配信境界を提供する。
//
// 実際のメール送信は外部の配信サービスが担い、本パッケージは
// 配信Webhookへの引き渡しのみを行う。Webhook未設定の環境では
// ログ出力のみのフォールバック実装を使用する。
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// webhookTimeout は配信Webhook呼び出しのタイムアウト。
const webhookTimeout = 10 * time.Second

// Mailer はリセットメール配信のインターフェース。
type Mailer interface {
	// SendPasswordReset はパスワードリセットリンクを指定アドレス宛に配信する。
	SendPasswordReset(ctx context.Context, email, resetURL string) error
}

// WebhookMailer は配信サービスのWebhookにリセットメールを引き渡す実装。
// Webhook先への到達はsafeurlのSSRF防止クライアントで行い、
// プライベートIP・ループバック・リンクローカル・メタデータIPへの
// リクエストをDialerレベル（DNS解決後）でブロックする。
type WebhookMailer struct {
	webhookURL string
	from       string
	client     *http.Client
}

// NewWebhookMailer はWebhookMailerを生成する。
// webhookURLはhttp/httpsの公開エンドポイントであること。
// 不正なURLの場合はエラーを返す。
func NewWebhookMailer(webhookURL, from string) (*WebhookMailer, error) {
	if err := validateWebhookURL(webhookURL); err != nil {
		return nil, fmt.Errorf("invalid mail webhook URL: %w", err)
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(webhookTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	wrappedClient := safeurl.Client(config)

	return &WebhookMailer{
		webhookURL: webhookURL,
		from:       from,
		client:     wrappedClient.Client,
	}, nil
}

// webhookPayload は配信Webhookへ送るリクエストボディ。
type webhookPayload struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Template string `json:"template"`
	ResetURL string `json:"reset_url"`
}

// SendPasswordReset はリセットリンクを配信Webhookへ引き渡す。
func (m *WebhookMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	payload := webhookPayload{
		From:     m.from,
		To:       email,
		Template: "password_reset",
		ResetURL: resetURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create mail webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call mail webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// validateWebhookURL はWebhook URLの静的検証を行う。
// DNS再バインディング対策はクライアント側のDialer検証に委ねる。
func validateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %s", scheme)
	}
	if parsed.Hostname() == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	return nil
}

// LogMailer は実際の配信を行わず、配信内容をログに記録するフォールバック実装。
// MAIL_WEBHOOK_URL未設定の開発・検証環境で使用する。
type LogMailer struct{}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// SendPasswordReset は配信内容をログに記録する。
// トークンを含むURL全体はログに残さない。
func (m *LogMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	slog.Info("password reset mail (log only, delivery disabled)",
		slog.String("to", email),
	)
	return nil
}

// compile-time interface checks
var _ Mailer = (*WebhookMailer)(nil)
var _ Mailer = (*LogMailer)(nil)
