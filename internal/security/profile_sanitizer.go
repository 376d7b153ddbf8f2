// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer はユーザーが入力したプロフィール項目をサニタイズし、
// ポータル画面でのXSSからユーザーを保護する。
// bluemondayライブラリの許可リストベースのポリシーを使用する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizerService はプロフィール項目のサニタイズ機能のインターフェースを定義する。
// プロフィール更新の保存前に使用される。
type ProfileSanitizerService interface {
	// SanitizeDisplayName は表示名をプレーンテキストとしてサニタイズする。
	// すべてのHTMLタグを除去し、前後の空白をトリムする。
	SanitizeDisplayName(raw string) string

	// SanitizeBio は自己紹介文をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, ul, ol, li, strong, em, a）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはrel="noopener noreferrer"が自動付与される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeBio(raw string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type profileSanitizer struct {
	namePolicy *bluemonday.Policy
	bioPolicy  *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
// 表示名にはStrictPolicy（全タグ除去）、bioには限定的な許可リストを使用する。
func NewProfileSanitizer() *profileSanitizer {
	bio := bluemonday.NewPolicy()
	bio.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	bio.AllowAttrs("href").OnElements("a")
	bio.AllowURLSchemes("http", "https")
	bio.RequireNoFollowOnLinks(false)
	bio.AddTargetBlankToFullyQualifiedLinks(true)

	return &profileSanitizer{
		namePolicy: bluemonday.StrictPolicy(),
		bioPolicy:  bio,
	}
}

// SanitizeDisplayName は表示名をプレーンテキストとしてサニタイズする。
func (s *profileSanitizer) SanitizeDisplayName(raw string) string {
	return strings.TrimSpace(s.namePolicy.Sanitize(raw))
}

// SanitizeBio は自己紹介文をサニタイズして安全なHTMLを返す。
func (s *profileSanitizer) SanitizeBio(raw string) string {
	return strings.TrimSpace(s.bioPolicy.Sanitize(raw))
}

// compile-time interface check
var _ ProfileSanitizerService = (*profileSanitizer)(nil)
