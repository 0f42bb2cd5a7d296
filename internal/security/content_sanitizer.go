// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は管理画面や問い合わせフォームから入力されたテキストを
// 公開ページに表示する前に無害化する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize は車両説明文などの簡易HTMLをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, ul, ol, li, strong, em, a）のみを通過させ、
	// script, iframe, style, img タグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	Sanitize(rawHTML string) string

	// PlainText は全てのタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// 体験談や問い合わせ本文など、HTMLとして解釈させない項目に使う。
	PlainText(raw string) string
}

// Sanitizer はbluemondayのポリシーで実装したContentSanitizerService。
// ポリシーはスレッドセーフなので共有して使う。
type Sanitizer struct {
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
}

var _ ContentSanitizerService = (*Sanitizer)(nil)

// NewContentSanitizer は車両説明文向けの許可リストと、全タグを落とす厳格ポリシーを持つSanitizerを生成する。
func NewContentSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &Sanitizer{
		rich:   p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize は簡易HTMLをサニタイズする。
func (s *Sanitizer) Sanitize(rawHTML string) string {
	return strings.TrimSpace(s.rich.Sanitize(rawHTML))
}

// PlainText はタグを除去したテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため、保存用に元の文字へ戻す。
func (s *Sanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}
