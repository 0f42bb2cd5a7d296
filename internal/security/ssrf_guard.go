// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService はSSRF防止機能のインターフェースを定義する。
// 体験談の写真URLの登録時と、外部画像の取り込み時の両方で使用される。
type SSRFGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// リダイレクトは maxRedirects 回まで追従し、各リダイレクト先も ValidateURL で検証する。
	NewSafeClient(timeout time.Duration, maxRedirects int) *http.Client

	// ValidateURL はDNS解決を伴わない静的な検証を行い、危険なURLなら *BlockedURLError を返す。
	ValidateURL(rawURL string) error
}

// ErrBlockedURL は ValidateURL が拒否したURLを表す。errors.Is で判定できる。
var ErrBlockedURL = errors.New("blocked url")

// BlockedURLError は拒否理由付きのURL検証エラー。
type BlockedURLError struct {
	URL    string
	Reason string
}

func (e *BlockedURLError) Error() string {
	return fmt.Sprintf("blocked url %q: %s", e.URL, e.Reason)
}

// Is は errors.Is(err, ErrBlockedURL) を満たす。
func (e *BlockedURLError) Is(target error) bool { return target == ErrBlockedURL }

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は画像の取得先として許可しないアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),      // カレントネットワーク
	netip.MustParsePrefix("10.0.0.0/8"),     // RFC 1918
	netip.MustParsePrefix("100.64.0.0/10"),  // キャリアグレードNAT
	netip.MustParsePrefix("127.0.0.0/8"),    // ループバック
	netip.MustParsePrefix("169.254.0.0/16"), // リンクローカル（クラウドメタデータを含む）
	netip.MustParsePrefix("172.16.0.0/12"),  // RFC 1918
	netip.MustParsePrefix("192.168.0.0/16"), // RFC 1918
	netip.MustParsePrefix("198.18.0.0/15"),  // ベンチマーク用
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// blockedHostnames は名前解決せずに拒否するホスト名。サブドメインも対象。
var blockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
}

// URLGuard はSSRFGuardServiceの実装。
type URLGuard struct{}

var _ SSRFGuardService = (*URLGuard)(nil)

// NewSSRFGuard はURLGuardを生成する。
func NewSSRFGuard() *URLGuard {
	return &URLGuard{}
}

// NewSafeClient はsafeurlでダイヤル時の接続先IPを検証するHTTPクライアントを返す。
// DNS再バインディングで内部アドレスに解決された場合も接続前に拒否される。
// 接続先ポートは80と443に限る。
func (g *URLGuard) NewSafeClient(timeout time.Duration, maxRedirects int) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	client := safeurl.Client(config).Client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return g.ValidateURL(req.URL.String())
	}
	return client
}

// ValidateURL は写真URLの保存時と、画像取り込みのリクエスト前に呼ぶ。
// ホスト名の名前解決後の検証は NewSafeClient 側が担う。
func (g *URLGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &BlockedURLError{URL: rawURL, Reason: "empty url"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &BlockedURLError{URL: rawURL, Reason: "unparseable url"}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return &BlockedURLError{URL: rawURL, Reason: "scheme must be http or https"}
	}

	host := parsed.Hostname()
	if host == "" {
		return &BlockedURLError{URL: rawURL, Reason: "missing host"}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return &BlockedURLError{URL: rawURL, Reason: "internal address " + addr.String()}
		}
		return nil
	}

	if blockedHost(host) {
		return &BlockedURLError{URL: rawURL, Reason: "internal host " + host}
	}
	return nil
}

// blockedAddr はIPv4射影アドレスをIPv4として扱った上で範囲を照合する。
func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func blockedHost(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	for _, blocked := range blockedHostnames {
		if lower == blocked || strings.HasSuffix(lower, "."+blocked) {
			return true
		}
	}
	return false
}
