// Package security は上流API呼び出しに関わる安全対策を提供する。
// ユーザーが設定したホストへの接続制限と、上流から届く自由記述テキストの無害化を扱う。
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// HostGuard はユーザー設定のホスト（Jiraドメイン等）への接続を制限するインターフェース。
type HostGuard interface {
	// NewSafeClient はプライベート・ループバック・リンクローカル宛ての接続を
	// ダイヤル時に拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client
	// ValidateDomain は設定値のドメインを静的に検証し、正規化したURLを返す。
	ValidateDomain(domain string) (string, error)
}

var blockedPrefixes = mustParsePrefixes(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドメタデータを含む
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParsePrefixes(cidrs ...string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefixes = append(prefixes, netip.MustParsePrefix(cidr))
	}
	return prefixes
}

// SSRFGuard はsafeurlを用いたHostGuardの実装。
type SSRFGuard struct{}

// NewSSRFGuard はSSRFGuardを生成する。
func NewSSRFGuard() *SSRFGuard {
	return &SSRFGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// httpsの443番ポートのみ許可し、DNS解決後のIPアドレスも検証される。
func (g *SSRFGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()
	return safeurl.Client(config).Client
}

// ValidateDomain は "acme.atlassian.net" 形式のドメインを "https://acme.atlassian.net" に正規化する。
// スキーム付きで指定された場合はhttpsのみ受け付ける。パスやクエリを含む値は拒否する。
func (g *SSRFGuard) ValidateDomain(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", fmt.Errorf("empty domain")
	}

	raw := domain
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", domain, err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return "", fmt.Errorf("disallowed scheme: %s", parsed.Scheme)
	}
	if parsed.Port() != "" && parsed.Port() != "443" {
		return "", fmt.Errorf("disallowed port: %s", parsed.Port())
	}
	if strings.Trim(parsed.Path, "/") != "" || parsed.RawQuery != "" || parsed.User != nil {
		return "", fmt.Errorf("domain must not contain path, query or userinfo: %s", domain)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("empty host: %s", domain)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return "", fmt.Errorf("blocked IP address: %s", addr)
		}
	} else if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return "", fmt.Errorf("blocked host: %s", host)
	}

	return "https://" + strings.ToLower(parsed.Host), nil
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

var _ HostGuard = (*SSRFGuard)(nil)
