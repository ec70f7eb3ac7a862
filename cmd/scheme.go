package cmd

import (
	"fmt"
	"net/url"
	"strings"
)

// ensureScheme は入力された記事 URL を正規化します。
// 前後の空白を除き、スキームがなければ https を補完します。"//host/path" 形式も https として扱います。
func ensureScheme(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("URLが空です")
	}
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("URLのパースエラー: %w", err)
	}

	if parsedURL.Scheme == "" {
		return ensureScheme("https://" + rawURL)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("無効なURLスキームです。httpまたはhttpsを指定してください: %s", rawURL)
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("URLにホストがありません: %s", rawURL)
	}
	return parsedURL.String(), nil
}
