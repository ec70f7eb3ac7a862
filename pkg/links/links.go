// Package links は記事 URL の正規化と一覧ページからの記事リンク発見を扱います。
package links

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/shouni/go-news-harvest/pkg/extract"
)

// articlePath は記事ページのパス（ページ番号付き一覧を除く）に一致します。
const articlePath = `/(news|stories|columns|opinions|neuroprofiles|reviews|checklists)/[^/?#]+/?$`

var (
	articlePathPattern = regexp.MustCompile(articlePath)
	cardClass          = regexp.MustCompile(`(?i)article|card|post|item|news|story|column|opinion`)
)

// NormalizeURL はスキームとホストを小文字化し、クエリとフラグメントを取り除き、末尾をスラッシュ 1 つに揃えます。
// 正規化済みの URL に再適用しても結果は変わりません。
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("URLの解析に失敗しました: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("絶対URLではありません: %s", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawPath = ""
	return u.String(), nil
}

// Discoverer は一覧ページから記事 URL を集めます。
type Discoverer struct {
	base        *url.URL
	fullPattern *regexp.Regexp
}

// NewDiscoverer は baseURL のサイトを対象とする Discoverer を生成します。
func NewDiscoverer(baseURL string) (*Discoverer, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("ベースURLが不正です: %q", baseURL)
	}
	host := strings.TrimPrefix(strings.ToLower(base.Host), "www.")
	full := regexp.MustCompile(`^(?i:https?://(?:www\.)?` + regexp.QuoteMeta(host) + `)` + articlePath)
	return &Discoverer{base: base, fullPattern: full}, nil
}

// Resolve は href をベース URL で解決し、記事 URL であれば正規化して返します。
func (d *Discoverer) Resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := d.base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	candidate := abs.String()
	if i := strings.IndexByte(candidate, '?'); i >= 0 {
		candidate = candidate[:i]
	}
	if !d.fullPattern.MatchString(candidate) {
		return "", false
	}
	normalized, err := NormalizeURL(candidate)
	if err != nil || strings.Contains(normalized, "/page/") {
		return "", false
	}
	return normalized, true
}

// Extract は複数の経路でリンクを集め、記事 URL だけを発見順に重複なく返します。
// マークアップの揺れに備え、経路は意図的に重複しています。
func (d *Discoverer) Extract(doc *goquery.Document) []string {
	root := doc.Selection
	var anchors []*html.Node
	seenNodes := make(map[*html.Node]struct{})
	collect := func(sel *goquery.Selection) {
		for _, n := range sel.Nodes {
			if _, ok := seenNodes[n]; ok {
				continue
			}
			seenNodes[n] = struct{}{}
			anchors = append(anchors, n)
		}
	}
	matchesPath := func(_ int, a *goquery.Selection) bool {
		return articlePathPattern.MatchString(a.AttrOr("href", ""))
	}

	// 1. href が記事パターンに一致するリンク
	collect(root.Find("a[href]").FilterFunction(matchesPath))

	// 2. <article> 内の最初のリンク
	root.Find("article").Each(func(_ int, s *goquery.Selection) {
		collect(s.Find("a[href]").First())
	})

	// 3. カード・リスト要素内のすべてのリンク
	extract.FindByClass(root, "div, section, li", cardClass).Each(func(_ int, s *goquery.Selection) {
		collect(s.Find("a[href]"))
	})

	// 4. 全リンクの走査（クエリ付きの絶対 URL などは最後の検証で拾う）
	collect(root.Find("a[href]"))

	urls := make([]string, 0, len(anchors))
	seen := make(map[string]struct{})
	for _, n := range anchors {
		u, ok := d.Resolve(hrefOf(n))
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

func hrefOf(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "href" {
			return a.Val
		}
	}
	return ""
}
