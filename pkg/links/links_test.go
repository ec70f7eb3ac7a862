package links

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"末尾スラッシュを付与", "https://rb.ru/news/abc", "https://rb.ru/news/abc/"},
		{"クエリを除去", "https://rb.ru/news/abc/?utm_source=x", "https://rb.ru/news/abc/"},
		{"フラグメントを除去", "https://rb.ru/news/abc#comments", "https://rb.ru/news/abc/"},
		{"ホストを小文字化", "HTTPS://RB.RU/news/abc//", "https://rb.ru/news/abc/"},
		{"正規化済み", "https://rb.ru/news/abc/", "https://rb.ru/news/abc/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := NormalizeURL(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "再正規化しても変わらない")
		})
	}
}

func TestNormalizeURL_Relative(t *testing.T) {
	_, err := NormalizeURL("/news/abc/")
	assert.Error(t, err)
}

func TestDiscoverer_Resolve(t *testing.T) {
	d, err := NewDiscoverer("https://rb.ru")
	require.NoError(t, err)

	tests := []struct {
		name   string
		href   string
		want   string
		wantOK bool
	}{
		{"相対パス", "/news/startup-raise/", "https://rb.ru/news/startup-raise/", true},
		{"www 付き", "https://www.rb.ru/stories/long-read", "https://www.rb.ru/stories/long-read/", true},
		{"クエリ付き", "https://rb.ru/columns/opinion-1/?from=main", "https://rb.ru/columns/opinion-1/", true},
		{"セクション一覧", "/news/", "", false},
		{"ページ番号", "/news/page/", "", false},
		{"深いパス", "/news/a/b/", "", false},
		{"別ドメイン", "https://example.com/news/a/", "", false},
		{"空", "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Resolve(tt.href)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDiscoverer_InvalidBase(t *testing.T) {
	_, err := NewDiscoverer("not a url")
	assert.Error(t, err)
}

func TestDiscoverer_Extract(t *testing.T) {
	html := `<html><body>
<header><a href="/news/">Новости</a></header>
<article><a href="/news/first/">Первая</a><a href="/news/first/#comments">Комментарии</a></article>
<div class="card"><a href="https://RB.RU/stories/second">Вторая</a></div>
<ul><li><a href="/news/third/?utm=1">Третья</a></li></ul>
<a href="https://rb.ru/news/first">Снова первая</a>
<a href="/news/page/2/">Дальше</a>
<a href="https://example.com/news/foreign/">Чужая</a>
</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	d, err := NewDiscoverer("https://rb.ru")
	require.NoError(t, err)

	got := d.Extract(doc)

	assert.Equal(t, []string{
		"https://rb.ru/news/first/",
		"https://rb.ru/stories/second/",
		"https://rb.ru/news/third/",
	}, got)
}
