package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/internal/config"
	"github.com/shouni/go-news-harvest/internal/ledger"
	"github.com/shouni/go-news-harvest/pkg/storage"
	"github.com/shouni/go-news-harvest/pkg/types"
)

const listingHTML = `<html><body>
<div class="news-list">
  <div class="card"><a href="/news/alpha/">Alpha</a></div>
  <div class="card"><a href="/news/beta/?utm=x">Beta</a></div>
  <div class="card"><a href="/news/missing/">Missing</a></div>
  <a href="/news/?page=2">Далее</a>
</div>
</body></html>`

func articleHTML(title string) string {
	return fmt.Sprintf(`<html><head>
<title>%[1]s | RB.RU</title>
<meta property="og:title" content="%[1]s">
</head><body>
<article><div class="article-body">
<p>Компания Яндекс привлекла 220 млн ₽ от фонда.</p>
</div></article>
</body></html>`, title)
}

// newSite は一覧と記事を返すテスト用サイトを起動します。missingOK が true になるまで /news/missing/ は 404 です。
func newSite(t *testing.T, missingOK *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/news/":
			if r.URL.Query().Get("page") != "" {
				fmt.Fprint(w, "<html><body><p>Пусто</p></body></html>")
				return
			}
			fmt.Fprint(w, listingHTML)
		case "/news/alpha/":
			fmt.Fprint(w, articleHTML("Alpha"))
		case "/news/beta/":
			fmt.Fprint(w, articleHTML("Beta"))
		case "/news/missing/":
			if !missingOK.Load() {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, articleHTML("Recovered"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newDeps(t *testing.T, baseURL string) *Deps {
	t.Helper()
	cfg := config.Config{
		BaseURL:            baseURL,
		Workers:            2,
		Timeout:            5,
		MaxRetries:         1,
		Pages:              map[string]int{"news": 3},
		SectionCheckpoints: true,
		OutputDir:          t.TempDir(),
		LedgerPath:         ledger.MemoryPath,
	}.WithDefaults()
	d, err := Build(&cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestBuild_NilConfig(t *testing.T) {
	_, err := Build(nil, nil)
	assert.Error(t, err)
}

func TestPlans(t *testing.T) {
	cfg := config.Config{MaxPages: 5, Pages: map[string]int{"news": 100}}

	all := Plans(&cfg, nil)
	require.Len(t, all, len(types.AllSections()))
	assert.Equal(t, 100, all[0].MaxPages)
	assert.Equal(t, 5, all[1].MaxPages)

	one := Plans(&cfg, []types.Section{types.SectionReviews})
	require.Len(t, one, 1)
	assert.Equal(t, types.SectionReviews, one[0].Section)
}

func TestCrawlAndRetryFailed(t *testing.T) {
	var missingOK atomic.Bool
	srv := newSite(t, &missingOK)
	d := newDeps(t, srv.URL)
	ctx := context.Background()

	res, err := Crawl(ctx, d, []types.Section{types.SectionNews})
	require.NoError(t, err)

	require.Len(t, res.Articles, 2)
	titles := []string{res.Articles[0].Title, res.Articles[1].Title}
	assert.ElementsMatch(t, []string{"Alpha", "Beta"}, titles)
	for _, a := range res.Articles {
		assert.Equal(t, "news", a.ContentType)
		assert.Contains(t, a.Companies, "Яндекс")
		require.NotEmpty(t, a.Money)
		assert.Equal(t, "220 млн ₽", a.Money[0].Original)
	}
	require.Len(t, res.Failed, 1)
	assert.Equal(t, srv.URL+"/news/missing/", res.Failed[0].URL)

	dir := d.Config.OutputDir
	assert.Equal(t, []string{filepath.Join(dir, "rb_articles.json"), filepath.Join(dir, "rb_articles.csv")}, res.Files)
	assert.FileExists(t, filepath.Join(dir, "rb_articles_milestone_news.json"))

	failed, err := d.Ledger.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, types.SectionNews, failed[0].Section)
	assert.Equal(t, res.RunID, failed[0].RunID)

	run, err := d.Ledger.Run(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Articles)

	// 失敗していた URL が回復したら retry-failed で取り込む
	missingOK.Store(true)
	corpus := filepath.Join(dir, "rb_articles.json")
	retried, err := RetryFailed(ctx, d, corpus)
	require.NoError(t, err)
	require.Len(t, retried.Articles, 1)
	assert.Equal(t, "Recovered", retried.Articles[0].Title)

	merged, err := storage.LoadJSON(corpus)
	require.NoError(t, err)
	assert.Len(t, merged, 3)

	failed, err = d.Ledger.Failed(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestRetryFailed_Empty(t *testing.T) {
	var ok atomic.Bool
	d := newDeps(t, newSite(t, &ok).URL)

	res, err := RetryFailed(context.Background(), d, filepath.Join(d.Config.OutputDir, "rb_articles.json"))
	require.NoError(t, err)
	assert.Empty(t, res.Articles)
	assert.Empty(t, res.Files)
}

func TestRetryFailed_LedgerDisabled(t *testing.T) {
	cfg := config.Config{OutputDir: t.TempDir()}.WithDefaults()
	d, err := Build(&cfg, nil)
	require.NoError(t, err)

	_, err = RetryFailed(context.Background(), d, "x.json")
	assert.Error(t, err)
}

func TestExtractArticle(t *testing.T) {
	var ok atomic.Bool
	srv := newSite(t, &ok)
	d := newDeps(t, srv.URL)

	a, err := ExtractArticle(context.Background(), d, srv.URL+"/news/alpha/")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", a.Title)

	_, err = ExtractArticle(context.Background(), d, srv.URL+"/news/missing/")
	assert.Error(t, err)
}

func TestBuild_UserAgents(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		fmt.Fprint(w, articleHTML("UA"))
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{
		BaseURL:    srv.URL,
		Timeout:    5,
		MaxRetries: 1,
		OutputDir:  t.TempDir(),
		UserAgents: []string{"harvest-test/1.0"},
	}.WithDefaults()
	d, err := Build(&cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	_, err = ExtractArticle(context.Background(), d, srv.URL+"/news/ua/")
	require.NoError(t, err)
	assert.Equal(t, "harvest-test/1.0", gotUA.Load())
}

func TestExtractDeadline(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want time.Duration
	}{
		{
			// 5 試行 × 15 秒 + バックオフ 1+2+4+8 秒 + 待機 0.3 秒 + 解析 5 秒
			name: "正常ケース_既定値",
			cfg:  config.Config{Timeout: 15, MaxRetries: 5, Delay: 0.3},
			want: 95*time.Second + 300*time.Millisecond,
		},
		{
			name: "正常ケース_1回のみ",
			cfg:  config.Config{Timeout: 10, MaxRetries: 1},
			want: 15 * time.Second,
		},
		{
			name: "エッジケース_試行回数0は1回として扱う",
			cfg:  config.Config{Timeout: 10},
			want: 15 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractDeadline(&tt.cfg))
		})
	}
}

func TestMergeArticles(t *testing.T) {
	base := []types.Article{{URL: "a", Title: "old"}, {URL: "b"}}
	extra := []types.Article{{URL: "c"}, {URL: "a", Title: "new"}}

	got := MergeArticles(base, extra)

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].URL)
	assert.Equal(t, "new", got[0].Title)
	assert.Equal(t, "b", got[1].URL)
	assert.Equal(t, "c", got[2].URL)
	assert.Empty(t, MergeArticles(nil, nil))
}
