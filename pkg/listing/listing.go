// Package listing はセクションのページ付き一覧をたどり、記事 URL の集合を作ります。
package listing

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/pkg/feed"
	"github.com/shouni/go-news-harvest/pkg/links"
	"github.com/shouni/go-news-harvest/pkg/types"
)

// DefaultMaxPages はセクションごとのページ数の既定値です。
const DefaultMaxPages = 50

// DocumentFetcher は一覧ページの取得処理です。
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string) (*goquery.Document, error)
}

// FeedSource はフィードから記事 URL を取り出す処理です。feed.Parser がこれを満たします。
type FeedSource interface {
	ArticleLinks(ctx context.Context, feedURL string, resolve feed.ResolveFunc) ([]string, error)
}

// StopReason はページ送りを止めた理由です。
type StopReason int

const (
	StopMaxPages StopReason = iota
	StopFetchError
	StopNoLinks
	StopNoNewLinks
	StopCanceled
)

func (r StopReason) String() string {
	switch r {
	case StopMaxPages:
		return "max_pages"
	case StopFetchError:
		return "fetch_error"
	case StopNoLinks:
		return "no_links"
	case StopNoNewLinks:
		return "no_new_links"
	case StopCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// PageResult は 1 ページ分の結果です。
type PageResult struct {
	Page  int
	URL   string
	Found int
	New   int
	Err   error
}

// Result はセクション 1 つ分の一覧走査の結果です。
type Result struct {
	Section   types.Section
	URLs      []string
	Pages     []PageResult
	Stop      StopReason
	FeedLinks int
}

// Crawler は一覧ページを順番にたどります。ページ送りは前のページの結果に依存するため逐次処理です。
type Crawler struct {
	fetcher    DocumentFetcher
	site       types.Site
	discoverer *links.Discoverer
	feeds      map[types.Section]string
	feedSource FeedSource
	log        *zap.Logger
}

// Option は Crawler の設定を行うための関数型です。
type Option func(*Crawler)

// WithLogger はロガーを設定します。
func WithLogger(log *zap.Logger) Option {
	return func(c *Crawler) {
		if log != nil {
			c.log = log
		}
	}
}

// WithFeeds はセクションごとのフィード URL と、その取得元を設定します。
func WithFeeds(source FeedSource, feeds map[types.Section]string) Option {
	return func(c *Crawler) {
		c.feedSource = source
		c.feeds = feeds
	}
}

// New は新しい Crawler を生成します。
func New(fetcher DocumentFetcher, site types.Site, opts ...Option) (*Crawler, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("listing.New: fetcher が nil です")
	}
	discoverer, err := links.NewDiscoverer(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("リンク抽出器の初期化に失敗しました: %w", err)
	}

	c := &Crawler{
		fetcher:    fetcher,
		site:       site,
		discoverer: discoverer,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListURLs はセクションの記事 URL を重複なく返します。順序は保証しません。
func (c *Crawler) ListURLs(ctx context.Context, section types.Section, maxPages int) []string {
	return c.Crawl(ctx, section, maxPages).URLs
}

// Crawl は 1 ページ目から maxPages まで一覧を取得します。
// 取得失敗、リンク 0 件、全リンクが既知のいずれかでただちに停止します。
func (c *Crawler) Crawl(ctx context.Context, section types.Section, maxPages int) Result {
	if maxPages < 1 {
		maxPages = 1
	}
	log := c.log.With(zap.String("section", section.String()))

	res := Result{Section: section, URLs: []string{}, Stop: StopMaxPages}
	known := make(map[string]struct{})

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			res.Stop = StopCanceled
			break
		}

		pageURL := c.site.PageURL(section, page)
		pr := PageResult{Page: page, URL: pageURL}

		doc, err := c.fetcher.FetchDocument(ctx, pageURL)
		if err != nil {
			pr.Err = err
			res.Pages = append(res.Pages, pr)
			res.Stop = StopFetchError
			if ctx.Err() != nil {
				res.Stop = StopCanceled
			}
			log.Warn("一覧ページの取得に失敗しました", zap.Int("page", page), zap.Error(err))
			break
		}

		found := c.discoverer.Extract(doc)
		pr.Found = len(found)
		for _, u := range found {
			if _, ok := known[u]; ok {
				continue
			}
			known[u] = struct{}{}
			res.URLs = append(res.URLs, u)
			pr.New++
		}
		res.Pages = append(res.Pages, pr)
		log.Info("一覧ページを処理しました",
			zap.Int("page", page), zap.Int("found", pr.Found), zap.Int("new", pr.New), zap.Int("total", len(res.URLs)))

		if pr.Found == 0 {
			res.Stop = StopNoLinks
			break
		}
		if pr.New == 0 {
			res.Stop = StopNoNewLinks
			break
		}
	}

	res.FeedLinks = c.mergeFeed(ctx, section, known, &res)
	log.Info("一覧の走査が完了しました",
		zap.Int("urls", len(res.URLs)), zap.Int("pages", len(res.Pages)), zap.Stringer("stop", res.Stop))
	return res
}

// mergeFeed はフィードのリンクのうち未知のものを追加し、その件数を返します。
func (c *Crawler) mergeFeed(ctx context.Context, section types.Section, known map[string]struct{}, res *Result) int {
	feedURL := c.feeds[section]
	if c.feedSource == nil || feedURL == "" || ctx.Err() != nil {
		return 0
	}

	feedLinks, err := c.feedSource.ArticleLinks(ctx, feedURL, c.discoverer.Resolve)
	if err != nil {
		c.log.Warn("フィードの取得に失敗しました", zap.String("section", section.String()), zap.String("feed", feedURL), zap.Error(err))
		return 0
	}

	added := 0
	for _, u := range feedLinks {
		if _, ok := known[u]; ok {
			continue
		}
		known[u] = struct{}{}
		res.URLs = append(res.URLs, u)
		added++
	}
	return added
}
