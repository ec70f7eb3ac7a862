package feed

import (
	"github.com/mmcdole/gofeed"
)

// LinkSource は、リンクのリストを提供できる任意の型を表します。
type LinkSource interface {
	GetLinks() []string
}

// ResolveFunc はリンクを記事 URL に正規化します。記事でなければ false を返します。
type ResolveFunc func(link string) (string, bool)

// FeedAdapter は gofeed.Feed を LinkSource に適合させるためのアダプターです。
type FeedAdapter struct {
	*gofeed.Feed
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed) *FeedAdapter {
	return &FeedAdapter{Feed: feed}
}

// GetLinks は各アイテムの空でないリンクを返します。
func (a *FeedAdapter) GetLinks() []string {
	if a.Feed == nil || len(a.Items) == 0 {
		return []string{}
	}

	urls := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item != nil && item.Link != "" {
			urls = append(urls, item.Link)
		}
	}
	return urls
}

// ArticleLinks は source のリンクのうち resolve が受理したものを、正規化して重複なく返します。
func ArticleLinks(source LinkSource, resolve ResolveFunc) []string {
	if source == nil || resolve == nil {
		return []string{}
	}

	links := source.GetLinks()
	result := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		u, ok := resolve(link)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		result = append(result, u)
	}
	return result
}
