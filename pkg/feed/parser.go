package feed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// Fetcher は Parser が依存する取得処理です。httpclient.Client がこれを満たします。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Parser はセクションの RSS/Atom フィードを取得・解析します。
type Parser struct {
	client Fetcher
}

// NewParser は新しい Parser インスタンスを初期化し、依存関係を注入します。
func NewParser(client Fetcher) *Parser {
	return &Parser{client: client}
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := p.client.FetchBytes(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得失敗 (URL: %s): %w", feedURL, err)
	}

	fp := gofeed.NewParser()
	feed, parseErr := fp.Parse(bytes.NewReader(body))
	if parseErr != nil {
		return nil, fmt.Errorf("RSSフィードのパース失敗 (URL: %s): %w", feedURL, parseErr)
	}
	return feed, nil
}

// ArticleLinks はフィードを取得し、記事 URL として受理されたリンクを返します。
func (p *Parser) ArticleLinks(ctx context.Context, feedURL string, resolve ResolveFunc) ([]string, error) {
	feed, err := p.FetchAndParse(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return ArticleLinks(NewFeedAdapter(feed), resolve), nil
}
