package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/shouni/go-news-harvest/pkg/types"
)

// ErrFetch は記事ページの取得に失敗したことを示します。
var ErrFetch = errors.New("記事ページの取得に失敗しました")

// Extractor は、Fetcher と Parser を使って 1 件の記事の取得と解析を管理します。
type Extractor struct {
	fetcher Fetcher
	parser  *Parser
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(fetcher Fetcher, opts ...ParserOption) (*Extractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("extract.NewExtractor: Fetcher cannot be nil")
	}
	return &Extractor{
		fetcher: fetcher,
		parser:  NewParser(opts...),
	}, nil
}

// Parser は内部で使用している Parser を返します。
func (e *Extractor) Parser() *Parser {
	return e.parser
}

// FetchAndParse は指定されたURLのページを取得し、Article に変換します。
// 取得失敗は ErrFetch、解析失敗は ErrParse を包んで返します。
func (e *Extractor) FetchAndParse(ctx context.Context, url string) (*types.Article, error) {
	// 1. Fetcherからドキュメントを取得 (通信の責務)
	doc, err := e.fetcher.FetchDocument(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	// 2. Parserで記事に変換 (解析の責務)
	return e.parser.Parse(url, doc)
}
