package extract

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、URL から解析済みの HTML ドキュメントを取得する機能のインターフェースを定義します。
// Extractor は、この抽象に依存します。httpclient.Client がこれを満たします。
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) (*goquery.Document, error)
}

// FieldExtractor はページから 1 つの文字列フィールドを取り出す方法を表します。
// 値が見つからない場合は空文字列を返します。
type FieldExtractor interface {
	Extract(root *goquery.Selection) string
}
