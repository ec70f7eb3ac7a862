package types

import "time"

// Money は本文から抽出された金額の言及です。
type Money struct {
	Amount     string `json:"amount"`     // 小数点は "." に正規化済み
	Multiplier string `json:"multiplier"` // тыс / млн / млрд
	Currency   string `json:"currency"`   // ₽ / $ / € またはその他
	Original   string `json:"original"`   // マッチした元の部分文字列
}

// Article は 1 件の記事ページから生成される出力単位です。生成後に変更されません。
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	Author      string    `json:"author"`
	Date        string    `json:"date"`
	Tags        []string  `json:"tags"`
	Categories  []string  `json:"categories"`
	Text        string    `json:"text"`
	Description string    `json:"description"`
	Companies   []string  `json:"companies"`
	People      []string  `json:"people"`
	Money       []Money   `json:"money"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// URLState は発見された URL の処理状態です。
type URLState int

const (
	StateDiscovered URLState = iota
	StateFetching
	StateParsed
	StateFailedPermanently
)

func (s URLState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateFetching:
		return "fetching"
	case StateParsed:
		return "parsed"
	case StateFailedPermanently:
		return "failed_permanently"
	default:
		return "unknown"
	}
}

// URLRecord は発見された記事 URL とその状態を保持します。
// 正規化済み URL が同一性のキーです。
type URLRecord struct {
	URL     string
	Section Section
	State   URLState
}

// TaskResult は 1 件の取得・解析タスクの結果です。
// ワーカーが生成し、コーディネーターだけが消費します。
type TaskResult struct {
	URL     string   // 処理対象のURL
	Article *Article // 成功時のみ非nil
	Error   error    // 処理中に発生したエラー
}
