// Package storage は記事コーパスを JSON と CSV で保存・読み込みします。
package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/go-news-harvest/pkg/types"
)

const (
	// FinalBaseName は実行終了時のコーパスのファイル名（拡張子なし）です。
	FinalBaseName = "rb_articles"
	// MilestoneBaseName はマイルストーンのファイル名（拡張子なし）です。
	MilestoneBaseName = "rb_articles_milestone"
	// DefaultTextLimit は CSV に書き出す本文の最大文字数です。
	DefaultTextLimit = 1000

	listSeparator = "; "
)

// utf8BOM は Excel で文字化けさせないために CSV の先頭に付けます。
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"url", "title", "content_type", "author", "date", "tags", "categories",
	"text", "description", "companies", "people", "money", "scraped_at",
}

// EncodeJSON は記事をインデント付きの JSON 配列として書き込みます。HTML はエスケープしません。
func EncodeJSON(w io.Writer, articles []types.Article) error {
	if articles == nil {
		articles = []types.Article{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(articles); err != nil {
		return fmt.Errorf("JSONのエンコードに失敗しました: %w", err)
	}
	return nil
}

// EncodeCSV は記事を BOM 付き UTF-8 の CSV として書き込みます。
// リストは "; " で連結し、本文は textLimit 文字（0 以下で無制限）で切り詰めます。
func EncodeCSV(w io.Writer, articles []types.Article, textLimit int) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("BOMの書き込みに失敗しました: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗しました: %w", err)
	}
	for _, a := range articles {
		if err := cw.Write(csvRow(a, textLimit)); err != nil {
			return fmt.Errorf("CSV行の書き込みに失敗しました (URL: %s): %w", a.URL, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("CSVのフラッシュに失敗しました: %w", err)
	}
	return nil
}

func csvRow(a types.Article, textLimit int) []string {
	money := make([]string, 0, len(a.Money))
	for _, m := range a.Money {
		money = append(money, FormatMoney(m))
	}
	scrapedAt := ""
	if !a.ScrapedAt.IsZero() {
		scrapedAt = a.ScrapedAt.Format(time.RFC3339)
	}
	return []string{
		a.URL,
		a.Title,
		a.ContentType,
		a.Author,
		a.Date,
		strings.Join(a.Tags, listSeparator),
		strings.Join(a.Categories, listSeparator),
		Truncate(a.Text, textLimit),
		a.Description,
		strings.Join(a.Companies, listSeparator),
		strings.Join(a.People, listSeparator),
		strings.Join(money, listSeparator),
		scrapedAt,
	}
}

// FormatMoney は金額を "<amount> <multiplier> <currency>" 形式にします。
func FormatMoney(m types.Money) string {
	return m.Amount + " " + m.Multiplier + " " + m.Currency
}

// Truncate は s を先頭から limit 文字（ルーン単位）に切り詰めます。limit が 0 以下なら何もしません。
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// WriteJSON は記事を path に JSON で書き出します。
func WriteJSON(path string, articles []types.Article) error {
	return writeAtomic(path, func(w io.Writer) error {
		return EncodeJSON(w, articles)
	})
}

// WriteCSV は記事を path に CSV で書き出します。
func WriteCSV(path string, articles []types.Article, textLimit int) error {
	return writeAtomic(path, func(w io.Writer) error {
		return EncodeCSV(w, articles, textLimit)
	})
}

// LoadJSON は WriteJSON で書き出したファイルを読み込みます。
func LoadJSON(path string) ([]types.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("コーパスファイルを開けませんでした: %w", err)
	}
	defer f.Close()

	var articles []types.Article
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&articles); err != nil {
		return nil, fmt.Errorf("コーパスファイルのデコードに失敗しました (%s): %w", path, err)
	}
	return articles, nil
}

// writeAtomic は一時ファイルに書き込んでから rename し、途中状態のファイルを残さないようにします。
func writeAtomic(path string, fn func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fn(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("書き込みに失敗しました (%s): %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("ファイルの置き換えに失敗しました (%s): %w", path, err)
	}
	return nil
}
