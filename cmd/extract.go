package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-news-harvest/internal/pipeline"
	"github.com/shouni/go-news-harvest/pkg/types"
)

var (
	rawURL      string // --url 抽出対象のURL
	extractText bool   // --text 本文だけを出力する
)

// readURL は標準入力から 1 行目の URL を読み込みます。
func readURL(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("標準入力の読み取りエラー: %w", err)
		}
		return "", fmt.Errorf("URLが入力されていません")
	}
	u := strings.TrimSpace(scanner.Text())
	if u == "" {
		return "", fmt.Errorf("URLが入力されていません")
	}
	return u, nil
}

// writeArticle は記事を JSON で出力します。text が true なら本文だけを出力します。
func writeArticle(out io.Writer, a *types.Article, text bool) error {
	if text {
		fmt.Fprintln(out, "--- 抽出された本文 ---")
		fmt.Fprintln(out, a.Text)
		fmt.Fprintln(out, "-----------------------")
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

var extractCmd = &cobra.Command{
	Use:   "extract [URL]",
	Short: "1 件の記事 URL を取得・解析し、抽出結果を表示します",
	Long: `指定されたURL（引数、--url、または標準入力）の記事ページを取得し、タイトル、著者、日付、タグ、本文、
企業名・人名・金額の抽出結果を JSON で表示します。`,
	Args: cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 処理対象URLの決定 (引数 > フラグ > 標準入力)
		urlToProcess := rawURL
		if len(args) == 1 {
			urlToProcess = args[0]
		}
		if urlToProcess == "" {
			appLog.Info("URLが指定されていないため、標準入力からURLを読み込みます")
			fmt.Fprint(cmd.ErrOrStderr(), "処理するURLを入力してください: ")
			u, err := readURL(cmd.InOrStdin())
			if err != nil {
				return err
			}
			urlToProcess = u
		}

		// 2. URLのスキーム補完とバリデーション
		processedURL, err := ensureScheme(urlToProcess)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}

		// 3. 依存性の初期化
		appConfig.LedgerPath = "" // 単発の抽出では失敗台帳を使わない
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		// 4. 抽出の実行
		article, err := pipeline.ExtractArticle(cmd.Context(), d, processedURL)
		if err != nil {
			return fmt.Errorf("コンテンツ抽出パイプラインの実行エラー: %w", err)
		}

		// 5. 結果の出力
		return writeArticle(cmd.OutOrStdout(), article, extractText)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&rawURL, "url", "u", "", "抽出対象のURL")
	extractCmd.Flags().BoolVar(&extractText, "text", false, "JSON ではなく本文だけを表示する")
}
