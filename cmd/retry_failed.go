package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/go-news-harvest/internal/pipeline"
	"github.com/shouni/go-news-harvest/pkg/storage"
)

// 統合先コーパスのパス
var retryInput string

// corpusPath は --input が省略された場合に dir の最終コーパスを返します。
func corpusPath(input, dir string) string {
	if input != "" {
		return input
	}
	return filepath.Join(dir, storage.FinalBaseName+".json")
}

var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "失敗台帳に残っている URL を再取得し、既存のコーパスに統合します",
	Long: `以前の実行で恒久的に失敗した URL を SQLite の失敗台帳から読み出して再取得します。
成功した記事は既存のコーパス（JSON と同名の CSV）に URL 単位で統合され、台帳から解決済みになります。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := pipeline.RetryFailed(ctx, d, corpusPath(retryInput, d.Store.Dir()))
		if res != nil {
			out := cmd.OutOrStdout()
			renderSectionReports(out, res.Sections)
			fmt.Fprintf(out, "回復: %d 件, 未解決: %d 件\n", len(res.Articles), len(res.Failed))
			for _, f := range res.Files {
				fmt.Fprintf(out, "保存先: %s\n", f)
			}
		}
		if err != nil {
			return fmt.Errorf("再取得の実行エラー: %w", err)
		}
		return nil
	},
}

func init() {
	retryFailedCmd.Flags().StringVarP(&retryInput, "input", "i", "", "統合先のコーパス JSON。省略時は <output-dir>/rb_articles.json")
}
