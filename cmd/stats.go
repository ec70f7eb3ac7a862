package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/internal/pipeline"
	"github.com/shouni/go-news-harvest/pkg/storage"
)

var (
	statsInput string
	statsTopN  int
)

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "保存済みコーパスの統計を表示します",
	Long:  `コーパス JSON を読み込み、企業・金額・人名を含む記事の割合、コンテンツ種別の内訳、言及の多い企業を表示します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		path := corpusPath(statsInput, appConfig.OutputDir)
		articles, err := storage.LoadJSON(path)
		if err != nil {
			return fmt.Errorf("コーパスの読み込みエラー: %w", err)
		}
		appLog.Debug("コーパスを読み込みました", zap.String("path", path), zap.Int("articles", len(articles)))

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "コーパス: %s\n", path)
		renderStats(out, pipeline.ComputeStats(articles, statsTopN))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsInput, "input", "i", "", "コーパス JSON。省略時は <output-dir>/rb_articles.json")
	statsCmd.Flags().IntVarP(&statsTopN, "top", "n", pipeline.DefaultTopN, "表示する企業の件数")
}
