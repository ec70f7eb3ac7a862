package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/go-news-harvest/internal/pipeline"
	"github.com/shouni/go-news-harvest/pkg/types"
)

// crawl コマンドのフラグ
var (
	crawlSections []string // --sections 対象セクション。空なら全セクション
	crawlMaxPages int      // --max-pages 全セクション共通の最大ページ数
	crawlInterval int      // --milestone-interval チェックポイント間隔
)

// parseSections はセクション名の一覧を検証して変換します。カンマ区切りと重複を許容します。
func parseSections(names []string) ([]types.Section, error) {
	var (
		out  []types.Section
		seen = make(map[types.Section]struct{})
	)
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			s, err := types.ParseSection(name)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out, nil
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "セクションの一覧を巡回し、全記事を取得してコーパスを保存します",
	Long: `各セクションの一覧ページを順に辿って記事 URL を集め、記事を並列に取得・解析します。
途中経過は一定件数ごとにチェックポイントとして保存し、最後に rb_articles.json と rb_articles.csv を書き出します。
Ctrl+C で中断した場合も、それまでに取得した記事を保存します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		sections, err := parseSections(crawlSections)
		if err != nil {
			return err
		}
		// --max-pages を明示した場合はセクション別の設定より優先する
		if cmd.Flags().Changed("max-pages") {
			appConfig.Pages = nil
		}

		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := pipeline.Crawl(ctx, d, sections)
		if res != nil {
			out := cmd.OutOrStdout()
			renderSectionReports(out, res.Sections)
			fmt.Fprintf(out, "合計記事数: %d, 失敗: %d\n", len(res.Articles), len(res.Failed))
			for _, f := range res.Files {
				fmt.Fprintf(out, "保存先: %s\n", f)
			}
		}
		if err != nil {
			return fmt.Errorf("巡回パイプラインの実行エラー: %w", err)
		}
		if ctx.Err() != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "中断されました。取得済みの記事のみ保存しています。")
		}
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringSliceVarP(&crawlSections, "sections", "s", nil,
		"対象セクション (news,stories,opinions,neuroprofiles,reviews,checklists)。省略時は全セクション")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "セクションごとの最大ページ数")
	crawlCmd.Flags().IntVar(&crawlInterval, "milestone-interval", 0, "チェックポイントを保存する記事数の間隔。0 で無効")
}
