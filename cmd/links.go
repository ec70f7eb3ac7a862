package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-news-harvest/pkg/types"
)

// 一覧ページ数を保持するフラグ変数
var linksPages int

var linksCmd = &cobra.Command{
	Use:   "links <section>",
	Short: "セクションの一覧ページを辿り、記事 URL を一覧表示します",
	Long: `指定したセクションの一覧ページを 1 ページ目から順に取得し、ページごとの発見数と停止理由、
重複を除いた記事 URL を表示します。記事本文は取得しません。`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		section, err := types.ParseSection(args[0])
		if err != nil {
			return err
		}
		pages := linksPages
		if pages <= 0 {
			pages = appConfig.PagesFor(section)
		}

		// 失敗台帳は使わない
		appConfig.LedgerPath = ""
		d, err := buildDeps()
		if err != nil {
			return err
		}
		defer d.Close()

		// 全体タイムアウト: 1 ページあたりリクエストタイムアウトの 2 倍
		ctx, cancel := context.WithTimeout(cmd.Context(), appConfig.TimeoutDuration()*2*timeoutPages(pages))
		defer cancel()

		res := d.Lister.Crawl(ctx, section, pages)

		out := cmd.OutOrStdout()
		renderPages(out, res)
		for i, u := range res.URLs {
			fmt.Fprintf(out, "[%d] %s\n", i+1, u)
		}
		return nil
	},
}

// timeoutPages は全体タイムアウトの倍率です。
func timeoutPages(pages int) time.Duration {
	if pages < 1 {
		return 1
	}
	return time.Duration(pages)
}

func init() {
	linksCmd.Flags().IntVarP(&linksPages, "pages", "p", 0, "辿る一覧ページの最大数。省略時は設定値")
}
