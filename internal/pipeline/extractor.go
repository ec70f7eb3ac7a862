package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shouni/go-news-harvest/internal/config"
	"github.com/shouni/go-news-harvest/pkg/retry"
	"github.com/shouni/go-news-harvest/pkg/types"
)

// parseSlack は取得後の解析に見込む時間です。
const parseSlack = 5 * time.Second

// extractDeadline は 1 記事の処理全体に許す時間です。
// 全試行のタイムアウト、試行間のバックオフ（上限なしの最悪値）、取得後の待機と解析の余裕を合計します。
func extractDeadline(cfg *config.Config) time.Duration {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.Exponential(retry.DefaultBackoffUnit, 0)

	d := time.Duration(attempts)*cfg.TimeoutDuration() + cfg.DelayDuration() + parseSlack
	for attempt := 0; attempt < attempts-1; attempt++ {
		d += backoff(attempt, nil)
	}
	return d
}

// ExtractArticle は 1 件の URL を取得・解析して記事を返します。
func ExtractArticle(ctx context.Context, d *Deps, rawURL string) (*types.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, extractDeadline(d.Config))
	defer cancel()

	article, err := d.Extractor.FetchAndParse(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("記事の抽出エラー (URL: %s): %w", rawURL, err)
	}
	return article, nil
}
