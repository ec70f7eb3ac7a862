package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/pkg/scraper"
	"github.com/shouni/go-news-harvest/pkg/storage"
	"github.com/shouni/go-news-harvest/pkg/types"
)

// Result はコマンド 1 回分の処理結果です。
type Result struct {
	RunID    string
	Articles []types.Article
	Sections []scraper.SectionReport
	Failed   []types.URLRecord
	Files    []string
}

// startRun は台帳に実行を記録して ID を返します。台帳がなければ ID だけを発行します。
func (d *Deps) startRun(ctx context.Context, command string) string {
	if d.Ledger == nil {
		return uuid.NewString()
	}
	id, err := d.Ledger.StartRun(ctx, command)
	if err != nil {
		d.Log.Warn("実行の開始を記録できませんでした", zap.Error(err))
		return uuid.NewString()
	}
	return id
}

func (d *Deps) finishRun(ctx context.Context, runID string, articles int) {
	if d.Ledger == nil {
		return
	}
	if err := d.Ledger.FinishRun(context.WithoutCancel(ctx), runID, articles); err != nil {
		d.Log.Warn("実行の終了を記録できませんでした", zap.String("run_id", runID), zap.Error(err))
	}
}

// Crawl はセクションを巡回し、最終コーパスを rb_articles.{json,csv} に保存します。
// 中断された場合もそれまでに集めた記事を保存します。
func Crawl(ctx context.Context, d *Deps, sections []types.Section) (*Result, error) {
	runID := d.startRun(ctx, "crawl")
	log := d.Log.With(zap.String("run_id", runID))
	log.Info("巡回を開始します", zap.Int("sections", len(Plans(d.Config, sections))), zap.Int("workers", d.Config.Workers))

	coord, err := d.Coordinator(runID, true)
	if err != nil {
		return nil, err
	}
	rep, err := coord.Run(ctx, Plans(d.Config, sections))
	if err != nil {
		return nil, fmt.Errorf("巡回の実行エラー: %w", err)
	}

	res := &Result{RunID: runID, Articles: rep.Articles, Sections: rep.Sections, Failed: rep.Failed}
	d.finishRun(ctx, runID, len(rep.Articles))

	files, err := d.Store.SaveFinal(rep.Articles)
	res.Files = files
	if err != nil {
		return res, fmt.Errorf("最終コーパスの保存に失敗しました: %w", err)
	}
	log.Info("巡回が完了しました", zap.Int("articles", len(rep.Articles)), zap.Strings("files", files))
	return res, nil
}

// RetryFailed は台帳の未解決 URL を再取得し、成功した記事を corpusPath のコーパスに統合します。
func RetryFailed(ctx context.Context, d *Deps, corpusPath string) (*Result, error) {
	if d.Ledger == nil {
		return nil, fmt.Errorf("失敗台帳が無効です (ledger_path が空です)")
	}
	failures, err := d.Ledger.Failed(ctx)
	if err != nil {
		return nil, err
	}

	runID := d.startRun(ctx, "retry-failed")
	res := &Result{RunID: runID}
	if len(failures) == 0 {
		d.Log.Info("再取得する URL はありません")
		d.finishRun(ctx, runID, 0)
		return res, nil
	}

	coord, err := d.Coordinator(runID, false)
	if err != nil {
		return nil, err
	}

	// Failed はセクション順に並んでいる
	var (
		section types.Section
		batch   []string
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		rep := coord.RunURLs(ctx, section, batch)
		res.Articles = append(res.Articles, rep.Articles...)
		res.Sections = append(res.Sections, rep.Sections...)
		res.Failed = append(res.Failed, rep.Failed...)
		batch = nil
	}
	for _, f := range failures {
		if f.Section != section {
			flush()
			section = f.Section
		}
		batch = append(batch, f.URL)
	}
	flush()
	d.finishRun(ctx, runID, len(res.Articles))

	if len(res.Articles) == 0 {
		return res, nil
	}

	existing, err := storage.LoadJSON(corpusPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return res, err
	}
	merged := MergeArticles(existing, res.Articles)

	if err := storage.WriteJSON(corpusPath, merged); err != nil {
		return res, fmt.Errorf("コーパスの保存に失敗しました: %w", err)
	}
	csvPath := strings.TrimSuffix(corpusPath, ".json") + ".csv"
	if err := storage.WriteCSV(csvPath, merged, d.Config.TextLimit); err != nil {
		return res, fmt.Errorf("コーパスの保存に失敗しました: %w", err)
	}
	res.Files = []string{corpusPath, csvPath}
	d.Log.Info("再取得した記事をコーパスに統合しました",
		zap.Int("recovered", len(res.Articles)), zap.Int("corpus", len(merged)), zap.String("path", corpusPath))
	return res, nil
}

// MergeArticles は base に extra を統合します。同じ URL の記事は extra の内容で置き換え、順序は base を保ちます。
func MergeArticles(base, extra []types.Article) []types.Article {
	out := make([]types.Article, 0, len(base)+len(extra))
	index := make(map[string]int, len(base)+len(extra))
	for _, a := range base {
		if i, ok := index[a.URL]; ok {
			out[i] = a
			continue
		}
		index[a.URL] = len(out)
		out = append(out, a)
	}
	for _, a := range extra {
		if i, ok := index[a.URL]; ok {
			out[i] = a
			continue
		}
		index[a.URL] = len(out)
		out = append(out, a)
	}
	return out
}
