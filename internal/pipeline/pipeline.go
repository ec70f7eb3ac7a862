// Package pipeline は設定から各コンポーネントを組み立て、コマンドの処理手順を提供します。
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/internal/config"
	"github.com/shouni/go-news-harvest/internal/ledger"
	"github.com/shouni/go-news-harvest/pkg/checkpoint"
	"github.com/shouni/go-news-harvest/pkg/entities"
	"github.com/shouni/go-news-harvest/pkg/extract"
	"github.com/shouni/go-news-harvest/pkg/feed"
	"github.com/shouni/go-news-harvest/pkg/httpclient"
	"github.com/shouni/go-news-harvest/pkg/listing"
	"github.com/shouni/go-news-harvest/pkg/scraper"
	"github.com/shouni/go-news-harvest/pkg/storage"
	"github.com/shouni/go-news-harvest/pkg/types"
)

// Deps は設定から組み立てた依存関係一式です。
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	Extractor *extract.Extractor
	Lister    *listing.Crawler
	Store     *storage.FileStore
	Ledger    *ledger.Ledger // ledger_path が空なら nil
}

// Build は cfg から依存関係を組み立てます。使用後は Close を呼んでください。
func Build(cfg *config.Config, log *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline.Build: 設定が nil です")
	}
	if log == nil {
		log = zap.NewNop()
	}
	site := cfg.Site()

	client := httpclient.New(
		cfg.TimeoutDuration(),
		httpclient.WithMaxAttempts(uint64(cfg.MaxRetries)),
		httpclient.WithDelay(cfg.DelayDuration()),
		httpclient.WithUserAgents(cfg.UserAgents...),
		httpclient.WithLogger(log.Named("http")),
	)

	extractor, err := extract.NewExtractor(client,
		extract.WithSite(site),
		extract.WithEntityExtractor(entities.New()),
	)
	if err != nil {
		return nil, fmt.Errorf("Extractorの初期化エラー: %w", err)
	}

	listOpts := []listing.Option{listing.WithLogger(log.Named("listing"))}
	if feeds := cfg.SectionFeeds(); len(feeds) > 0 {
		listOpts = append(listOpts, listing.WithFeeds(feed.NewParser(client), feeds))
	}
	lister, err := listing.New(client, site, listOpts...)
	if err != nil {
		return nil, fmt.Errorf("一覧取得器の初期化エラー: %w", err)
	}

	d := &Deps{
		Config:    cfg,
		Log:       log,
		Extractor: extractor,
		Lister:    lister,
		Store: storage.NewFileStore(cfg.OutputDir,
			storage.WithTextLimit(cfg.TextLimit),
			storage.WithLogger(log.Named("storage")),
		),
	}

	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("失敗台帳の初期化エラー: %w", err)
		}
		d.Ledger = l
	}
	return d, nil
}

// Close は保持しているリソースを解放します。
func (d *Deps) Close() error {
	if d.Ledger != nil {
		return d.Ledger.Close()
	}
	return nil
}

// Checkpoints は設定に従ったチェックポイント管理を返します。
func (d *Deps) Checkpoints() *checkpoint.Manager {
	return checkpoint.New(d.Store,
		checkpoint.WithInterval(d.Config.MilestoneInterval),
		checkpoint.WithSectionCheckpoints(d.Config.SectionCheckpoints),
		checkpoint.WithLogger(d.Log.Named("checkpoint")),
	)
}

// Coordinator は実行 ID を付けたコーディネーターを返します。withCheckpoints が false なら途中保存をしません。
func (d *Deps) Coordinator(runID string, withCheckpoints bool) (*scraper.Coordinator, error) {
	opts := []scraper.Option{
		scraper.WithWorkers(d.Config.Workers),
		scraper.WithLogger(d.Log.Named("scraper").With(zap.String("run_id", runID))),
	}
	if withCheckpoints {
		opts = append(opts, scraper.WithCheckpoints(d.Checkpoints()))
	}
	if d.Ledger != nil {
		opts = append(opts, scraper.WithFailureLedger(d.Ledger, runID))
	}
	return scraper.NewCoordinator(d.Lister, d.Extractor, opts...)
}

// Plans はセクションごとの巡回設定を作ります。sections が空なら全セクションです。
func Plans(cfg *config.Config, sections []types.Section) []scraper.SectionPlan {
	if len(sections) == 0 {
		sections = types.AllSections()
	}
	plans := make([]scraper.SectionPlan, 0, len(sections))
	for _, s := range sections {
		plans = append(plans, scraper.SectionPlan{Section: s, MaxPages: cfg.PagesFor(s)})
	}
	return plans
}
