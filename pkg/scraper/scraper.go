// Package scraper はセクションごとの一覧取得と、記事の並列取得・解析を調整します。
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/shouni/go-news-harvest/pkg/checkpoint"
	"github.com/shouni/go-news-harvest/pkg/extract"
	"github.com/shouni/go-news-harvest/pkg/types"
)

const (
	// DefaultWorkers は記事取得の既定の同時実行数です。
	DefaultWorkers = 20
	// progressEvery 件ごとに進捗をログに出します。
	progressEvery = 10
)

// ErrTaskPanic はワーカー内で発生したパニックを示します。
var ErrTaskPanic = errors.New("タスク実行中にパニックが発生しました")

// Phase はセクション処理の段階です。
type Phase string

const (
	PhaseListing  Phase = "listing"
	PhaseDispatch Phase = "dispatch"
	PhaseDraining Phase = "draining"
	PhaseDone     Phase = "done"
)

// URLLister はセクションの記事 URL を列挙します。listing.Crawler がこれを満たします。
type URLLister interface {
	ListURLs(ctx context.Context, section types.Section, maxPages int) []string
}

// ArticleFetcher は 1 件の記事を取得・解析します。extract.Extractor がこれを満たします。
type ArticleFetcher interface {
	FetchAndParse(ctx context.Context, url string) (*types.Article, error)
}

// Checkpointer はコーパスのスナップショットを管理します。checkpoint.Manager がこれを満たします。
type Checkpointer interface {
	Observe(total int, snapshot checkpoint.SnapshotFunc) bool
	SectionDone(section types.Section, snapshot checkpoint.SnapshotFunc) bool
	Final(total int, snapshot checkpoint.SnapshotFunc) bool
}

// FailureLedger は恒久的に失敗した URL を記録します。
type FailureLedger interface {
	RecordFailure(ctx context.Context, runID, url string, section types.Section, reason string) error
	MarkResolved(ctx context.Context, url string) error
}

// SectionPlan は 1 セクション分の巡回設定です。
type SectionPlan struct {
	Section  types.Section
	MaxPages int
}

// SectionReport は 1 セクション分の処理結果です。
type SectionReport struct {
	Section    types.Section
	Discovered int // 一覧から得た URL 数
	Skipped    int // この実行で既に処理済みだった URL 数
	Parsed     int
	Dropped    int // 解析失敗で破棄した数
	Failed     int // 取得に恒久的に失敗した数
	Canceled   int // 中断により処理しなかった数
	Duration   time.Duration
}

// Report は実行全体の結果です。
type Report struct {
	Articles []types.Article
	Sections []SectionReport
	Failed   []types.URLRecord
}

// Coordinator はセクションを順番に処理し、各セクション内では記事を並列に取得します。
// コーパス、カウンター、URL の状態は単一の消費ループだけが更新します。
type Coordinator struct {
	lister      URLLister
	fetcher     ArticleFetcher
	checkpoints Checkpointer
	ledger      FailureLedger
	workers     int
	runID       string
	log         *zap.Logger
}

// Option は Coordinator の設定を行うための関数型です。
type Option func(*Coordinator)

// WithWorkers は同時実行数を設定します。0 以下は既定値です。
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithCheckpoints はチェックポイント管理を設定します。
func WithCheckpoints(cp Checkpointer) Option {
	return func(c *Coordinator) {
		c.checkpoints = cp
	}
}

// WithFailureLedger は失敗 URL の記録先と、記録に付与する実行 ID を設定します。
func WithFailureLedger(l FailureLedger, runID string) Option {
	return func(c *Coordinator) {
		c.ledger = l
		c.runID = runID
	}
}

// WithLogger はロガーを設定します。
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCoordinator は Coordinator を生成します。lister は RunURLs だけを使う場合 nil でも構いません。
func NewCoordinator(lister URLLister, fetcher ArticleFetcher, opts ...Option) (*Coordinator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("scraper.NewCoordinator: fetcher が nil です")
	}
	c := &Coordinator{
		lister:  lister,
		fetcher: fetcher,
		workers: DefaultWorkers,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// run は 1 回の実行の状態です。消費ループ以外から触ってはいけません。
type run struct {
	corpus  []types.Article
	records map[string]*types.URLRecord
	report  Report
}

func newRun() *run {
	return &run{records: make(map[string]*types.URLRecord)}
}

// Run は plans のセクションを順番に処理し、コーパス全体を返します。
// ctx がキャンセルされると新しいタスクの投入を止め、実行中のタスクの完了を待って戻ります。
func (c *Coordinator) Run(ctx context.Context, plans []SectionPlan) (*Report, error) {
	if c.lister == nil {
		return nil, fmt.Errorf("一覧取得器が設定されていません")
	}
	r := newRun()
	for _, plan := range plans {
		if ctx.Err() != nil {
			c.log.Warn("中断されたため残りのセクションを処理しません", zap.String("section", plan.Section.String()))
			break
		}
		c.section(ctx, r, plan.Section, func() []string {
			return c.lister.ListURLs(ctx, plan.Section, plan.MaxPages)
		})
	}
	return c.finish(r), nil
}

// RunURLs は一覧取得を行わず、与えられた URL 群を 1 セクション分として処理します。
func (c *Coordinator) RunURLs(ctx context.Context, section types.Section, urls []string) *Report {
	r := newRun()
	c.section(ctx, r, section, func() []string { return urls })
	return c.finish(r)
}

func (c *Coordinator) finish(r *run) *Report {
	if c.checkpoints != nil {
		c.checkpoints.Final(len(r.corpus), r.snapshot(nil))
	}
	for _, rec := range r.records {
		if rec.State == types.StateFailedPermanently {
			r.report.Failed = append(r.report.Failed, *rec)
		}
	}
	r.report.Articles = r.corpus
	c.log.Info("すべてのセクションの処理が完了しました",
		zap.Int("articles", len(r.corpus)), zap.Int("failed", len(r.report.Failed)))
	return &r.report
}

// snapshot は前セクションまでのコーパスと現セクションの途中結果を連結したコピーを返す関数を作ります。
func (r *run) snapshot(current *[]types.Article) checkpoint.SnapshotFunc {
	return func() []types.Article {
		n := len(r.corpus)
		if current != nil {
			n += len(*current)
		}
		out := make([]types.Article, 0, n)
		out = append(out, r.corpus...)
		if current != nil {
			out = append(out, (*current)...)
		}
		return out
	}
}

// section は 1 セクションを Listing → Dispatch → Draining → Done の順に処理します。
func (c *Coordinator) section(ctx context.Context, r *run, section types.Section, list func() []string) {
	started := time.Now()
	log := c.log.With(zap.String("section", section.String()))
	rep := SectionReport{Section: section}

	log.Debug("フェーズ遷移", zap.String("phase", string(PhaseListing)))
	urls := list()
	rep.Discovered = len(urls)

	log.Debug("フェーズ遷移", zap.String("phase", string(PhaseDispatch)))
	pending := make([]*types.URLRecord, 0, len(urls))
	for _, u := range urls {
		if _, seen := r.records[u]; seen {
			rep.Skipped++
			continue
		}
		rec := &types.URLRecord{URL: u, Section: section, State: types.StateDiscovered}
		r.records[u] = rec
		pending = append(pending, rec)
	}
	log.Info("セクションの記事取得を開始します",
		zap.Int("urls", len(pending)), zap.Int("skipped", rep.Skipped), zap.Int("workers", c.workers))

	articles := make([]types.Article, 0, len(pending))
	c.drain(ctx, r, log, pending, &articles, &rep)

	log.Debug("フェーズ遷移", zap.String("phase", string(PhaseDone)))
	r.corpus = append(r.corpus, articles...)
	if c.checkpoints != nil {
		c.checkpoints.SectionDone(section, r.snapshot(nil))
	}

	rep.Duration = time.Since(started)
	r.report.Sections = append(r.report.Sections, rep)
	log.Info("セクションの処理が完了しました",
		zap.Int("parsed", rep.Parsed), zap.Int("dropped", rep.Dropped), zap.Int("failed", rep.Failed),
		zap.Int("canceled", rep.Canceled), zap.Int("total", len(r.corpus)), zap.Duration("elapsed", rep.Duration))
}

// drain はタスクを投入しつつ結果を完了順に受け取る消費ループです。
// 共有状態の更新はすべてこのループ内で行います。
// ctx の中断は新しいタスクの投入だけを止めます。実行中のタスクは最後まで処理されます。
func (c *Coordinator) drain(ctx context.Context, r *run, log *zap.Logger, pending []*types.URLRecord, articles *[]types.Article, rep *SectionReport) {
	log.Debug("フェーズ遷移", zap.String("phase", string(PhaseDraining)))

	sem := semaphore.NewWeighted(int64(c.workers))
	results := make(chan types.TaskResult)
	taskCtx := context.WithoutCancel(ctx)
	inflight, next := 0, 0

	for next < len(pending) || inflight > 0 {
		if next < len(pending) {
			if ctx.Err() != nil {
				rep.Canceled += len(pending) - next
				log.Warn("中断されたため新しいタスクを投入しません", zap.Int("remaining", len(pending)-next))
				next = len(pending)
				continue
			}
			if sem.TryAcquire(1) {
				rec := pending[next]
				next++
				rec.State = types.StateFetching
				inflight++
				go c.work(taskCtx, rec.URL, sem, results)
				continue
			}
		}

		res := <-results
		inflight--
		c.handle(ctx, r, log, res, articles, rep)
	}

	if c.checkpoints != nil {
		c.checkpoints.Observe(len(r.corpus)+len(*articles), r.snapshot(articles))
	}
}

// work は 1 件の記事を取得・解析します。パニックはエラーに変換され、プールを止めません。
func (c *Coordinator) work(ctx context.Context, url string, sem *semaphore.Weighted, results chan<- types.TaskResult) {
	res := types.TaskResult{URL: url}
	func() {
		defer func() {
			if p := recover(); p != nil {
				res.Article = nil
				res.Error = fmt.Errorf("%w: %v", ErrTaskPanic, p)
			}
		}()
		res.Article, res.Error = c.fetcher.FetchAndParse(ctx, url)
	}()
	sem.Release(1)
	results <- res
}

func (c *Coordinator) handle(ctx context.Context, r *run, log *zap.Logger, res types.TaskResult, articles *[]types.Article, rep *SectionReport) {
	rec := r.records[res.URL]

	switch {
	case res.Error == nil && res.Article != nil:
		rec.State = types.StateParsed
		*articles = append(*articles, *res.Article)
		rep.Parsed++
		total := len(r.corpus) + len(*articles)
		if len(*articles)%progressEvery == 0 {
			log.Info("進捗", zap.Int("section_articles", len(*articles)), zap.Int("total", total))
		}
		if c.ledger != nil {
			if err := c.ledger.MarkResolved(context.WithoutCancel(ctx), res.URL); err != nil {
				log.Warn("失敗記録の解決に失敗しました", zap.String("url", res.URL), zap.Error(err))
			}
		}
		if c.checkpoints != nil {
			c.checkpoints.Observe(total, r.snapshot(articles))
		}

	case errors.Is(res.Error, extract.ErrFetch):
		rec.State = types.StateFailedPermanently
		rep.Failed++
		log.Warn("記事の取得に失敗しました", zap.String("url", res.URL), zap.Error(res.Error))
		if c.ledger != nil {
			if err := c.ledger.RecordFailure(context.WithoutCancel(ctx), c.runID, res.URL, rec.Section, res.Error.Error()); err != nil {
				log.Error("失敗URLの記録に失敗しました", zap.String("url", res.URL), zap.Error(err))
			}
		}

	default:
		// 解析失敗やパニックは記事なしとして扱う
		rec.State = types.StateFailedPermanently
		rep.Dropped++
		log.Warn("記事を破棄しました", zap.String("url", res.URL), zap.Error(res.Error))
	}
}
