// Package checkpoint は収集中のコーパスを件数の閾値ごとにスナップショットとして書き出します。
package checkpoint

import (
	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/pkg/types"
)

// DefaultInterval はマイルストーン書き出しの既定の間隔（記事数）です。
const DefaultInterval = 100

// Writer はスナップショットの書き出し先です。section が空のときは全体のマイルストーンを表します。
type Writer interface {
	WriteCheckpoint(section types.Section, articles []types.Article) error
}

// SnapshotFunc は書き出し時点のコーパス全体（前セクション分 + 現セクションの途中まで）を返します。
// 書き出しが必要な場合にだけ呼ばれます。
type SnapshotFunc func() []types.Article

// Manager はマイルストーンの水位を管理します。
// 並行呼び出しは想定していません。コーディネーターの単一の消費ループからのみ呼び出してください。
type Manager struct {
	writer     Writer
	interval   int
	perSection bool
	watermark  int
	writes     int
	log        *zap.Logger
}

// Option は Manager の設定を行うための関数型です。
type Option func(*Manager)

// WithInterval はマイルストーンの間隔を設定します。0 以下で件数による書き出しを無効化します。
func WithInterval(n int) Option {
	return func(m *Manager) {
		m.interval = n
	}
}

// WithSectionCheckpoints はセクション終了時の書き出しの有無を設定します。
func WithSectionCheckpoints(enabled bool) Option {
	return func(m *Manager) {
		m.perSection = enabled
	}
}

// WithLogger はロガーを設定します。
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// New は Manager を生成します。writer が nil の場合はすべての書き出しが無効になります。
func New(writer Writer, opts ...Option) *Manager {
	m := &Manager{
		writer:     writer,
		interval:   DefaultInterval,
		perSection: true,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Watermark は最後にマイルストーンを書き出した時点の記事数です。
func (m *Manager) Watermark() int {
	return m.watermark
}

// Writes はこれまでに試みた書き出しの回数です。
func (m *Manager) Writes() int {
	return m.writes
}

// Observe は実行全体の記事数 total を受け取り、前回の書き出しから interval 件以上進んでいれば
// スナップショットを書き出して水位を total に更新します。書き出した場合は true を返します。
func (m *Manager) Observe(total int, snapshot SnapshotFunc) bool {
	if !m.intervalEnabled() || total-m.watermark < m.interval {
		return false
	}
	m.write("", snapshot, zap.Int("total", total), zap.Int("previous_watermark", m.watermark))
	// 書き出しに失敗しても水位は進める（再試行はしない）
	m.watermark = total
	return true
}

// SectionDone はセクション終了時の書き出しを行います。件数の閾値とは無関係です。
func (m *Manager) SectionDone(section types.Section, snapshot SnapshotFunc) bool {
	if m.writer == nil || !m.perSection {
		return false
	}
	m.write(section, snapshot, zap.String("section", section.String()))
	return true
}

// Final は実行終了時、総数が interval 以上であればマイルストーンを書き出します。
func (m *Manager) Final(total int, snapshot SnapshotFunc) bool {
	if !m.intervalEnabled() || total < m.interval {
		return false
	}
	m.write("", snapshot, zap.Int("total", total), zap.Bool("final", true))
	m.watermark = total
	return true
}

func (m *Manager) intervalEnabled() bool {
	return m.writer != nil && m.interval > 0
}

func (m *Manager) write(section types.Section, snapshot SnapshotFunc, fields ...zap.Field) {
	articles := snapshot()
	m.writes++
	fields = append(fields, zap.Int("articles", len(articles)))

	if err := m.writer.WriteCheckpoint(section, articles); err != nil {
		m.log.Error("チェックポイントの書き出しに失敗しました", append(fields, zap.Error(err))...)
		return
	}
	m.log.Info("チェックポイントを書き出しました", fields...)
}
