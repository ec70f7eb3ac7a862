// Package ledger は恒久的に失敗した URL と実行履歴を SQLite に記録します。
// 次回以降の実行で retry-failed コマンドが失敗 URL を再取得するために使います。
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/shouni/go-news-harvest/pkg/types"
)

// MemoryPath はインメモリのデータベースを開くためのパスです。
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS failed_urls (
	url             TEXT PRIMARY KEY,
	section         TEXT NOT NULL,
	reason          TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 1,
	last_attempt_at INTEGER NOT NULL,
	run_id          TEXT NOT NULL DEFAULT '',
	resolved        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_failed_urls_resolved ON failed_urls (resolved, section);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	articles    INTEGER NOT NULL DEFAULT 0
);
`

// Failure は未解決の失敗 URL です。
type Failure struct {
	URL           string
	Section       types.Section
	Reason        string
	Attempts      int
	LastAttemptAt time.Time
	RunID         string
}

// Run は 1 回の実行の記録です。
type Run struct {
	ID         string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time // 未完了なら 0 値
	Articles   int
}

type failureRow struct {
	URL           string `db:"url"`
	Section       string `db:"section"`
	Reason        string `db:"reason"`
	Attempts      int    `db:"attempts"`
	LastAttemptAt int64  `db:"last_attempt_at"`
	RunID         string `db:"run_id"`
}

type runRow struct {
	ID         string        `db:"id"`
	Command    string        `db:"command"`
	StartedAt  int64         `db:"started_at"`
	FinishedAt sql.NullInt64 `db:"finished_at"`
	Articles   int           `db:"articles"`
}

// Ledger は SQLite 上の失敗台帳です。
type Ledger struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open は path のデータベースを開き、スキーマがなければ作成します。
func Open(path string) (*Ledger, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("台帳ディレクトリの作成に失敗しました: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("台帳データベースを開けませんでした: %w", err)
	}
	// SQLite は書き込みが直列化されるうえ、:memory: は接続ごとに別のデータベースになる
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("台帳スキーマの初期化に失敗しました: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close はデータベースを閉じます。
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordFailure は URL の失敗を記録します。既に記録があれば試行回数を加算し、未解決に戻します。
func (l *Ledger) RecordFailure(ctx context.Context, runID, url string, section types.Section, reason string) error {
	const q = `
		INSERT INTO failed_urls (url, section, reason, attempts, last_attempt_at, run_id, resolved)
		VALUES (?, ?, ?, 1, ?, ?, 0)
		ON CONFLICT (url) DO UPDATE SET
			section = excluded.section,
			reason = excluded.reason,
			attempts = failed_urls.attempts + 1,
			last_attempt_at = excluded.last_attempt_at,
			run_id = excluded.run_id,
			resolved = 0`

	if _, err := l.db.ExecContext(ctx, q, url, section.String(), reason, l.now().UnixMilli(), runID); err != nil {
		return fmt.Errorf("失敗URLの記録に失敗しました (URL: %s): %w", url, err)
	}
	return nil
}

// MarkResolved は URL を解決済みにします。記録がなければ何もしません。
func (l *Ledger) MarkResolved(ctx context.Context, url string) error {
	if _, err := l.db.ExecContext(ctx, `UPDATE failed_urls SET resolved = 1 WHERE url = ? AND resolved = 0`, url); err != nil {
		return fmt.Errorf("失敗URLの解決に失敗しました (URL: %s): %w", url, err)
	}
	return nil
}

// Failed は未解決の失敗 URL をセクション、URL の順に返します。
func (l *Ledger) Failed(ctx context.Context) ([]Failure, error) {
	const q = `
		SELECT url, section, reason, attempts, last_attempt_at, run_id
		FROM failed_urls
		WHERE resolved = 0
		ORDER BY section, url`

	var rows []failureRow
	if err := l.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("失敗URLの取得に失敗しました: %w", err)
	}

	out := make([]Failure, 0, len(rows))
	for _, r := range rows {
		out = append(out, Failure{
			URL:           r.URL,
			Section:       types.Section(r.Section),
			Reason:        r.Reason,
			Attempts:      r.Attempts,
			LastAttemptAt: time.UnixMilli(r.LastAttemptAt),
			RunID:         r.RunID,
		})
	}
	return out, nil
}

// StartRun は実行の開始を記録し、新しい実行 ID を返します。
func (l *Ledger) StartRun(ctx context.Context, command string) (string, error) {
	id := uuid.NewString()
	if _, err := l.db.ExecContext(ctx, `INSERT INTO runs (id, command, started_at) VALUES (?, ?, ?)`,
		id, command, l.now().UnixMilli()); err != nil {
		return "", fmt.Errorf("実行の開始を記録できませんでした: %w", err)
	}
	return id, nil
}

// FinishRun は実行の終了と収集した記事数を記録します。
func (l *Ledger) FinishRun(ctx context.Context, id string, articles int) error {
	res, err := l.db.ExecContext(ctx, `UPDATE runs SET finished_at = ?, articles = ? WHERE id = ?`,
		l.now().UnixMilli(), articles, id)
	if err != nil {
		return fmt.Errorf("実行の終了を記録できませんでした: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("実行が見つかりません: %s", id)
	}
	return nil
}

// Run は ID で実行記録を取得します。
func (l *Ledger) Run(ctx context.Context, id string) (*Run, error) {
	var r runRow
	err := l.db.GetContext(ctx, &r, `SELECT id, command, started_at, finished_at, articles FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("実行が見つかりません: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("実行記録の取得に失敗しました: %w", err)
	}

	run := &Run{
		ID:        r.ID,
		Command:   r.Command,
		StartedAt: time.UnixMilli(r.StartedAt),
		Articles:  r.Articles,
	}
	if r.FinishedAt.Valid {
		run.FinishedAt = time.UnixMilli(r.FinishedAt.Int64)
	}
	return run, nil
}
