package checkpoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shouni/go-news-harvest/pkg/types"
)

type write struct {
	section types.Section
	count   int
}

// recordingWriter は書き出し要求を記録するテスト用の Writer です。
type recordingWriter struct {
	writes []write
	err    error
}

func (w *recordingWriter) WriteCheckpoint(section types.Section, articles []types.Article) error {
	w.writes = append(w.writes, write{section: section, count: len(articles)})
	return w.err
}

func corpusOf(n int) SnapshotFunc {
	return func() []types.Article {
		return make([]types.Article, n)
	}
}

func TestObserve_Monotonic(t *testing.T) {
	w := &recordingWriter{}
	m := New(w, WithInterval(100))

	var firedAt []int
	for total := 1; total <= 350; total++ {
		if m.Observe(total, corpusOf(total)) {
			firedAt = append(firedAt, total)
		}
	}

	assert.Equal(t, []int{100, 200, 300}, firedAt)
	require.Len(t, w.writes, 3)
	prev := 0
	for _, wr := range w.writes {
		assert.Equal(t, types.Section(""), wr.section)
		assert.Greater(t, wr.count, prev, "スナップショットの件数は単調増加")
		prev = wr.count
	}
	assert.Equal(t, 300, m.Watermark())
}

func TestObserve_SkippedCounts(t *testing.T) {
	// 完了イベントが飛び飛びで届いても、1 間隔以上進んだ時点で 1 回だけ書き出す
	w := &recordingWriter{}
	m := New(w, WithInterval(100))

	assert.False(t, m.Observe(95, corpusOf(95)))
	assert.True(t, m.Observe(130, corpusOf(130)))
	assert.False(t, m.Observe(229, corpusOf(229)))
	assert.True(t, m.Observe(230, corpusOf(230)))
	assert.Equal(t, 230, m.Watermark())
	assert.Len(t, w.writes, 2)
}

func TestObserve_Disabled(t *testing.T) {
	tests := []struct {
		name string
		m    *Manager
	}{
		{name: "間隔が0", m: New(&recordingWriter{}, WithInterval(0))},
		{name: "間隔が負", m: New(&recordingWriter{}, WithInterval(-5))},
		{name: "Writerがnil", m: New(nil, WithInterval(10))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			snap := func() []types.Article { called = true; return nil }
			assert.False(t, tt.m.Observe(1000, snap))
			assert.False(t, tt.m.Final(1000, snap))
			assert.False(t, called, "無効時はスナップショットを取らない")
		})
	}
}

func TestSectionDone(t *testing.T) {
	w := &recordingWriter{}
	m := New(w, WithInterval(100))

	assert.True(t, m.SectionDone(types.SectionNews, corpusOf(7)))
	assert.Equal(t, []write{{section: types.SectionNews, count: 7}}, w.writes)
	assert.Equal(t, 0, m.Watermark(), "セクション終了の書き出しは水位に影響しない")

	off := New(w, WithSectionCheckpoints(false))
	assert.False(t, off.SectionDone(types.SectionNews, corpusOf(7)))
}

func TestFinal(t *testing.T) {
	w := &recordingWriter{}
	m := New(w, WithInterval(100))

	assert.False(t, m.Final(99, corpusOf(99)))
	assert.True(t, m.Final(150, corpusOf(150)))
	assert.Equal(t, 150, m.Watermark())
}

func TestWriteErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := &recordingWriter{err: errors.New("disk full")}
	m := New(w, WithInterval(10), WithLogger(zap.New(core)))

	assert.True(t, m.Observe(10, corpusOf(10)))
	assert.Equal(t, 10, m.Watermark(), "失敗しても水位は進む")
	assert.True(t, m.Observe(20, corpusOf(20)))
	assert.Equal(t, 2, m.Writes())
	assert.Equal(t, 2, logs.FilterMessage("チェックポイントの書き出しに失敗しました").Len())
}
