package storage

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/pkg/types"
)

// FileStore は出力ディレクトリに JSON と CSV の組を書き出します。
// checkpoint.Writer を満たします。
type FileStore struct {
	dir       string
	textLimit int
	log       *zap.Logger
}

// FileStoreOption は FileStore の設定を行うための関数型です。
type FileStoreOption func(*FileStore)

// WithTextLimit は CSV の本文の最大文字数を設定します。
func WithTextLimit(n int) FileStoreOption {
	return func(s *FileStore) {
		s.textLimit = n
	}
}

// WithLogger はロガーを設定します。
func WithLogger(log *zap.Logger) FileStoreOption {
	return func(s *FileStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewFileStore は dir に書き出す FileStore を生成します。dir が空ならカレントディレクトリです。
func NewFileStore(dir string, opts ...FileStoreOption) *FileStore {
	if dir == "" {
		dir = "."
	}
	s := &FileStore{dir: dir, textLimit: DefaultTextLimit, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir は出力ディレクトリです。
func (s *FileStore) Dir() string {
	return s.dir
}

// CheckpointName はチェックポイントのファイル名（拡張子なし）を返します。
// section が空なら件数ベースのマイルストーン、それ以外はセクション終了時のものです。
func CheckpointName(section types.Section) string {
	if section == "" {
		return MilestoneBaseName
	}
	return MilestoneBaseName + "_" + section.String()
}

// WriteCheckpoint はチェックポイントを書き出します。
func (s *FileStore) WriteCheckpoint(section types.Section, articles []types.Article) error {
	_, err := s.Save(CheckpointName(section), articles)
	return err
}

// SaveFinal は実行終了時のコーパスを書き出します。
func (s *FileStore) SaveFinal(articles []types.Article) ([]string, error) {
	return s.Save(FinalBaseName, articles)
}

// Save は baseName.json と baseName.csv を書き出し、書き出したパスを返します。
// 記事が 0 件のときは何も書き出しません。
func (s *FileStore) Save(baseName string, articles []types.Article) ([]string, error) {
	if len(articles) == 0 {
		s.log.Warn("保存する記事がありません", zap.String("name", baseName))
		return nil, nil
	}

	jsonPath := filepath.Join(s.dir, baseName+".json")
	if err := WriteJSON(jsonPath, articles); err != nil {
		return nil, fmt.Errorf("JSONの保存に失敗しました: %w", err)
	}
	csvPath := filepath.Join(s.dir, baseName+".csv")
	if err := WriteCSV(csvPath, articles, s.textLimit); err != nil {
		return []string{jsonPath}, fmt.Errorf("CSVの保存に失敗しました: %w", err)
	}

	s.log.Info("コーパスを保存しました",
		zap.String("json", jsonPath), zap.String("csv", csvPath), zap.Int("articles", len(articles)))
	return []string{jsonPath, csvPath}, nil
}
