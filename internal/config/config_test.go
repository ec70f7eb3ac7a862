package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-news-harvest/pkg/types"
)

const sampleYAML = `
workers: 8
delay: 0.5
milestone_interval: 0
section_checkpoints: false
ledger_path: ""
pages:
  news: 200
  opinions: 10
feeds:
  news: https://rb.ru/feeds/news/
  stories: ""
log:
  level: debug
user_agents:
  - harvest-test/1.0
  - harvest-test/2.0
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{EnvFile: noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, "https://rb.ru", cfg.BaseURL)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, 300*time.Millisecond, cfg.DelayDuration())
	assert.Equal(t, 15*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultMilestoneInterval, cfg.MilestoneInterval)
	assert.True(t, cfg.SectionCheckpoints)
	assert.Equal(t, DefaultLedgerPath, cfg.LedgerPath)
	assert.Equal(t, DefaultTextLimit, cfg.TextLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.SectionFeeds())
	assert.Empty(t, cfg.UserAgents)
}

func TestLoad_ConfigFile(t *testing.T) {
	cfg, err := Load(LoadOptions{ConfigFile: writeFile(t, "config.yaml", sampleYAML), EnvFile: noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.DelayDuration())
	assert.Equal(t, 0, cfg.MilestoneInterval, "0 は無効化として保持される")
	assert.False(t, cfg.SectionCheckpoints)
	assert.Empty(t, cfg.LedgerPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 200, cfg.PagesFor(types.SectionNews))
	assert.Equal(t, 10, cfg.PagesFor(types.SectionOpinions))
	assert.Equal(t, DefaultMaxPages, cfg.PagesFor(types.SectionReviews))
	assert.Equal(t, map[types.Section]string{types.SectionNews: "https://rb.ru/feeds/news/"}, cfg.SectionFeeds())
	assert.Equal(t, []string{"harvest-test/1.0", "harvest-test/2.0"}, cfg.UserAgents)
}

func TestLoad_Precedence(t *testing.T) {
	file := writeFile(t, "config.yaml", sampleYAML)

	t.Run("環境変数は設定ファイルより優先", func(t *testing.T) {
		t.Setenv("HARVEST_WORKERS", "11")
		t.Setenv("HARVEST_LOG_LEVEL", "warn")

		cfg, err := Load(LoadOptions{ConfigFile: file, EnvFile: noEnvFile(t)})
		require.NoError(t, err)
		assert.Equal(t, 11, cfg.Workers)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("変更されたフラグは環境変数より優先", func(t *testing.T) {
		t.Setenv("HARVEST_WORKERS", "11")
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.Int("workers", DefaultWorkers, "")
		fs.Float64("delay", DefaultDelay, "")
		require.NoError(t, fs.Parse([]string{"--workers=3"}))

		cfg, err := Load(LoadOptions{ConfigFile: file, EnvFile: noEnvFile(t), Flags: fs})
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Workers)
		assert.Equal(t, 500*time.Millisecond, cfg.DelayDuration(), "未変更のフラグは設定ファイルを上書きしない")
	})
}

func TestLoad_EnvFile(t *testing.T) {
	// godotenv が設定した値をテスト終了時に消すため、先に t.Setenv で登録しておく
	t.Setenv("HARVEST_TEXT_LIMIT", "")
	require.NoError(t, os.Unsetenv("HARVEST_TEXT_LIMIT"))
	envFile := writeFile(t, ".env", "HARVEST_TEXT_LIMIT=250\n")

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.TextLimit)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts func(t *testing.T) LoadOptions
	}{
		{
			name: "エラーケース_設定ファイルが存在しない",
			opts: func(t *testing.T) LoadOptions {
				return LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"), EnvFile: noEnvFile(t)}
			},
		},
		{
			name: "エラーケース_未知のセクション",
			opts: func(t *testing.T) LoadOptions {
				return LoadOptions{ConfigFile: writeFile(t, "c.yaml", "pages:\n  blog: 3\n"), EnvFile: noEnvFile(t)}
			},
		},
		{
			name: "エラーケース_不正なベースURL",
			opts: func(t *testing.T) LoadOptions {
				return LoadOptions{ConfigFile: writeFile(t, "c.yaml", "base_url: rb.ru\n"), EnvFile: noEnvFile(t)}
			},
		},
		{
			name: "エラーケース_負のマイルストーン間隔",
			opts: func(t *testing.T) LoadOptions {
				return LoadOptions{ConfigFile: writeFile(t, "c.yaml", "milestone_interval: -1\n"), EnvFile: noEnvFile(t)}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts(t))
			assert.Error(t, err)
		})
	}
}

func TestWithDefaults(t *testing.T) {
	c := Config{Workers: -1, Delay: -2}.WithDefaults()

	assert.Equal(t, DefaultWorkers, c.Workers)
	assert.Zero(t, c.Delay)
	assert.Equal(t, DefaultMaxPages, c.MaxPages)
	assert.Zero(t, c.MilestoneInterval)
	assert.Empty(t, c.LedgerPath)
	assert.Equal(t, "https://rb.ru", c.Site().BaseURL)
}
