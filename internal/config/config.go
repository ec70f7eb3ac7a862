// Package config は .env、設定ファイル、環境変数、コマンドラインフラグから設定を読み込みます。
// 優先順位はフラグ > 環境変数 > 設定ファイル > 既定値です。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shouni/go-news-harvest/pkg/types"
)

// EnvPrefix は環境変数の接頭辞です。例: HARVEST_WORKERS, HARVEST_LOG_LEVEL
const EnvPrefix = "HARVEST"

// 既定値
const (
	DefaultWorkers           = 20
	DefaultDelay             = 0.3
	DefaultTimeout           = 15.0
	DefaultMaxRetries        = 5
	DefaultMaxPages          = 50
	DefaultMilestoneInterval = 100
	DefaultOutputDir         = "."
	DefaultLedgerPath        = "harvest.db"
	DefaultTextLimit         = 1000
)

// LogConfig はログ出力の設定です。
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Config はアプリケーション全体の設定です。
type Config struct {
	BaseURL            string            `mapstructure:"base_url"`
	Workers            int               `mapstructure:"workers"`
	Delay              float64           `mapstructure:"delay"`   // 秒
	Timeout            float64           `mapstructure:"timeout"` // 秒
	MaxRetries         int               `mapstructure:"max_retries"`
	MaxPages           int               `mapstructure:"max_pages"`
	Pages              map[string]int    `mapstructure:"pages"`
	MilestoneInterval  int               `mapstructure:"milestone_interval"` // 0 で無効
	SectionCheckpoints bool              `mapstructure:"section_checkpoints"`
	OutputDir          string            `mapstructure:"output_dir"`
	LedgerPath         string            `mapstructure:"ledger_path"` // 空で無効
	Feeds              map[string]string `mapstructure:"feeds"`
	TextLimit          int               `mapstructure:"text_limit"`
	UserAgents         []string          `mapstructure:"user_agents"` // 空なら組み込みの候補
	Log                LogConfig         `mapstructure:"log"`
}

// flagKeys はコマンドラインフラグ名と設定キーの対応です。
var flagKeys = map[string]string{
	"base-url":           "base_url",
	"workers":            "workers",
	"delay":              "delay",
	"timeout":            "timeout",
	"max-retries":        "max_retries",
	"max-pages":          "max_pages",
	"milestone-interval": "milestone_interval",
	"output-dir":         "output_dir",
	"ledger":             "ledger_path",
	"log-level":          "log.level",
	"log-encoding":       "log.encoding",
}

// LoadOptions は Load の入力です。
type LoadOptions struct {
	ConfigFile string         // 明示された設定ファイル。空なら ./config.yaml と ./config/config.yaml を探します。
	EnvFile    string         // 空なら ./.env
	Flags      *pflag.FlagSet // 変更されたフラグだけが既定値より優先されます
}

// Load は設定を読み込み、検証済みの Config を返します。
func Load(opts LoadOptions) (*Config, error) {
	loadEnvFile(opts.EnvFile)

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}
	if err := bindFlags(v, opts.Flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗しました: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile は .env を読み込みます。ファイルがなくてもエラーにしません。
func loadEnvFile(path string) {
	if path == "" {
		_ = godotenv.Load()
		return
	}
	_ = godotenv.Load(path)
}

func setDefaults(v *viper.Viper) {
	site := types.DefaultSite()
	v.SetDefault("base_url", site.BaseURL)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("delay", DefaultDelay)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("max_pages", DefaultMaxPages)
	v.SetDefault("pages", map[string]int{})
	v.SetDefault("milestone_interval", DefaultMilestoneInterval)
	v.SetDefault("section_checkpoints", true)
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("ledger_path", DefaultLedgerPath)
	v.SetDefault("feeds", map[string]string{})
	v.SetDefault("text_limit", DefaultTextLimit)
	v.SetDefault("user_agents", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", path, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("フラグ %s のバインドに失敗しました: %w", name, err)
		}
	}
	return nil
}

// WithDefaults は 0 値の項目に既定値を入れた Config を返します。
// 0 が意味を持つ MilestoneInterval と LedgerPath はそのままです。
func (c Config) WithDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = types.DefaultSite().BaseURL
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.TextLimit <= 0 {
		c.TextLimit = DefaultTextLimit
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "console"
	}
	return c
}

// Validate は設定値の整合性を検証します。
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url が不正です: %q", c.BaseURL)
	}
	if c.MilestoneInterval < 0 {
		return fmt.Errorf("milestone_interval は 0 以上である必要があります: %d", c.MilestoneInterval)
	}
	for name, pages := range c.Pages {
		if _, err := types.ParseSection(name); err != nil {
			return fmt.Errorf("pages: %w", err)
		}
		if pages < 1 {
			return fmt.Errorf("pages.%s は 1 以上である必要があります: %d", name, pages)
		}
	}
	for name := range c.Feeds {
		if _, err := types.ParseSection(name); err != nil {
			return fmt.Errorf("feeds: %w", err)
		}
	}
	return nil
}

// Site は巡回対象サイトの設定を返します。
func (c Config) Site() types.Site {
	site := types.DefaultSite()
	site.BaseURL = c.BaseURL
	return site
}

// DelayDuration は取得後の待機時間です。
func (c Config) DelayDuration() time.Duration {
	return time.Duration(c.Delay * float64(time.Second))
}

// TimeoutDuration は 1 リクエストのタイムアウトです。
func (c Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout * float64(time.Second))
}

// PagesFor はセクションの最大ページ数を返します。個別設定がなければ MaxPages です。
func (c Config) PagesFor(section types.Section) int {
	if n, ok := c.Pages[section.String()]; ok && n > 0 {
		return n
	}
	return c.MaxPages
}

// SectionFeeds は空でないフィード URL をセクションごとに返します。
func (c Config) SectionFeeds() map[types.Section]string {
	feeds := make(map[types.Section]string, len(c.Feeds))
	for name, u := range c.Feeds {
		if strings.TrimSpace(u) == "" {
			continue
		}
		if s, err := types.ParseSection(name); err == nil {
			feeds[s] = u
		}
	}
	return feeds
}
