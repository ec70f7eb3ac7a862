package cmd

import (
	"fmt"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/internal/config"
	"github.com/shouni/go-news-harvest/internal/logger"
	"github.com/shouni/go-news-harvest/internal/pipeline"
)

// --- グローバル定数 ---

const appName = "news-harvest"

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	ConfigFile  string  // --config-file 設定ファイル
	TimeoutSec  int     // --timeout タイムアウト（秒）
	MaxRetries  int     // --max-retries 最大試行回数
	Workers     int     // --workers 同時実行数
	Delay       float64 // --delay 取得後の待機（秒）
	OutputDir   string  // --output-dir 出力ディレクトリ
	LedgerPath  string  // --ledger 失敗台帳
	LogLevel    string  // --log-level
	LogEncoding string  // --log-encoding
}

var (
	Flags     AppFlags
	appConfig *config.Config
	appLog    = zap.NewNop()
)

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
// 既定値は設定ファイルや環境変数より優先されません。明示的に指定された場合だけ上書きします。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&Flags.ConfigFile, "config-file", "", "設定ファイル (YAML)。省略時は ./config.yaml を探します")
	pf.IntVar(&Flags.TimeoutSec, "timeout", int(config.DefaultTimeout), "HTTPリクエストのタイムアウト時間（秒）")
	pf.IntVar(&Flags.MaxRetries, "max-retries", config.DefaultMaxRetries, "HTTPリクエストの最大試行回数")
	pf.IntVar(&Flags.Workers, "workers", config.DefaultWorkers, "記事取得の同時実行数")
	pf.Float64Var(&Flags.Delay, "delay", config.DefaultDelay, "取得成功後の待機時間（秒）")
	pf.StringVar(&Flags.OutputDir, "output-dir", config.DefaultOutputDir, "コーパスとチェックポイントの出力先")
	pf.StringVar(&Flags.LedgerPath, "ledger", config.DefaultLedgerPath, "失敗URL台帳 (SQLite) のパス。空で無効")
	pf.StringVar(&Flags.LogLevel, "log-level", "info", "ログレベル (debug|info|warn|error)")
	pf.StringVar(&Flags.LogEncoding, "log-encoding", "console", "ログ形式 (console|json)")
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: Flags.ConfigFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	logCfg := logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding}
	if clibase.Flags.Verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}

	appConfig = cfg
	appLog = log
	appLog.Debug("設定を読み込みました",
		zap.String("base_url", cfg.BaseURL),
		zap.Int("workers", cfg.Workers),
		zap.Duration("timeout", cfg.TimeoutDuration()),
		zap.Duration("delay", cfg.DelayDuration()),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("milestone_interval", cfg.MilestoneInterval),
		zap.String("output_dir", cfg.OutputDir),
		zap.String("ledger", cfg.LedgerPath),
	)
	return nil
}

// buildDeps は読み込み済みの設定から依存関係を組み立てます。
func buildDeps() (*pipeline.Deps, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("設定が初期化されていません。rootコマンドのPreRunを確認してください")
	}
	return pipeline.Build(appConfig, appLog)
}

// --- エントリポイント ---

// Execute は、ルートコマンドを実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	defer func() { _ = appLog.Sync() }()

	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		crawlCmd,
		linksCmd,
		extractCmd,
		retryFailedCmd,
		statsCmd,
	)
}
