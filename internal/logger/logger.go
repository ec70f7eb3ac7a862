// Package logger は設定から zap ロガーを構築します。
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultLevel    = "info"
	DefaultEncoding = "console"
)

// Config はロガーの設定です。
type Config struct {
	Level       string   // debug / info / warn / error
	Encoding    string   // console / json
	Development bool     // 開発モード（サンプリング無効、スタックトレース付き）
	OutputPaths []string // 既定は stderr。標準出力は CLI の結果出力に使います。
}

// SetDefaults は未設定の項目に既定値を入れます。
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLevel
	}
	if c.Encoding == "" {
		c.Encoding = DefaultEncoding
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stderr"}
	}
}

// New は Config から *zap.Logger を構築します。
func New(cfg Config) (*zap.Logger, error) {
	cfg.SetDefaults()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	encoding := strings.ToLower(cfg.Encoding)
	if encoding != "console" && encoding != "json" {
		return nil, fmt.Errorf("未対応のログ形式です: %q", cfg.Encoding)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Sampling = nil
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = encoding
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	if encoding == "console" {
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zapCfg.OutputPaths = cfg.OutputPaths
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("ロガーの構築に失敗しました: %w", err)
	}
	return log, nil
}

// ParseLevel は文字列のログレベルを zapcore.Level に変換します。
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("未対応のログレベルです: %q", level)
	}
}
