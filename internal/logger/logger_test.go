package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: "INFO", want: zapcore.InfoLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "trace", want: zapcore.InfoLevel, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvest.log")

	log, err := New(Config{Level: "debug", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	log.Info("ok")
	require.NoError(t, log.Sync())
	assert.FileExists(t, path)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Encoding: "xml"})
	assert.ErrorContains(t, err, "未対応のログ形式です")
}

func TestSetDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, Config{Level: "info", Encoding: "console", OutputPaths: []string{"stderr"}}, c)
}
