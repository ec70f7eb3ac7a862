package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxAttempts は最大試行回数（初回を含む）です。
	DefaultMaxAttempts = 5

	// バックオフのデフォルト設定
	DefaultBackoffUnit = 1 * time.Second
	DefaultBackoffCap  = 30 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// BackoffFunc は失敗した試行の番号（0始まり）とそのエラーから待機時間を決定します。
type BackoffFunc func(attempt int, err error) time.Duration

// NotifyFunc は次の試行を待機する直前に呼び出されます。
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Config はリトライ動作を設定するための構造体です。
type Config struct {
	MaxAttempts uint64
	Backoff     BackoffFunc
	Notify      NotifyFunc
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     Exponential(DefaultBackoffUnit, 0),
	}
}

// Exponential は unit * 2^attempt を返すバックオフ関数を生成します。
// limit が 0 以下の場合は上限なしです。
func Exponential(unit time.Duration, limit time.Duration) BackoffFunc {
	return func(attempt int, _ error) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		if attempt > 30 {
			attempt = 30
		}
		d := unit * time.Duration(1<<uint(attempt))
		if limit > 0 && d > limit {
			return limit
		}
		return d
	}
}

// policy は BackoffFunc を backoff.BackOff に適合させます。
type policy struct {
	fn      BackoffFunc
	attempt int
	lastErr *error
}

func (p *policy) NextBackOff() time.Duration {
	d := p.fn(p.attempt, *p.lastErr)
	p.attempt++
	if d < 0 {
		return backoff.Stop
	}
	return d
}

func (p *policy) Reset() {
	p.attempt = 0
}

// Do は指定されたバックオフ関数とカスタムエラー判定を使用して操作をリトライします。
// 最終的に失敗した場合は、最後のエラーをラップして返します。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	backoffFn := cfg.Backoff
	if backoffFn == nil {
		backoffFn = Exponential(DefaultBackoffUnit, 0)
	}

	var (
		lastErr   error
		attempts  int
		permanent bool
	)

	p := &policy{fn: backoffFn, lastErr: &lastErr}
	bo := backoff.WithContext(backoff.WithMaxRetries(p, maxAttempts-1), ctx)

	retryableOp := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if shouldRetryFn != nil && !shouldRetryFn(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if cfg.Notify != nil {
		notify = func(err error, wait time.Duration) {
			cfg.Notify(attempts, err, wait)
		}
	}

	err := backoff.RetryNotify(retryableOp, bo, notify)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, ctxErr)
		}
	}

	if permanent {
		return fmt.Errorf("%sに失敗しました: リトライ対象外のエラー: %w", operationName, lastErr)
	}

	return fmt.Errorf("%sに失敗しました: 最大試行回数 (%d回) に到達。最終エラー: %w", operationName, attempts, lastErr)
}
