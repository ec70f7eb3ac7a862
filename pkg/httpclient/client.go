package httpclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"go.uber.org/zap"

	"github.com/shouni/go-news-harvest/pkg/retry"
)

const (
	// HTTPクライアント関連の定数
	DefaultHTTPTimeout = 15 * time.Second
	DefaultDelay       = 300 * time.Millisecond
	MaxBodySize        = int64(10 * 1024 * 1024) // 10MB: レスポンスボディの最大読み込みサイズ

	// 接続エラー時のバックオフ上限（バックオフ単位の倍数。既定の単位では30秒）
	connectionBackoffCapUnits = 30
	// エラーメッセージに含めるボディの最大長
	maxErrorBodyLen = 256
)

// userAgents はリクエストごとにランダムに選ばれるブラウザの User-Agent です。
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.67",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// ErrBodyTooLarge は展開後のボディが MaxBodySize を超えたことを示します。リトライ対象外です。
var ErrBodyTooLarge = errors.New("レスポンスボディが上限を超えています")

// Doer は、標準の *http.Client.Do() と互換性のあるHTTPクライアントのインターフェースです。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError は 2xx 以外のステータスコードを示すエラー型です。
// 接続エラー以外の一般的な失敗として、上限なしのバックオフでリトライされます。
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) > 0 {
		body := strings.TrimSpace(string(e.Body))
		if len(body) > maxErrorBodyLen {
			body = body[:maxErrorBodyLen] + "..."
		}
		return fmt.Sprintf("HTTPステータスコードエラー: %d, ボディ: %s", e.StatusCode, body)
	}
	return fmt.Sprintf("HTTPステータスコードエラー: %d, ボディなし", e.StatusCode)
}

// ConnectionError は接続リセット、チャンク転送の中断、タイムアウトなど接続レベルの失敗を示します。
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("接続エラー: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError は与えられたエラーが接続レベルの失敗であるかを判断します。
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// Client はHTTPリクエストと指数バックオフを用いたリトライロジックを管理します。
type Client struct {
	httpClient  Doer
	retryConfig retry.Config
	backoffUnit time.Duration
	delay       time.Duration
	userAgents  []string
	log         *zap.Logger
}

// ClientOption はClientの設定を行うための関数型です。
type ClientOption func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithMaxAttempts は最大試行回数（初回を含む）を設定します。
func WithMaxAttempts(max uint64) ClientOption {
	return func(c *Client) {
		c.retryConfig.MaxAttempts = max
	}
}

// WithDelay は取得成功後に挟む待機時間（ポライトネス）を設定します。
func WithDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithBackoffUnit は指数バックオフの基本単位を設定します。既定は1秒です。
func WithBackoffUnit(unit time.Duration) ClientOption {
	return func(c *Client) {
		if unit > 0 {
			c.backoffUnit = unit
		}
	}
}

// WithUserAgents はランダム選択に使う User-Agent の候補を差し替えます。空の候補は無視します。
func WithUserAgents(agents ...string) ClientOption {
	return func(c *Client) {
		var valid []string
		for _, a := range agents {
			if a = strings.TrimSpace(a); a != "" {
				valid = append(valid, a)
			}
		}
		if len(valid) > 0 {
			c.userAgents = valid
		}
	}
}

// WithLogger はロガーを設定します。
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New は、新しいClientを生成します。
func New(timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		// http.Client はデフォルトでリダイレクトに追従します。
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryConfig: retry.DefaultConfig(),
		backoffUnit: retry.DefaultBackoffUnit,
		delay:       DefaultDelay,
		userAgents:  userAgents,
		log:         zap.NewNop(),
	}

	for _, opt := range options {
		opt(c)
	}

	c.retryConfig.Backoff = c.backoffFor
	c.retryConfig.Notify = func(attempt int, err error, wait time.Duration) {
		c.log.Warn("取得に失敗しました。再試行します",
			zap.Int("attempt", attempt),
			zap.Uint64("max_attempts", c.retryConfig.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return c
}

// backoffFor は接続エラーには上限付き、それ以外には上限なしの指数バックオフを適用します。
func (c *Client) backoffFor(attempt int, err error) time.Duration {
	if IsConnectionError(err) {
		return retry.Exponential(c.backoffUnit, connectionBackoffCapUnits*c.backoffUnit)(attempt, err)
	}
	return retry.Exponential(c.backoffUnit, 0)(attempt, err)
}

// addCommonHeaders はランダムな User-Agent と標準的な Accept 系ヘッダーを設定します。
func (c *Client) addCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgents[rand.IntN(len(c.userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// FetchBytes は URL からコンテンツを取得し、生のバイト配列として返します。
// 成功後には設定された待機時間だけブロックします。
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	op := func() error {
		var fetchErr error
		body, fetchErr = c.doFetch(ctx, url)
		return fetchErr
	}

	err := retry.Do(
		ctx,
		c.retryConfig,
		fmt.Sprintf("URL(%s)のフェッチ", url),
		op,
		c.isRetryableError,
	)
	if err != nil {
		c.log.Error("取得を断念しました", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	if err := sleepContext(ctx, c.delay); err != nil {
		return nil, err
	}
	return body, nil
}

// FetchDocument はURLからHTMLを取得し、goquery.Documentを返します。
func (c *Client) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.FetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}
	return doc, nil
}

// doFetch は実際の一度のHTTP GETリクエストを実行します。
func (c *Client) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("GETリクエスト作成に失敗しました: %w", err)
	}
	c.addCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	raw, err := httpkit.HandleLimitedResponse(resp, MaxBodySize)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	body, err := decodeBody(resp.Header.Get("Content-Encoding"), raw, MaxBodySize)
	if errors.Is(err, ErrBodyTooLarge) {
		return nil, err
	}
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("レスポンスの展開に失敗しました: %w", err)}
	}
	return body, nil
}

// isRetryableError はエラーがリトライ対象かどうかを判定します。
// 呼び出し元のコンテキストが終了している場合を除き、すべての失敗がリトライ対象です。
func (c *Client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	return true
}

// classifyTransportError は通信エラーを接続レベルのエラーとそれ以外に分類します。
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return &ConnectionError{Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ConnectionError{Err: err}
	}
	return fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
}

// decodeBody は Content-Encoding に従ってボディを展開します。
// 展開後に limit を超える場合は切り詰めずに ErrBodyTooLarge を返します。
func decodeBody(encoding string, raw []byte, limit int64) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return readLimited(zr, limit)
	case "deflate":
		// deflate は zlib ラップ形式が一般的だが、生の deflate を返すサーバーもある
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer zr.Close()
			return readLimited(zr, limit)
		}
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		return readLimited(fr, limit)
	default:
		return raw, nil
	}
}

// readLimited は limit+1 バイトまで読み、limit を超えていれば ErrBodyTooLarge を返します。
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %d バイト超", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// sleepContext は d だけ待機します。コンテキストが先に終了した場合はそのエラーを返します。
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
