package httpclient

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHTTPClient は http.Client の Do メソッドをモックします。
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) != nil {
		return args.Get(0).(*http.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

// newTestClient はバックオフと待機を短縮したテスト用クライアントを返します。
func newTestClient(opts ...ClientOption) *Client {
	base := []ClientOption{
		WithBackoffUnit(time.Millisecond),
		WithDelay(0),
		WithMaxAttempts(3),
	}
	return New(time.Second, append(base, opts...)...)
}

func TestNew(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		client := New(0)
		assert.Equal(t, DefaultHTTPTimeout, client.httpClient.(*http.Client).Timeout)
		assert.Equal(t, DefaultDelay, client.delay)
	})
	t.Run("custom timeout", func(t *testing.T) {
		timeout := 30 * time.Second
		client := New(timeout)
		assert.Equal(t, timeout, client.httpClient.(*http.Client).Timeout)
	})
	t.Run("with HTTP client option", func(t *testing.T) {
		mockClient := new(MockHTTPClient)
		client := New(10*time.Second, WithHTTPClient(mockClient))
		assert.Equal(t, mockClient, client.httpClient)
	})
	t.Run("with max attempts option", func(t *testing.T) {
		client := New(0, WithMaxAttempts(7))
		assert.Equal(t, uint64(7), client.retryConfig.MaxAttempts)
	})
}

func TestBackoffFor(t *testing.T) {
	client := New(0)
	connErr := &ConnectionError{Err: syscall.ECONNRESET}
	genericErr := &StatusError{StatusCode: http.StatusBadGateway}

	assert.Equal(t, 1*time.Second, client.backoffFor(0, connErr))
	assert.Equal(t, 16*time.Second, client.backoffFor(4, connErr))
	assert.Equal(t, 30*time.Second, client.backoffFor(5, connErr), "接続エラーは30秒で頭打ち")
	assert.Equal(t, 64*time.Second, client.backoffFor(6, genericErr), "一般的な失敗は上限なし")
}

func TestStatusError_Error(t *testing.T) {
	assert.Equal(t, "HTTPステータスコードエラー: 404, ボディ: not found", (&StatusError{StatusCode: 404, Body: []byte("not found\n")}).Error())
	assert.Equal(t, "HTTPステータスコードエラー: 500, ボディなし", (&StatusError{StatusCode: 500}).Error())
}

func TestFetchBytes_SuccessSetsHeaders(t *testing.T) {
	var gotUA, gotLang, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("<html><head><title>ok</title></head></html>"))
	}))
	defer server.Close()

	client := newTestClient()
	body, err := client.FetchBytes(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>ok</title>")
	assert.True(t, slices.Contains(userAgents, gotUA), "User-Agent は候補から選ばれる")
	assert.Contains(t, gotLang, "ru-RU")
	assert.Contains(t, gotAccept, "text/html")
}

func TestWithUserAgents(t *testing.T) {
	tests := []struct {
		name   string
		agents []string
		want   []string
	}{
		{name: "正常ケース_差し替え", agents: []string{"harvest/1.0", " harvest/2.0 "}, want: []string{"harvest/1.0", "harvest/2.0"}},
		{name: "エッジケース_空は既定のまま", agents: nil, want: userAgents},
		{name: "エッジケース_空文字のみは既定のまま", agents: []string{"", "  "}, want: userAgents},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(time.Second, WithUserAgents(tt.agents...))
			assert.Equal(t, tt.want, client.userAgents)
		})
	}
}

func TestFetchBytes_RetriesServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("done"))
	}))
	defer server.Close()

	client := newTestClient()
	body, err := client.FetchBytes(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "done", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchBytes_NonSuccessStatusExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient()
	body, err := client.FetchBytes(context.Background(), server.URL)

	require.Error(t, err)
	assert.Nil(t, body)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load(), "4xx も同じリトライ方針に従う")
}

func TestFetchBytes_ConnectionErrorIsRetried(t *testing.T) {
	mockClient := new(MockHTTPClient)
	mockClient.On("Do", mock.Anything).Return(nil, syscall.ECONNRESET)

	client := newTestClient(WithHTTPClient(mockClient))
	_, err := client.FetchBytes(context.Background(), "https://example.com/news/a/")

	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	mockClient.AssertNumberOfCalls(t, "Do", 3)
}

func TestFetchBytes_CanceledContextStops(t *testing.T) {
	mockClient := new(MockHTTPClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(WithHTTPClient(mockClient))
	_, err := client.FetchBytes(ctx, "https://example.com/")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	mockClient.AssertNotCalled(t, "Do", mock.Anything)
}

func TestFetchBytes_DecodesGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("<p>сжатый текст</p>"))
	require.NoError(t, zw.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	body, err := newTestClient().FetchBytes(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "<p>сжатый текст</p>", string(body))
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecodeBody_Limit(t *testing.T) {
	const limit = 16
	atLimit := bytes.Repeat([]byte("a"), limit)
	overLimit := bytes.Repeat([]byte("a"), limit+1)

	tests := []struct {
		name     string
		encoding string
		raw      []byte
		want     []byte
		tooLarge bool
	}{
		{name: "gzip 上限ちょうどは受け入れる", encoding: "gzip", raw: gzipBytes(t, atLimit), want: atLimit},
		{name: "gzip 上限超過はエラー", encoding: "gzip", raw: gzipBytes(t, overLimit), tooLarge: true},
		{name: "deflate 上限超過はエラー", encoding: "deflate", raw: zlibBytes(t, overLimit), tooLarge: true},
		{name: "無圧縮はそのまま返す", encoding: "", raw: overLimit, want: overLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBody(tt.encoding, tt.raw, limit)
			if tt.tooLarge {
				assert.ErrorIs(t, err, ErrBodyTooLarge)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRetryableError_BodyTooLarge(t *testing.T) {
	c := newTestClient()
	assert.False(t, c.isRetryableError(ErrBodyTooLarge))
	assert.True(t, c.isRetryableError(&ConnectionError{Err: errors.New("reset")}))
}

func TestFetchBytes_AppliesPolitenessDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient(WithDelay(30 * time.Millisecond))
	start := time.Now()
	_, err := client.FetchBytes(context.Background(), server.URL)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestFetchDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Заголовок</title></head><body></body></html>`))
	}))
	defer server.Close()

	doc, err := newTestClient().FetchDocument(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "Заголовок", doc.Find("title").Text())
}
