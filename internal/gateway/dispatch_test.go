package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabwise/csv-gateway/internal/backends"
	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/provider"
)

func TestDispatch_Success(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("x-api-key")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer ts.Close()

	b := backends.NewAnthropicBackend(&config.Config{AnthropicAPIKey: "ant-key", AnthropicModel: "claude-3"})
	b.BaseURL = ts.URL

	respBody, err := NewDispatcher().Dispatch(context.Background(), b, []byte(`{"model":"claude-3"}`))
	require.NoError(t, err)

	assert.Contains(t, string(respBody), "ok")
	assert.Equal(t, "ant-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"model":"claude-3"}`, string(gotBody))
}

func TestDispatch_UpstreamErrorWithoutRetry(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer ts.Close()

	b := backends.NewAnthropicBackend(&config.Config{AnthropicAPIKey: "ant-key"})
	b.BaseURL = ts.URL

	_, err := NewDispatcher().Dispatch(context.Background(), b, []byte(`{}`))

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 429, upstream.StatusCode)
	assert.Equal(t, provider.Anthropic, upstream.Provider)
	assert.Contains(t, upstream.Body, "rate_limit_error")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "exactly one outbound call, no retry")
}

func TestDispatch_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused

	b := backends.NewAnthropicBackend(&config.Config{AnthropicAPIKey: "ant-key"})
	b.BaseURL = ts.URL

	_, err := NewDispatcher().Dispatch(context.Background(), b, []byte(`{}`))

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, provider.Anthropic, transport.Provider)
}

func TestDispatch_SurvivesCallerCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	b := backends.NewAnthropicBackend(&config.Config{AnthropicAPIKey: "ant-key"})
	b.BaseURL = ts.URL

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled: the dispatched call must still run

	_, err := NewDispatcher().Dispatch(ctx, b, []byte(`{}`))
	assert.NoError(t, err)
}
