package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SuccessFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New()
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(WithBaseDelay(time.Millisecond), WithMaxRetries(5))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(WithBaseDelay(time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := c.Do(req)
	require.Error(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestDefaultStrategy(t *testing.T) {
	assert.Equal(t, SmartRetry, DefaultStrategy(http.StatusTooManyRequests))
	assert.Equal(t, ConservativeRetry, DefaultStrategy(http.StatusInternalServerError))
	assert.Equal(t, NoRetry, DefaultStrategy(http.StatusOK))
	assert.Equal(t, NoRetry, DefaultStrategy(http.StatusUnauthorized))
}

func TestParseAnthropicRateLimitHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("retry-after", "7")
	headers.Set("anthropic-ratelimit-requests-remaining", "42")

	info := ParseAnthropicRateLimitHeaders(headers)
	assert.Equal(t, 7*time.Second, info.RetryAfter)
	assert.Equal(t, 42, info.RequestsRemaining)
}

func TestParseOpenAIRateLimitHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("x-ratelimit-remaining-tokens", "1000")

	info := ParseOpenAIRateLimitHeaders(headers)
	assert.Equal(t, 1000, info.TokensRemaining)
}
