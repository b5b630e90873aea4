package advisor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagesur/backend/internal/advisor"
	"github.com/voyagesur/backend/internal/domain"
)

// newUpstream starts a fake chat-completions server that answers each call
// with the next status in statuses (repeating the last one), and returns a
// client pointed at it plus a counter of calls made.
func newUpstream(t *testing.T, statuses ...int) (*advisor.Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		status := statuses[min(n, len(statuses)-1)]

		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": `{"weather":"sunny"}`}}},
		})
	}))
	t.Cleanup(srv.Close)

	return advisor.NewClient(advisor.ClientConfig{
		BaseURL:    srv.URL + "/",
		APIKey:     "test-key",
		Model:      "test-model",
		BaseDelay:  time.Millisecond,
		MaxRetries: 3,
	}), &calls
}

func TestClient_Complete_OK(t *testing.T) {
	client, calls := newUpstream(t, http.StatusOK)

	content, err := client.Complete(context.Background(), "sys", "user")

	require.NoError(t, err)
	assert.Equal(t, `{"weather":"sunny"}`, content)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Complete_RetriesRateLimit(t *testing.T) {
	client, calls := newUpstream(t, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusOK)

	_, err := client.Complete(context.Background(), "sys", "user")

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Complete_RateLimitExhausted(t *testing.T) {
	client, calls := newUpstream(t, http.StatusTooManyRequests)

	_, err := client.Complete(context.Background(), "sys", "user")

	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, domain.UpstreamRateLimited, domain.UpstreamKindOf(err))
	assert.Equal(t, int32(4), calls.Load(), "one attempt plus three retries")
}

func TestClient_Complete_UnauthorizedNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client, calls := newUpstream(t, status)

		_, err := client.Complete(context.Background(), "sys", "user")

		assert.Equal(t, domain.UpstreamUnauthorized, domain.UpstreamKindOf(err))
		assert.Equal(t, int32(1), calls.Load())
	}
}

func TestClient_Complete_ServerErrorUnavailable(t *testing.T) {
	client, calls := newUpstream(t, http.StatusBadGateway)

	_, err := client.Complete(context.Background(), "sys", "user")

	assert.Equal(t, domain.UpstreamUnavailable, domain.UpstreamKindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Complete_NoAPIKey(t *testing.T) {
	client := advisor.NewClient(advisor.ClientConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := client.Complete(context.Background(), "sys", "user")

	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, domain.UpstreamUnavailable, domain.UpstreamKindOf(err))
}

func TestClient_Complete_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	client := advisor.NewClient(advisor.ClientConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		BaseDelay:  time.Hour,
		MaxRetries: 3,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "sys", "user")

	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, domain.UpstreamUnavailable, domain.UpstreamKindOf(err))
}
