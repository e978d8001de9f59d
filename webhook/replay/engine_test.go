package replay_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/tymbug/webhook"
	"github.com/marcelsud/tymbug/webhook/mocks"
	"github.com/marcelsud/tymbug/webhook/replay"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func storedWebhook() webhook.Webhook {
	return webhook.Webhook{
		ID:       "wh-123",
		Provider: "generic",
		Path:     "/api/test-endpoint",
		Method:   "POST",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Custom":     "original",
			"Host":         "tymbug.example.com",
		},
		Body:           json.RawMessage(`{"event":"test"}`),
		ResponseStatus: 200,
		UserID:         "user-1",
		ReceivedAt:     time.Now(),
	}
}

func newEngine(repo replay.Store, baseURL string) *replay.Engine {
	e := replay.NewEngine(repo, baseURL, zerolog.Nop())
	e.Backoff = 5 * time.Millisecond
	e.Timeout = 2 * time.Second
	return e
}

// failingTransport fails every round trip at the transport level
type failingTransport struct {
	calls atomic.Int32
}

func (t *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, errors.New("connection refused")
}

func TestReplayDefaultTarget(t *testing.T) {
	ctx := context.Background()

	var gotPath, gotMethod, gotBody, gotCustom string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotCustom = r.Header.Get("X-Custom")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer target.Close()

	repo := mocks.NewRepository(t)
	repo.On("Get", ctx, "wh-123").Return(storedWebhook(), nil)
	repo.On("StoreReplay", ctx, webhook.MatchReplay(func(rp webhook.Replay) bool {
		return rp.OriginalID == "wh-123" && rp.ResponseStatus == 200 && rp.UserID == "user-1"
	})).Return("rp-1", nil)

	engine := newEngine(repo, target.URL)
	outcome, err := engine.Replay(ctx, "wh-123", "user-1", replay.Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, 200, outcome.ResponseStatus)
	assert.Equal(t, "rp-1", outcome.Replay.ID)
	assert.Equal(t, "/api/test-endpoint", gotPath)
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, `{"event":"test"}`, gotBody)
	assert.Equal(t, "original", gotCustom)
	assert.JSONEq(t, `{"ok":true}`, string(outcome.ResponseBody))
}

func TestReplayHTTPErrorStatusIsTerminal(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	repo := mocks.NewRepository(t)
	repo.On("Get", ctx, "wh-123").Return(storedWebhook(), nil)
	repo.On("StoreReplay", ctx, webhook.MatchReplay(func(rp webhook.Replay) bool {
		return rp.ResponseStatus == 500
	})).Return("rp-1", nil)

	engine := newEngine(repo, target.URL)
	outcome, err := engine.Replay(ctx, "wh-123", "user-1", replay.Options{})

	// A 5xx from the target is a legitimate response: one attempt,
	// one replay record, no retry
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, 500, outcome.ResponseStatus)
	repo.AssertNumberOfCalls(t, "StoreReplay", 1)
}

func TestReplayTransportFailureExhaustsAttempts(t *testing.T) {
	ctx := context.Background()

	repo := mocks.NewRepository(t)
	repo.On("Get", ctx, "wh-123").Return(storedWebhook(), nil)

	transport := &failingTransport{}
	engine := newEngine(repo, "http://127.0.0.1:1")
	engine.Client = &http.Client{Transport: transport}

	start := time.Now()
	outcome, err := engine.Replay(ctx, "wh-123", "user-1", replay.Options{})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, replay.ErrExhausted)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, int32(3), transport.calls.Load())
	assert.Equal(t, 3, outcome.Attempts)
	// Waits of 1x and 2x the base backoff must have happened
	assert.GreaterOrEqual(t, elapsed, 3*engine.Backoff)
	// No replay record on pure transport failure
	repo.AssertNotCalled(t, "StoreReplay")
}

func TestReplayBackoffCancellation(t *testing.T) {
	repo := mocks.NewRepository(t)
	repo.On("Get", mock.Anything, "wh-123").Return(storedWebhook(), nil)

	engine := newEngine(repo, "http://127.0.0.1:1")
	engine.Client = &http.Client{Transport: &failingTransport{}}
	engine.Backoff = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := engine.Replay(ctx, "wh-123", "user-1", replay.Options{})

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReplayTargetResolution(t *testing.T) {
	ctx := context.Background()

	var gotPath string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	t.Run("absolute override used as-is", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("Get", ctx, "wh-123").Return(storedWebhook(), nil)
		repo.On("StoreReplay", ctx, mock.Anything).Return("rp-1", nil)

		engine := newEngine(repo, "http://unused.example.com")
		outcome, err := engine.Replay(ctx, "wh-123", "user-1", replay.Options{
			TargetURL: target.URL + "/custom/hook",
		})

		require.NoError(t, err)
		assert.Equal(t, "/custom/hook", gotPath)
		assert.Equal(t, target.URL+"/custom/hook", outcome.TargetURL)
	})

	t.Run("relative override resolved against calling request", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("Get", ctx, "wh-123").Return(storedWebhook(), nil)
		repo.On("StoreReplay", ctx, mock.Anything).Return("rp-1", nil)

		host := strings.TrimPrefix(target.URL, "http://")
		engine := newEngine(repo, "http://unused.example.com")
		outcome, err := engine.Replay(ctx, "wh-123", "user-1", replay.Options{
			TargetURL:     "/relative/hook",
			RequestScheme: "http",
			RequestHost:   host,
		})

		require.NoError(t, err)
		assert.Equal(t, "/relative/hook", gotPath)
		assert.Equal(t, "http://"+host+"/relative/hook", outcome.TargetURL)
	})
}

func TestReplayAuthorizationForwarding(t *testing.T) {
	ctx := context.Background()

	var gotAuth, gotContentType string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	wh := storedWebhook()
	wh.Headers = map[string]string{"X-Custom": "original"}

	repo := mocks.NewRepository(t)
	repo.On("Get", ctx, "wh-123").Return(wh, nil)
	repo.On("StoreReplay", ctx, mock.Anything).Return("rp-1", nil)

	engine := newEngine(repo, target.URL)
	_, err := engine.Replay(ctx, "wh-123", "user-1", replay.Options{
		BearerToken: "caller-token",
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer caller-token", gotAuth)
	// Missing content type defaults to JSON
	assert.Equal(t, "application/json", gotContentType)
}

func TestReplayOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("foreign webhook is not found", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("Get", ctx, "wh-123").Return(storedWebhook(), nil)

		engine := newEngine(repo, "http://unused.example.com")
		_, err := engine.Replay(ctx, "wh-123", "intruder", replay.Options{})

		require.ErrorIs(t, err, webhook.ErrNotFound)
	})

	t.Run("unknown webhook", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("Get", ctx, "missing").Return(webhook.Webhook{}, webhook.ErrNotFound)

		engine := newEngine(repo, "http://unused.example.com")
		_, err := engine.Replay(ctx, "missing", "user-1", replay.Options{})

		require.ErrorIs(t, err, webhook.ErrNotFound)
	})
}

func TestReplayDebugOverrides(t *testing.T) {
	ctx := context.Background()

	var gotBody []byte
	var gotCustom, gotStripped string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotCustom = r.Header.Get("X-Debug")
		gotStripped = r.Header.Get("Transfer-Encoding")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer target.Close()

	repo := mocks.NewRepository(t)
	repo.On("Get", ctx, "wh-123").Return(storedWebhook(), nil)
	repo.On("StoreReplay", ctx, webhook.MatchReplay(func(rp webhook.Replay) bool {
		return rp.ResponseStatus == 202
	})).Return("rp-1", nil)

	engine := newEngine(repo, "http://unused.example.com")
	outcome, err := engine.Replay(ctx, "wh-123", "user-1", replay.Options{
		TargetURL: target.URL,
		Headers: map[string]string{
			"X-Debug":           "injected",
			"Transfer-Encoding": "chunked",
		},
		Body: json.RawMessage(`{"overridden":true}`),
	})

	require.NoError(t, err)
	assert.Equal(t, 202, outcome.ResponseStatus)
	assert.Equal(t, `{"overridden":true}`, string(gotBody))
	assert.Equal(t, "injected", gotCustom)
	assert.Empty(t, gotStripped)
}
