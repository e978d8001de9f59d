package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/tymbug/auth"
	"github.com/marcelsud/tymbug/webhook"
	"github.com/marcelsud/tymbug/webhook/mocks"
	"github.com/marcelsud/tymbug/webhook/providers"
	"github.com/marcelsud/tymbug/webhook/replay"
)

const testJWTSecret = "handler-test-secret"

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.Sign(testJWTSecret, userID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

type routerOption func(*Deps)

func withService(service webhook.UseCase) routerOption {
	return func(d *Deps) { d.Webhooks = service }
}

func withRepository(repo webhook.Repository) routerOption {
	return func(d *Deps) { d.Registry = providers.BuildRegistry(providers.Config{}, repo) }
}

func withReplayer(r Replayer) routerOption {
	return func(d *Deps) { d.Replayer = r }
}

func newRouter(t *testing.T, opts ...routerOption) http.Handler {
	t.Helper()
	deps := Deps{
		Webhooks: new(mocks.UseCase),
		Registry: providers.BuildRegistry(providers.Config{}, new(mocks.Repository)),
		Verifier: auth.NewJWTVerifier(testJWTSecret),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return Handlers(context.Background(), deps)
}

func TestPostWebhookRequiresAuthentication(t *testing.T) {
	router := newRouter(t)

	r := httptest.NewRequest(http.MethodPost, "/v1/webhooks/generic", strings.NewReader(`{"a":1}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPostWebhookStoresNormalizedCapture(t *testing.T) {
	repo := new(mocks.Repository)
	var stored webhook.Webhook
	repo.On("Store", mock.Anything, mock.AnythingOfType("webhook.Webhook")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(webhook.Webhook) }).
		Return("wh-1", nil)

	router := newRouter(t, withRepository(repo))

	r := httptest.NewRequest(http.MethodPost, "/v1/webhooks/custom/orders/created", strings.NewReader(`{"order":42}`))
	r.Header.Set("Authorization", bearerToken(t, "user-1"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "wh-1", resp.ID)
	assert.Equal(t, "generic", resp.Provider, "unknown providers fall through to the catch-all")

	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, http.StatusOK, stored.ResponseStatus)
	assert.Equal(t, "/v1/webhooks/custom/orders/created", stored.Path)
	assert.JSONEq(t, `{"order":42}`, string(stored.Body))
	assert.NotContains(t, stored.Headers, "Authorization", "credentials must not be captured")
	assert.NotContains(t, stored.Headers, "authorization")
	repo.AssertExpectations(t)
}

func TestPostWebhookGithubMissingHeaders(t *testing.T) {
	repo := new(mocks.Repository)
	router := newRouter(t, withRepository(repo))

	r := httptest.NewRequest(http.MethodPost, "/v1/webhooks/github", strings.NewReader(`{"action":"opened"}`))
	r.Header.Set("Authorization", bearerToken(t, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "x-github-event")
	repo.AssertNotCalled(t, "Store")
}

func TestGetWebhooksListsOwn(t *testing.T) {
	service := new(mocks.UseCase)
	service.On("List", mock.Anything, "user-1", 0).Return([]webhook.Webhook{
		{ID: "wh-1", Provider: "github", ReplayCount: 2},
		{ID: "wh-2", Provider: "generic"},
	}, nil)

	router := newRouter(t, withService(service))

	r := httptest.NewRequest(http.MethodGet, "/v1/webhooks", nil)
	r.Header.Set("Authorization", bearerToken(t, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var result []webhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result, 2)
	assert.Equal(t, "wh-1", result[0].ID)
	assert.Equal(t, 2, result[0].ReplayCount)
	service.AssertExpectations(t)
}

func TestGetWebhooksRejectsBadLimit(t *testing.T) {
	router := newRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/v1/webhooks?limit=abc", nil)
	r.Header.Set("Authorization", bearerToken(t, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetWebhookDetailIncludesReplays(t *testing.T) {
	service := new(mocks.UseCase)
	service.On("Get", mock.Anything, "wh-1", "user-1").Return(
		webhook.Webhook{ID: "wh-1", Provider: "github", Body: json.RawMessage(`{}`)},
		[]webhook.Replay{{ID: "rp-1", OriginalID: "wh-1", ResponseStatus: 200}},
		nil,
	)

	router := newRouter(t, withService(service))

	r := httptest.NewRequest(http.MethodGet, "/v1/webhooks/wh-1", nil)
	r.Header.Set("Authorization", bearerToken(t, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rp-1"`)
}

func TestGetWebhookNotFound(t *testing.T) {
	service := new(mocks.UseCase)
	service.On("Get", mock.Anything, "missing", "user-1").
		Return(webhook.Webhook{}, nil, webhook.ErrNotFound)

	router := newRouter(t, withService(service))

	r := httptest.NewRequest(http.MethodGet, "/v1/webhooks/missing", nil)
	r.Header.Set("Authorization", bearerToken(t, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProviders(t *testing.T) {
	service := new(mocks.UseCase)
	service.On("Providers", mock.Anything, "user-1").Return([]string{"generic", "github", "stripe"}, nil)

	router := newRouter(t, withService(service))

	r := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	r.Header.Set("Authorization", bearerToken(t, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"providers":["generic","github","stripe"]}`, w.Body.String())
}

func TestHealthIsOpen(t *testing.T) {
	router := newRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

type stubReplayer struct {
	outcome replay.Outcome
	err     error
	lastID  string
	opts    replay.Options
}

func (s *stubReplayer) Replay(_ context.Context, webhookID, _ string, opts replay.Options) (replay.Outcome, error) {
	s.lastID = webhookID
	s.opts = opts
	return s.outcome, s.err
}
