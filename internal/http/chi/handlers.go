package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/marcelsud/tymbug/analyzer"
	"github.com/marcelsud/tymbug/auth"
	"github.com/marcelsud/tymbug/metrics"
	"github.com/marcelsud/tymbug/webhook"
	"github.com/marcelsud/tymbug/webhook/providers"
	"github.com/marcelsud/tymbug/webhook/replay"
)

// Replayer is the slice of the replay engine the HTTP layer needs.
type Replayer interface {
	Replay(ctx context.Context, webhookID, userID string, opts replay.Options) (replay.Outcome, error)
}

// Analyzer runs a best-effort model analysis over a stored webhook.
type Analyzer interface {
	Analyze(ctx context.Context, wh webhook.Webhook) analyzer.Result
}

// Deps carries everything the API routes need, wired once at startup.
type Deps struct {
	Webhooks webhook.UseCase
	Registry *providers.Registry
	Replayer Replayer
	Analyzer Analyzer
	Verifier auth.Verifier
	Metrics  *metrics.Recorder
}

// Handlers sets up the webhook API routes
func Handlers(ctx context.Context, deps Deps) *chi.Mux {
	logger := httplog.NewLogger("tymbug-api", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		// The test endpoint is a sink for replays; it must stay reachable
		// without credentials
		r.HandleFunc("/test-endpoint", testEndpoint())

		r.Group(func(r chi.Router) {
			r.Use(authenticate(deps.Verifier))

			r.Post("/webhooks/{provider}", postWebhook(deps.Registry, deps.Metrics).ServeHTTP)
			r.Post("/webhooks/{provider}/*", postWebhook(deps.Registry, deps.Metrics).ServeHTTP)
			r.Get("/webhooks", getWebhooks(deps.Webhooks).ServeHTTP)
			r.Get("/webhooks/{id}", getWebhook(deps.Webhooks).ServeHTTP)

			r.Post("/webhooks/{id}/replays", postReplay(deps.Replayer).ServeHTTP)
			r.Get("/webhooks/{id}/replays", getReplays(deps.Webhooks).ServeHTTP)
			r.Post("/replays/debug", postDebugReplay(deps.Replayer).ServeHTTP)

			r.Post("/webhooks/{id}/analysis", postAnalysis(deps.Webhooks, deps.Analyzer).ServeHTTP)

			r.Get("/providers", getProviders(deps.Webhooks).ServeHTTP)
		})
	})

	return r
}

type contextKey string

const userIDKey contextKey = "userID"

// authenticate resolves the bearer token (or access_token cookie) into
// a user id and stores it in the request context.
func authenticate(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := auth.UserID(r, verifier)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "authentication required", "")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, errorResponse{Error: message, Details: details})
}
