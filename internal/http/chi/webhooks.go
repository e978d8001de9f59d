package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/tymbug/metrics"
	"github.com/marcelsud/tymbug/webhook"
	"github.com/marcelsud/tymbug/webhook/providers"
)

/* HTTP layer DTOs for the webhook API
 * Separate from domain entities to avoid leaking internal structure
 */

// ingestResponse is returned when a webhook is captured
type ingestResponse struct {
	Success  bool           `json:"success"`
	ID       string         `json:"id"`
	Provider string         `json:"provider"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// webhookResponse represents a captured webhook in the API
type webhookResponse struct {
	ID             string            `json:"id"`
	Provider       string            `json:"provider"`
	Path           string            `json:"path"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	Body           json.RawMessage   `json:"body"`
	ResponseStatus int               `json:"responseStatus"`
	ReceivedAt     time.Time         `json:"receivedAt"`
	ReplayCount    int               `json:"replayCount"`
}

type replayResponse struct {
	ID             string    `json:"id"`
	OriginalID     string    `json:"originalId"`
	ResponseStatus int       `json:"responseStatus"`
	ReplayedAt     time.Time `json:"replayedAt"`
}

func toWebhookResponse(wh webhook.Webhook) webhookResponse {
	return webhookResponse{
		ID:             wh.ID,
		Provider:       wh.Provider,
		Path:           wh.Path,
		Method:         wh.Method,
		Headers:        wh.Headers,
		Body:           wh.Body,
		ResponseStatus: wh.ResponseStatus,
		ReceivedAt:     wh.ReceivedAt,
		ReplayCount:    wh.ReplayCount,
	}
}

func toReplayResponses(replays []webhook.Replay) []replayResponse {
	result := make([]replayResponse, 0, len(replays))
	for _, rp := range replays {
		result = append(result, replayResponse{
			ID:             rp.ID,
			OriginalID:     rp.OriginalID,
			ResponseStatus: rp.ResponseStatus,
			ReplayedAt:     rp.ReplayedAt,
		})
	}
	return result
}

// postWebhook handles POST /v1/webhooks/{provider} and any sub-path
func postWebhook(registry *providers.Registry, rec *metrics.Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		if provider == "" {
			respondError(w, http.StatusBadRequest, "provider is required", "")
			return
		}

		handler := registry.HandlerFor(provider)
		if handler == nil {
			respondError(w, http.StatusBadRequest, "unsupported provider", provider)
			return
		}

		result := handler.Validate(r, provider)
		if !result.Valid {
			rec.WebhookRejected(r.Context(), provider)
			respondError(w, http.StatusBadRequest, "invalid webhook", result.Err)
			return
		}

		id, err := handler.Process(r.Context(), result, userFrom(r))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "storing webhook", err.Error())
			return
		}
		rec.WebhookReceived(r.Context(), provider)

		respondJSON(w, http.StatusOK, ingestResponse{
			Success:  true,
			ID:       id,
			Provider: handler.Name(),
			Metadata: result.Metadata,
		})
	})
}

// getWebhooks handles GET /v1/webhooks
func getWebhooks(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				respondError(w, http.StatusBadRequest, "invalid limit", raw)
				return
			}
			limit = parsed
		}

		all, err := webhookService.List(r.Context(), userFrom(r), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "listing webhooks", err.Error())
			return
		}

		result := make([]webhookResponse, 0, len(all))
		for _, wh := range all {
			result = append(result, toWebhookResponse(wh))
		}
		respondJSON(w, http.StatusOK, result)
	})
}

// getWebhook handles GET /v1/webhooks/{id}
func getWebhook(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		wh, replays, err := webhookService.Get(r.Context(), id, userFrom(r))
		if errors.Is(err, webhook.ErrNotFound) {
			respondError(w, http.StatusNotFound, "webhook not found", id)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "getting webhook", err.Error())
			return
		}

		respondJSON(w, http.StatusOK, struct {
			webhookResponse
			Replays []replayResponse `json:"replays"`
		}{toWebhookResponse(wh), toReplayResponses(replays)})
	})
}

// getProviders handles GET /v1/providers
func getProviders(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		names, err := webhookService.Providers(r.Context(), userFrom(r))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "listing providers", err.Error())
			return
		}
		respondJSON(w, http.StatusOK, struct {
			Providers []string `json:"providers"`
		}{names})
	})
}
