package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/tymbug/auth"
	"github.com/marcelsud/tymbug/webhook"
	"github.com/marcelsud/tymbug/webhook/replay"
)

// debugReplayRequest carries per-call overrides for a debug replay
type debugReplayRequest struct {
	WebhookID string            `json:"webhookId"`
	TargetURL string            `json:"targetUrl,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
}

type debugReplayResponse struct {
	Success         bool              `json:"success"`
	ReplayID        string            `json:"replayId"`
	TargetURL       string            `json:"targetUrl"`
	Attempts        int               `json:"attempts"`
	ResponseStatus  int               `json:"responseStatus"`
	ResponseBody    json.RawMessage   `json:"responseBody"`
	ResponseHeaders map[string]string `json:"responseHeaders"`
}

// requestScheme reports how the caller reached us, honoring the proxy header
func requestScheme(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		return forwarded
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func callerOptions(r *http.Request) replay.Options {
	opts := replay.Options{
		RequestScheme: requestScheme(r),
		RequestHost:   r.Host,
	}
	if token, ok := auth.FromRequest(r); ok {
		opts.BearerToken = token
	}
	return opts
}

func replayError(w http.ResponseWriter, webhookID string, err error) {
	switch {
	case errors.Is(err, webhook.ErrNotFound):
		respondError(w, http.StatusNotFound, "webhook not found", webhookID)
	case errors.Is(err, replay.ErrExhausted):
		respondError(w, http.StatusInternalServerError, "replay failed", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "replaying webhook", err.Error())
	}
}

// postReplay handles POST /v1/webhooks/{id}/replays
func postReplay(replayer Replayer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		outcome, err := replayer.Replay(r.Context(), id, userFrom(r), callerOptions(r))
		if err != nil {
			replayError(w, id, err)
			return
		}

		respondJSON(w, http.StatusOK, struct {
			Success        bool   `json:"success"`
			ReplayID       string `json:"replayId"`
			TargetURL      string `json:"targetUrl"`
			Attempts       int    `json:"attempts"`
			ResponseStatus int    `json:"responseStatus"`
		}{true, outcome.Replay.ID, outcome.TargetURL, outcome.Attempts, outcome.ResponseStatus})
	})
}

// postDebugReplay handles POST /v1/replays/debug
func postDebugReplay(replayer Replayer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req debugReplayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		if req.WebhookID == "" {
			respondError(w, http.StatusBadRequest, "webhookId is required", "")
			return
		}

		opts := callerOptions(r)
		opts.TargetURL = req.TargetURL
		opts.Headers = req.Headers
		opts.Body = req.Body

		outcome, err := replayer.Replay(r.Context(), req.WebhookID, userFrom(r), opts)
		if err != nil {
			replayError(w, req.WebhookID, err)
			return
		}

		respondJSON(w, http.StatusOK, debugReplayResponse{
			Success:         true,
			ReplayID:        outcome.Replay.ID,
			TargetURL:       outcome.TargetURL,
			Attempts:        outcome.Attempts,
			ResponseStatus:  outcome.ResponseStatus,
			ResponseBody:    outcome.ResponseBody,
			ResponseHeaders: outcome.ResponseHeaders,
		})
	})
}

// getReplays handles GET /v1/webhooks/{id}/replays
func getReplays(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		_, replays, err := webhookService.Get(r.Context(), id, userFrom(r))
		if errors.Is(err, webhook.ErrNotFound) {
			respondError(w, http.StatusNotFound, "webhook not found", id)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("listing replays for %s", id), err.Error())
			return
		}

		respondJSON(w, http.StatusOK, struct {
			Replays []replayResponse `json:"replays"`
		}{toReplayResponses(replays)})
	})
}
