package chi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/tymbug/webhook"
)

// postAnalysis handles POST /v1/webhooks/{id}/analysis. Analysis is
// best-effort: when the completion service is unavailable an empty
// result with confidence 0 comes back, never an error.
func postAnalysis(webhookService webhook.UseCase, analyzerService Analyzer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if analyzerService == nil {
			respondError(w, http.StatusServiceUnavailable, "analysis is not configured", "")
			return
		}

		id := chi.URLParam(r, "id")

		wh, _, err := webhookService.Get(r.Context(), id, userFrom(r))
		if errors.Is(err, webhook.ErrNotFound) {
			respondError(w, http.StatusNotFound, "webhook not found", id)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "getting webhook", err.Error())
			return
		}

		respondJSON(w, http.StatusOK, analyzerService.Analyze(r.Context(), wh))
	})
}
