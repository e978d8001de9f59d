package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/tymbug/webhook"
	"github.com/marcelsud/tymbug/webhook/payload"
)

/* Handler is the provider-specific strategy for inbound webhooks
 * Each provider implements validation of its own wire conventions;
 * persistence is shared via the base handler
 */
type Handler interface {
	// Name identifies the handler; registration is deduplicated by name
	Name() string

	// CanHandle reports whether this handler accepts the given provider.
	// The generic handler always says yes, so it must be registered last.
	CanHandle(provider string) bool

	// Validate normalizes and checks an inbound request.
	// It reports problems through the Result, not an error: a malformed
	// request is an expected outcome, not a failure of the handler.
	Validate(r *http.Request, provider string) Result

	// Process persists a validated webhook and returns its ID
	Process(ctx context.Context, result Result, userID string) (string, error)
}

// Result is the outcome of validating an inbound webhook
type Result struct {
	Valid    bool
	Payload  payload.Payload
	Metadata map[string]any
	Err      string
}

/* base carries the behavior shared by every provider handler:
 * normalization, the base shape check, and persistence
 */
type base struct {
	repo webhook.Writer
}

// validate applies the provider-independent checks
func (b base) validate(r *http.Request, provider string) Result {
	p := payload.FromRequest(r, provider)

	if !p.IsObject() {
		return Result{
			Valid:   false,
			Payload: p,
			Err:     "invalid webhook format: body must be a JSON object",
		}
	}

	return Result{Valid: true, Payload: p}
}

// Process persists a validated webhook with the handler's own
// response status (200); replay outcomes are recorded separately
func (b base) Process(ctx context.Context, result Result, userID string) (string, error) {
	if !result.Valid {
		if result.Err != "" {
			return "", errors.New(result.Err)
		}
		return "", errors.New("invalid webhook")
	}

	wh := webhook.Webhook{
		ID:             uuid.New().String(),
		Provider:       result.Payload.Provider,
		Path:           result.Payload.Path,
		Method:         result.Payload.Method,
		Headers:        result.Payload.Headers,
		Body:           result.Payload.Body,
		ResponseStatus: http.StatusOK,
		UserID:         userID,
		ReceivedAt:     time.Now(),
	}

	id, err := b.repo.Store(ctx, wh)
	if err != nil {
		return "", fmt.Errorf("storing webhook: %w", err)
	}

	return id, nil
}
