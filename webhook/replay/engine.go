package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/tymbug/metrics"
	"github.com/marcelsud/tymbug/webhook"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts bounds the retry loop, counting the first attempt
	DefaultMaxAttempts = 3
	// DefaultBackoff is the base delay; attempt n waits n+1 times this
	DefaultBackoff = time.Second
	// DefaultTimeout bounds each outbound attempt, separate from the
	// retry policy
	DefaultTimeout = 30 * time.Second
)

// ErrExhausted reports that every attempt failed at the transport level.
// HTTP error statuses from the target are responses, not failures, and
// never produce this error.
var ErrExhausted = errors.New("replay failed: all attempts exhausted")

// headers never forwarded on replay; they describe the original hop,
// not the new one
var hopHeaders = []string{"Content-Length", "Host", "Connection", "Transfer-Encoding"}

// Store is the slice of the repository the engine needs
type Store interface {
	Get(ctx context.Context, id string) (webhook.Webhook, error)
	StoreReplay(ctx context.Context, rp webhook.Replay) (string, error)
}

/* Engine resends captured webhooks
 * Retries are an explicit bounded loop: attempt n+1 never starts before
 * attempt n's outcome, including its backoff delay, is known
 */
type Engine struct {
	Repo    Store
	Client  *http.Client
	BaseURL string

	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration

	Log     zerolog.Logger
	Metrics *metrics.Recorder
}

// NewEngine creates a replay engine with the default retry policy
func NewEngine(repo Store, baseURL string, log zerolog.Logger) *Engine {
	return &Engine{
		Repo:        repo,
		Client:      &http.Client{},
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
		Timeout:     DefaultTimeout,
		Log:         log,
	}
}

// Options tunes a single replay invocation
type Options struct {
	// TargetURL overrides the default target (base URL + stored path).
	// A relative value is resolved against RequestScheme/RequestHost.
	TargetURL string

	// Headers replaces the stored headers (debug replay)
	Headers map[string]string

	// Body replaces the stored body (debug replay)
	Body json.RawMessage

	// BearerToken, when set, overrides the outbound Authorization header
	// so the replay is authenticated as the caller
	BearerToken string

	// Scheme and host of the request that triggered the replay, used to
	// resolve relative target overrides
	RequestScheme string
	RequestHost   string
}

// Outcome is the terminal result of a replay invocation
type Outcome struct {
	Replay          webhook.Replay
	TargetURL       string
	Attempts        int
	ResponseStatus  int
	ResponseBody    json.RawMessage
	ResponseHeaders map[string]string
}

/* Replay resends a stored webhook and records the outcome
 * Any received HTTP response, whatever its status, is terminal and
 * produces exactly one replay record. Only transport errors retry.
 */
func (e *Engine) Replay(ctx context.Context, webhookID, userID string, opts Options) (Outcome, error) {
	wh, err := e.Repo.Get(ctx, webhookID)
	if err != nil {
		return Outcome{}, fmt.Errorf("getting webhook: %w", err)
	}
	if wh.UserID != userID {
		return Outcome{}, webhook.ErrNotFound
	}

	target := e.resolveTarget(wh, opts)
	headers := outboundHeaders(wh, opts)
	body := wh.Body
	if opts.Body != nil {
		body = opts.Body
	}

	var lastErr error
	for attempt := 0; attempt < e.MaxAttempts; attempt++ {
		if attempt > 0 {
			// Backoff grows with the attempt number: 1x, 2x, ...
			wait := e.Backoff * time.Duration(attempt)
			e.Log.Warn().
				Str("webhook_id", wh.ID).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Err(lastErr).
				Msg("replay attempt failed, retrying")
			if err := sleep(ctx, wait); err != nil {
				return Outcome{Attempts: attempt}, err
			}
		}

		e.Metrics.ReplayAttempt(ctx)

		resp, err := e.send(ctx, wh.Method, target, headers, body)
		if err != nil {
			lastErr = err
			continue
		}

		outcome, err := e.record(ctx, wh, userID, target, attempt+1, resp)
		if err != nil {
			return Outcome{}, err
		}
		e.Metrics.ReplayCompleted(ctx, "delivered")
		return outcome, nil
	}

	e.Metrics.ReplayCompleted(ctx, "failed")
	return Outcome{Attempts: e.MaxAttempts}, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, e.MaxAttempts, lastErr)
}

// send performs one outbound attempt under the per-attempt timeout
func (e *Engine) send(ctx context.Context, method, target string, headers map[string]string, body json.RawMessage) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building replay request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, err
	}

	// Drain under the attempt timeout so the response survives cancel()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		raw = nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	return resp, nil
}

// record persists the replay outcome and assembles the caller's view
func (e *Engine) record(ctx context.Context, wh webhook.Webhook, userID, target string, attempts int, resp *http.Response) (Outcome, error) {
	defer resp.Body.Close()

	rp := webhook.Replay{
		ID:             uuid.New().String(),
		OriginalID:     wh.ID,
		ResponseStatus: resp.StatusCode,
		UserID:         userID,
		ReplayedAt:     time.Now(),
	}

	id, err := e.Repo.StoreReplay(ctx, rp)
	if err != nil {
		return Outcome{}, fmt.Errorf("storing replay: %w", err)
	}
	rp.ID = id

	raw, _ := io.ReadAll(resp.Body)

	respHeaders := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) > 0 {
			respHeaders[key] = values[0]
		}
	}

	e.Log.Info().
		Str("webhook_id", wh.ID).
		Str("replay_id", rp.ID).
		Str("target", target).
		Int("attempts", attempts).
		Int("status", resp.StatusCode).
		Msg("webhook replayed")

	return Outcome{
		Replay:          rp,
		TargetURL:       target,
		Attempts:        attempts,
		ResponseStatus:  resp.StatusCode,
		ResponseBody:    wrapResponseBody(raw),
		ResponseHeaders: respHeaders,
	}, nil
}

// resolveTarget picks the absolute URL to resend to
func (e *Engine) resolveTarget(wh webhook.Webhook, opts Options) string {
	target := opts.TargetURL
	if target == "" {
		return e.BaseURL + wh.Path
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if strings.HasPrefix(target, "/") && opts.RequestHost != "" {
		scheme := opts.RequestScheme
		if scheme == "" {
			scheme = "https"
		}
		return scheme + "://" + opts.RequestHost + target
	}
	return e.BaseURL + "/" + strings.TrimPrefix(target, "/")
}

// outboundHeaders builds the merged header set for the resend
func outboundHeaders(wh webhook.Webhook, opts Options) map[string]string {
	source := wh.Headers
	if opts.Headers != nil {
		source = opts.Headers
	}

	headers := make(map[string]string, len(source)+2)
	for key, value := range source {
		if isHopHeader(key) {
			continue
		}
		headers[key] = value
	}

	if !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = "application/json"
	}
	if opts.BearerToken != "" {
		deleteHeader(headers, "Authorization")
		headers["Authorization"] = "Bearer " + opts.BearerToken
	}

	return headers
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

func deleteHeader(headers map[string]string, name string) {
	for key := range headers {
		if strings.EqualFold(key, name) {
			delete(headers, key)
		}
	}
}

// wrapResponseBody keeps JSON responses as-is and wraps anything else
func wrapResponseBody(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`null`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, err := json.Marshal(map[string]string{"rawText": string(raw)})
	if err != nil {
		return json.RawMessage(`null`)
	}
	return json.RawMessage(wrapped)
}

// sleep waits the backoff delay unless the context is cancelled first
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
