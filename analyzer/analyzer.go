/* Package analyzer inspects captured webhooks with a chat completion
 * model and reports patterns, anomalies, security risks, schema
 * improvements and potential issues. Analysis is best-effort: when the
 * primary request fails a simplified fallback prompt is tried, and when
 * that fails too an empty result is returned rather than an error.
 */
package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/tymbug/metrics"
	"github.com/marcelsud/tymbug/webhook"
)

// CompletionClient is the slice of a chat completion API the analyzer
// needs. The production implementation wraps the OpenAI client.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float32
	MaxTokens    int
}

type Analyzer struct {
	client  CompletionClient
	model   string
	cache   *resultCache
	log     zerolog.Logger
	metrics *metrics.Recorder
}

type Option func(*Analyzer)

func WithCache(ttl time.Duration, capacity int) Option {
	return func(a *Analyzer) {
		a.cache = newResultCache(ttl, capacity)
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.log = log
	}
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(a *Analyzer) {
		a.metrics = rec
	}
}

func New(client CompletionClient, model string, opts ...Option) *Analyzer {
	a := &Analyzer{
		client: client,
		model:  model,
		cache:  newResultCache(DefaultCacheTTL, DefaultCacheSize),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

/* Analyze runs the model over a captured webhook. Results are cached by
 * webhook fingerprint; a repeated call for an identical webhook within
 * the cache TTL returns without touching the model. Analyze never
 * returns an error: failed analyses degrade to the fallback prompt,
 * then to an empty result.
 */
func (a *Analyzer) Analyze(ctx context.Context, wh webhook.Webhook) Result {
	key := cacheKey(wh.Provider, wh.Method, wh.Path, wh.Headers, wh.Body, a.model)
	if cached, ok := a.cache.Get(key); ok {
		a.log.Debug().Str("webhook_id", wh.ID).Msg("analysis served from cache")
		a.metrics.AnalysisCacheLookup(ctx, true)
		return cached
	}
	a.metrics.AnalysisCacheLookup(ctx, false)

	started := time.Now()

	content, err := a.client.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildAnalysisPrompt(wh),
		Model:        a.model,
		Temperature:  0.1,
		MaxTokens:    1000,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("webhook_id", wh.ID).Msg("analysis request failed, trying fallback")
		return a.fallback(ctx, wh, started)
	}

	result, ok := parseResponse(content)
	if !ok {
		a.log.Warn().Str("webhook_id", wh.ID).Msg("analysis response unparsable, trying fallback")
		return a.fallback(ctx, wh, started)
	}
	result.ProcessingTimeMs = time.Since(started).Milliseconds()

	a.cache.Set(key, result)
	return result
}

// fallback retries with a simplified prompt. A second failure yields an
// empty result; degraded results are never cached.
func (a *Analyzer) fallback(ctx context.Context, wh webhook.Webhook, started time.Time) Result {
	a.metrics.AnalysisFallback(ctx)

	content, err := a.client.Complete(ctx, CompletionRequest{
		UserPrompt:  buildFallbackPrompt(wh),
		Model:       a.model,
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		a.log.Error().Err(err).Str("webhook_id", wh.ID).Msg("fallback analysis failed")
		return emptyResult()
	}

	result, ok := parseResponse(content)
	if !ok {
		a.log.Error().Str("webhook_id", wh.ID).Msg("fallback response unparsable")
		return emptyResult()
	}
	result.ProcessingTimeMs = time.Since(started).Milliseconds()
	return result
}
