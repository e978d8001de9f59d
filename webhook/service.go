package webhook

import (
	"context"
	"fmt"
	"sort"
)

/* Service represents the read side of the dashboard API
 * Uses pointer semantics as it's an API, not data
 * Ingestion goes through the provider handlers, which write via Writer;
 * replays go through the replay engine
 */

// KnownProviders are the providers with dedicated handlers.
// Anything else is captured by the generic catch-all.
var KnownProviders = []string{"github", "generic"}

// UseCase defines the query operations for captured webhooks
type UseCase interface {
	Get(ctx context.Context, id, userID string) (Webhook, []Replay, error)
	List(ctx context.Context, userID string, limit int) ([]Webhook, error)
	Providers(ctx context.Context, userID string) ([]string, error)
}

type Service struct {
	Repo Repository
}

// NewService creates a new webhook service with dependency injection
func NewService(repo Repository) *Service {
	return &Service{
		Repo: repo,
	}
}

// Get returns a webhook the user owns, together with its replay history.
// A webhook owned by someone else is reported as not found.
func (s *Service) Get(ctx context.Context, id, userID string) (Webhook, []Replay, error) {
	wh, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Webhook{}, nil, fmt.Errorf("getting webhook: %w", err)
	}
	if wh.UserID != userID {
		return Webhook{}, nil, ErrNotFound
	}

	replays, err := s.Repo.ListReplays(ctx, id)
	if err != nil {
		return Webhook{}, nil, fmt.Errorf("listing replays: %w", err)
	}

	return wh, replays, nil
}

// List returns the user's most recent webhooks with replay counts
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Webhook, error) {
	if limit <= 0 {
		limit = 50
	}

	webhooks, err := s.Repo.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing webhooks: %w", err)
	}

	return webhooks, nil
}

// Providers returns the known providers merged with the providers
// the user has actually received webhooks from
func (s *Service) Providers(ctx context.Context, userID string) ([]string, error) {
	used, err := s.Repo.ListProviders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}

	seen := make(map[string]bool)
	merged := make([]string, 0, len(KnownProviders)+len(used))
	for _, p := range KnownProviders {
		seen[p] = true
		merged = append(merged, p)
	}
	extra := make([]string, 0, len(used))
	for _, p := range used {
		if !seen[p] {
			seen[p] = true
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)

	return append(merged, extra...), nil
}
