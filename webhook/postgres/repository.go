package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/tymbug/webhook"
)

/* PostgreSQL implementation of webhook.Repository
 * Headers and bodies are stored as jsonb; replay counts come from a
 * LEFT JOIN at listing time, keeping webhook rows immutable
 */

// DB is the slice of pgxpool.Pool the repository uses.
// pgxmock satisfies it, so unit tests run without a server.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db   DB
	pool *pgxpool.Pool
}

// NewRepository creates a repository backed by a pgx connection pool
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Repository{db: pool, pool: pool}, nil
}

// NewRepositoryWithDB creates a repository over an existing connection
// (used by tests)
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

// Store persists a captured webhook
func (r *Repository) Store(ctx context.Context, wh webhook.Webhook) (string, error) {
	headers, err := json.Marshal(wh.Headers)
	if err != nil {
		return "", fmt.Errorf("marshaling headers: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO webhooks (id, provider, path, method, headers, body, response_status, user_id, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		wh.ID, wh.Provider, wh.Path, wh.Method, headers, []byte(wh.Body),
		wh.ResponseStatus, wh.UserID, wh.ReceivedAt,
	)
	if err != nil {
		return "", fmt.Errorf("inserting webhook: %w", err)
	}

	return wh.ID, nil
}

// Get retrieves a webhook by ID
func (r *Repository) Get(ctx context.Context, id string) (webhook.Webhook, error) {
	var (
		wh      webhook.Webhook
		headers []byte
		body    []byte
	)

	err := r.db.QueryRow(ctx, `
		SELECT id, provider, path, method, headers, body, response_status, user_id, received_at
		FROM webhooks
		WHERE id = $1`, id,
	).Scan(&wh.ID, &wh.Provider, &wh.Path, &wh.Method, &headers, &body,
		&wh.ResponseStatus, &wh.UserID, &wh.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return webhook.Webhook{}, webhook.ErrNotFound
	}
	if err != nil {
		return webhook.Webhook{}, fmt.Errorf("getting webhook: %w", err)
	}

	if err := json.Unmarshal(headers, &wh.Headers); err != nil {
		return webhook.Webhook{}, fmt.Errorf("unmarshaling headers: %w", err)
	}
	wh.Body = json.RawMessage(body)

	return wh, nil
}

// List returns the user's webhooks, newest first, with replay counts
func (r *Repository) List(ctx context.Context, userID string, limit int) ([]webhook.Webhook, error) {
	rows, err := r.db.Query(ctx, `
		SELECT w.id, w.provider, w.path, w.method, w.headers, w.body,
		       w.response_status, w.user_id, w.received_at, COUNT(rp.id) AS replay_count
		FROM webhooks w
		LEFT JOIN replays rp ON rp.original_id = w.id
		WHERE w.user_id = $1
		GROUP BY w.id
		ORDER BY w.received_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []webhook.Webhook
	for rows.Next() {
		var (
			wh      webhook.Webhook
			headers []byte
			body    []byte
		)
		err := rows.Scan(&wh.ID, &wh.Provider, &wh.Path, &wh.Method, &headers, &body,
			&wh.ResponseStatus, &wh.UserID, &wh.ReceivedAt, &wh.ReplayCount)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		if err := json.Unmarshal(headers, &wh.Headers); err != nil {
			return nil, fmt.Errorf("unmarshaling headers: %w", err)
		}
		wh.Body = json.RawMessage(body)
		webhooks = append(webhooks, wh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhooks: %w", err)
	}

	return webhooks, nil
}

// ListProviders returns the distinct providers the user has received from
func (r *Repository) ListProviders(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT provider FROM webhooks WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating providers: %w", err)
	}

	return providers, nil
}

// StoreReplay persists a replay outcome
func (r *Repository) StoreReplay(ctx context.Context, rp webhook.Replay) (string, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO replays (id, original_id, response_status, user_id, replayed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rp.ID, rp.OriginalID, rp.ResponseStatus, rp.UserID, rp.ReplayedAt,
	)
	if err != nil {
		return "", fmt.Errorf("inserting replay: %w", err)
	}

	return rp.ID, nil
}

// ListReplays returns a webhook's replays, newest first
func (r *Repository) ListReplays(ctx context.Context, webhookID string) ([]webhook.Replay, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, original_id, response_status, user_id, replayed_at
		FROM replays
		WHERE original_id = $1
		ORDER BY replayed_at DESC`, webhookID)
	if err != nil {
		return nil, fmt.Errorf("listing replays: %w", err)
	}
	defer rows.Close()

	var replays []webhook.Replay
	for rows.Next() {
		var rp webhook.Replay
		err := rows.Scan(&rp.ID, &rp.OriginalID, &rp.ResponseStatus, &rp.UserID, &rp.ReplayedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning replay: %w", err)
		}
		replays = append(replays, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating replays: %w", err)
	}

	return replays, nil
}

// Close releases the connection pool
func (r *Repository) Close(ctx context.Context) error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
