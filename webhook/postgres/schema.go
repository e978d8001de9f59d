package postgres

import (
	"context"
	"fmt"
)

// schema creates the tables the repository needs. Kept as plain DDL:
// the deployment pipeline owns real migrations.
const schema = `
CREATE TABLE IF NOT EXISTS webhooks (
	id              TEXT PRIMARY KEY,
	provider        TEXT NOT NULL,
	path            TEXT NOT NULL,
	method          TEXT NOT NULL,
	headers         JSONB NOT NULL,
	body            JSONB NOT NULL,
	response_status INTEGER NOT NULL,
	user_id         TEXT NOT NULL,
	received_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS webhooks_user_received_idx
	ON webhooks (user_id, received_at DESC);

CREATE TABLE IF NOT EXISTS replays (
	id              TEXT PRIMARY KEY,
	original_id     TEXT NOT NULL REFERENCES webhooks (id),
	response_status INTEGER NOT NULL,
	user_id         TEXT NOT NULL,
	replayed_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS replays_original_idx
	ON replays (original_id, replayed_at DESC);
`

// EnsureSchema creates the webhook tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
