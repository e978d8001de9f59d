package webhook

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a webhook or replay does not exist,
// or exists but belongs to another user.
var ErrNotFound = errors.New("webhook not found")

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 * Written for users of the API, not just for testing
 */

// Reader provides read operations for captured webhooks
type Reader interface {
	/* Context is always the first parameter in functions that do I/O
	 * This allows for cancellation, timeouts, and shared values
	 */
	Get(ctx context.Context, id string) (Webhook, error)
	/* List returns the user's webhooks ordered by ReceivedAt desc,
	 * each annotated with its replay count
	 */
	List(ctx context.Context, userID string, limit int) ([]Webhook, error)
	// ListProviders returns the distinct providers the user has received from
	ListProviders(ctx context.Context, userID string) ([]string, error)
}

// Writer provides write operations for captured webhooks
type Writer interface {
	// Store persists a webhook and returns its ID
	Store(ctx context.Context, wh Webhook) (string, error)
}

// ReplayReader provides read operations for replay records
type ReplayReader interface {
	// ListReplays returns replays of a webhook ordered by ReplayedAt desc
	ListReplays(ctx context.Context, webhookID string) ([]Replay, error)
}

// ReplayWriter provides write operations for replay records
type ReplayWriter interface {
	// StoreReplay persists the outcome of a replay and returns its ID
	StoreReplay(ctx context.Context, rp Replay) (string, error)
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Repository interface {
	Reader
	Writer
	ReplayReader
	ReplayWriter
	Close(ctx context.Context) error
}
