package webhook

import (
	"encoding/json"
	"time"
)

/* Webhook represents a captured inbound callback
 * Uses value semantics as it represents data, not behavior
 * Records are immutable after creation and owned by exactly one user
 */
type Webhook struct {
	ID       string
	Provider string
	Path     string
	Method   string
	// Headers as received, minus sensitive entries stripped at capture time
	Headers map[string]string
	Body    json.RawMessage
	// ResponseStatus is the status this service answered the sender with,
	// not the result of any later replay
	ResponseStatus int
	UserID         string
	ReceivedAt     time.Time
	// ReplayCount annotates listings; it is not stored on the record itself
	ReplayCount int
}

/* Replay represents one resend of a captured webhook
 * One record per replay invocation: retries inside an invocation collapse
 * into the final outcome
 */
type Replay struct {
	ID             string
	OriginalID     string
	ResponseStatus int
	UserID         string
	ReplayedAt     time.Time
}
