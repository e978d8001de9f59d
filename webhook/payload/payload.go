package payload

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

/* Payload is the canonical form of an inbound webhook request
 * Everything downstream (validation, persistence, replay, analysis)
 * works on this structure, never on the raw request
 */
type Payload struct {
	Headers  map[string]string `json:"headers"`
	Body     json.RawMessage   `json:"body"`
	Provider string            `json:"provider"`
	Path     string            `json:"path"`
	Method   string            `json:"method"`
}

// sensitiveHeaders are never captured or stored.
// Content-Length is recomputed on replay anyway.
var sensitiveHeaders = []string{"authorization", "content-length"}

/* FromRequest normalizes a raw request into a Payload
 * It is a pure transform over an already-received request and never fails:
 * a non-JSON body is wrapped as {"rawText": ...}, an unreadable body
 * becomes an empty object
 */
func FromRequest(r *http.Request, provider string) Payload {
	return Payload{
		Headers:  ExtractHeaders(r),
		Body:     ExtractBody(r),
		Provider: provider,
		Path:     r.URL.Path,
		Method:   r.Method,
	}
}

// ExtractHeaders copies the request headers, excluding sensitive ones
// by case-insensitive name. Multi-valued headers keep their first value.
func ExtractHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)
	for key, values := range r.Header {
		if isSensitive(key) {
			continue
		}
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}

/* ExtractBody reads and parses the request body
 * The body is restored on the request so later middleware or handlers
 * can read it again
 */
func ExtractBody(r *http.Request) json.RawMessage {
	if r.Body == nil {
		return json.RawMessage(`{}`)
	}

	raw, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(nil))
		return json.RawMessage(`{}`)
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}

	// Not JSON: wrap the raw text instead of rejecting it
	wrapped, err := json.Marshal(map[string]string{"rawText": string(raw)})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(wrapped)
}

// IsObject reports whether the payload body is a JSON object.
// Handlers use this as the base shape check before provider rules.
func (p Payload) IsObject() bool {
	trimmed := bytes.TrimSpace(p.Body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Header performs a case-insensitive lookup in the captured headers
func (p Payload) Header(name string) string {
	for key, value := range p.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func isSensitive(name string) bool {
	for _, h := range sensitiveHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}
