package providers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/marcelsud/tymbug/webhook"
)

const (
	githubProvider        = "github"
	githubEventHeader     = "X-GitHub-Event"
	githubDeliveryHeader  = "X-GitHub-Delivery"
	githubSignatureHeader = "X-Hub-Signature-256"
	signaturePrefix       = "sha256="
)

/* GitHubHandler validates GitHub webhook deliveries
 * Beyond the base checks it requires the GitHub event and delivery headers
 * and, when both a secret and a signature are present, verifies the
 * X-Hub-Signature-256 HMAC
 */
type GitHubHandler struct {
	base
	secret string
	// requireSignature rejects deliveries that arrive unsigned or when no
	// secret is configured, instead of silently skipping verification
	requireSignature bool
}

// NewGitHubHandler creates the GitHub handler. An empty secret disables
// signature verification unless requireSignature is set.
func NewGitHubHandler(repo webhook.Writer, secret string, requireSignature bool) *GitHubHandler {
	return &GitHubHandler{
		base:             base{repo: repo},
		secret:           secret,
		requireSignature: requireSignature,
	}
}

// Name identifies the handler in the registry
func (h *GitHubHandler) Name() string {
	return "github"
}

// CanHandle accepts only the github provider
func (h *GitHubHandler) CanHandle(provider string) bool {
	return strings.EqualFold(provider, githubProvider)
}

// Validate applies the base checks plus GitHub's wire conventions
func (h *GitHubHandler) Validate(r *http.Request, provider string) Result {
	result := h.base.validate(r, provider)
	if !result.Valid {
		return result
	}

	event := result.Payload.Header(githubEventHeader)
	delivery := result.Payload.Header(githubDeliveryHeader)
	if event == "" || delivery == "" {
		result.Valid = false
		result.Err = "missing required GitHub webhook headers (x-github-event, x-github-delivery)"
		return result
	}

	signature := result.Payload.Header(githubSignatureHeader)

	if h.requireSignature && (h.secret == "" || signature == "") {
		result.Valid = false
		result.Err = "GitHub webhook signature required but not provided"
		return result
	}

	verified := false
	if h.secret != "" && signature != "" {
		if !h.verifySignature(result.Payload.Body, signature) {
			result.Valid = false
			result.Err = "GitHub webhook signature validation failed"
			return result
		}
		verified = true
	}

	result.Metadata = map[string]any{
		"event":              event,
		"delivery":           delivery,
		"signature_verified": verified,
	}
	return result
}

// verifySignature checks an HMAC-SHA256 over the JSON-serialized body
// against the sha256=<hex> value from the signature header
func (h *GitHubHandler) verifySignature(body json.RawMessage, signature string) bool {
	expected, err := SignBody(h.secret, body)
	if err != nil {
		return false
	}
	// Constant-time comparison to prevent timing attacks
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignBody computes the GitHub-style signature value for a JSON body:
// sha256= followed by the hex HMAC-SHA256 of the compact serialization.
// Exported so tests and senders can produce matching signatures.
func SignBody(secret string, body json.RawMessage) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(compact.Bytes())
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil)), nil
}
