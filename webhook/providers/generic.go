package providers

import (
	"net/http"

	"github.com/marcelsud/tymbug/webhook"
)

/* GenericHandler captures webhooks from any provider without dedicated
 * support. It is the catch-all and must be registered after every
 * specific handler.
 */
type GenericHandler struct {
	base
}

// NewGenericHandler creates the catch-all handler
func NewGenericHandler(repo webhook.Writer) *GenericHandler {
	return &GenericHandler{base: base{repo: repo}}
}

// Name identifies the handler in the registry
func (h *GenericHandler) Name() string {
	return "generic"
}

// CanHandle accepts every provider
func (h *GenericHandler) CanHandle(provider string) bool {
	return true
}

// Validate applies only the base checks
func (h *GenericHandler) Validate(r *http.Request, provider string) Result {
	return h.base.validate(r, provider)
}
