package providers

/* Registry holds the ordered list of provider handlers
 * It is built once at startup and passed to request handlers explicitly;
 * after construction it is read-only, so no locking is needed
 */
type Registry struct {
	handlers []Handler
}

// NewRegistry creates a registry from handlers in dispatch order.
// Specific handlers must come before the generic catch-all.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register appends a handler. Registering a handler with an already
// registered name is a no-op, which makes initialization idempotent.
func (r *Registry) Register(h Handler) {
	for _, existing := range r.handlers {
		if existing.Name() == h.Name() {
			return
		}
	}
	r.handlers = append(r.handlers, h)
}

// HandlerFor returns the first handler, in registration order, that can
// handle the provider. Returns nil when none matches.
func (r *Registry) HandlerFor(provider string) Handler {
	for _, h := range r.handlers {
		if h.CanHandle(provider) {
			return h
		}
	}
	return nil
}

// Names lists the registered handler names in dispatch order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		names = append(names, h.Name())
	}
	return names
}
