package llm

// Router picks a provider by model name. The first provider is the
// fallback for models no provider claims.
type Router struct {
	providers []Provider
}

// NewRouter creates a router over providers in priority order.
func NewRouter(providers ...Provider) *Router {
	return &Router{providers: providers}
}

// Route returns the provider serving model, or nil if the router is empty.
func (r *Router) Route(model string) Provider {
	for _, p := range r.providers {
		if p.Handles(model) {
			return p
		}
	}
	if len(r.providers) == 0 {
		return nil
	}
	return r.providers[0]
}

// Names lists the configured providers.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}
