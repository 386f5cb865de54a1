package credentials

import (
	"context"

	"github.com/kbukum/flowkit/logger"
)

// Defaults are the process-wide keys used when an owner has none.
type Defaults struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey      string `mapstructure:"openai_api_key"`
	TransloaditKey    string `mapstructure:"transloadit_key"`
	TransloaditSecret string `mapstructure:"transloadit_secret"`
}

func (d Defaults) key(provider Provider) string {
	switch provider {
	case ProviderGemini:
		return d.GeminiAPIKey
	case ProviderOpenAI:
		return d.OpenAIAPIKey
	case ProviderTransloadit:
		return d.TransloaditKey
	}
	return ""
}

// Resolver picks the key a caller's task runs with.
type Resolver struct {
	store    Store
	defaults Defaults
	log      *logger.Logger
}

// NewResolver creates a Resolver. store may be nil.
func NewResolver(store Store, defaults Defaults, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{store: store, defaults: defaults, log: log.WithComponent("credentials")}
}

// Lookup returns the caller's own key for provider, else the default.
// "" means no key is configured anywhere.
func (r *Resolver) Lookup(ctx context.Context, callerID string, provider Provider) string {
	if r.store != nil && callerID != "" {
		key, err := r.store.Key(ctx, callerID, provider)
		if err != nil {
			r.log.WithContext(ctx).Warn("Credential lookup failed, using default", logger.Fields(
				logger.FieldCallerID, callerID,
				"provider", string(provider),
				logger.FieldError, err.Error(),
			))
		} else if key != "" {
			return key
		}
	}
	return r.defaults.key(provider)
}

// TransloaditSecret returns the signing secret. Secrets are not stored
// per owner.
func (r *Resolver) TransloaditSecret() string {
	return r.defaults.TransloaditSecret
}

// Store exposes the backing store for the settings endpoints.
func (r *Resolver) Store() Store {
	return r.store
}
