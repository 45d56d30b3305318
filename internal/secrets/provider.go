package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Entry is one fetched secret, already translated to its local
// hierarchical key.
type Entry struct {
	Key    string
	Value  string
	Source string // provider name, for observability
}

// Provider defines the interface for interacting with different secret
// backends.
type Provider interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// IsEnabled checks if this specific provider is configured and enabled.
	IsEnabled() bool

	// Fetch retrieves all secrets this provider is configured to expose,
	// with remote names already translated to local hierarchical keys.
	Fetch(ctx context.Context) ([]Entry, error)
}

// Load fetches every secret from the provider and flattens the result into
// a key/value map. Two remote keys translating to the same local key abort
// the load; so does any fetch failure, since serving with a partial secret
// set is worse than not starting.
func Load(ctx context.Context, p Provider, log *zap.Logger) (map[string]string, error) {
	if p == nil || !p.IsEnabled() {
		return nil, fmt.Errorf("secret provider is not enabled or not initialized")
	}

	entries, err := p.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading secrets from %s: %w", p.Name(), err)
	}

	values := make(map[string]string, len(entries))
	for _, e := range entries {
		if _, exists := values[e.Key]; exists {
			return nil, fmt.Errorf("%w: two remote keys translate to local key %q",
				ErrKeyTranslationAmbiguous, e.Key)
		}
		values[e.Key] = e.Value
	}

	log.Info("Secrets loaded",
		zap.String("provider", p.Name()),
		zap.Int("count", len(values)),
	)
	return values, nil
}
