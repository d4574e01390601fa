// Package configuration supplies the issuer metadata and keys that tokens are
// validated against, and keeps a last-known-good copy to fall back on when a
// key rotation leaves the current configuration unable to validate a token.
package configuration

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Configuration is the issuer metadata used during validation. Managers hand
// out pointers; two configurations are the same when the pointers are equal.
type Configuration struct {
	Issuer              string
	JWKSURI             string
	SigningKeys         []jwk.Key
	TokenDecryptionKeys []jwk.Key

	// MaxAge is how long the source allowed the configuration to be cached.
	// Zero means no hint was given.
	MaxAge time.Duration
}

// Manager hands out the current configuration and tracks a last-known-good
// one. Implementations must be safe for concurrent use.
type Manager interface {
	// GetConfiguration returns the current configuration, fetching it when
	// it is missing or stale.
	GetConfiguration(ctx context.Context) (*Configuration, error)

	// RequestRefresh asks for the next GetConfiguration to fetch again.
	RequestRefresh()

	LastKnownGoodConfiguration() *Configuration
	SetLastKnownGoodConfiguration(c *Configuration)

	// UseLastKnownGood reports whether the last-known-good configuration
	// may be used as a fallback.
	UseLastKnownGood() bool
}

// Retriever fetches a fresh configuration.
type Retriever interface {
	Retrieve(ctx context.Context) (*Configuration, error)
}

// RetrieverFunc adapts a function to a Retriever.
type RetrieverFunc func(ctx context.Context) (*Configuration, error)

// Retrieve calls f.
func (f RetrieverFunc) Retrieve(ctx context.Context) (*Configuration, error) {
	return f(ctx)
}
