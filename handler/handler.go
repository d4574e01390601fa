// Package handler reads, validates and creates JSON Web Tokens.
//
// A TokenHandler validates compact JWS and JWE tokens against
// ValidationParameters. Keys and the expected issuer come from the parameters,
// from a configuration.Manager, or both. When a token fails because its key
// or issuer is unknown, the handler retries against the manager's
// last-known-good configuration and then against a freshly fetched one, so
// that key rotation does not reject valid tokens.
//
// ValidateToken never returns an error: the outcome, including the failure,
// is carried by the returned ValidationResult.
package handler

import (
	"errors"
	"fmt"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/identitymodel/go-jsonwebtoken/compression"
	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
	"github.com/identitymodel/go-jsonwebtoken/jwt"
	"github.com/identitymodel/go-jsonwebtoken/logging"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

const (
	// DefaultMaximumTokenSize is the longest compact token accepted, in bytes.
	DefaultMaximumTokenSize = 250 * 1024

	// DefaultTokenLifetime is the lifetime given to created tokens without
	// an expiry.
	DefaultTokenLifetime = 60 * time.Minute
)

// TokenHandler reads, validates and creates tokens. It is safe for
// concurrent use.
type TokenHandler struct {
	maximumTokenSize int
	setDefaultTimes  bool
	tokenLifetime    time.Duration

	logger  logging.Logger
	tracer  oteltrace.Tracer
	metrics Metrics
	now     func() time.Time

	cryptoFactory      cryptoprovider.ProviderFactory
	compressionFactory compression.ProviderFactory
}

// Option is how options for the TokenHandler are set up.
type Option func(*TokenHandler) error

// New returns a TokenHandler.
func New(opts ...Option) (*TokenHandler, error) {
	h := &TokenHandler{
		maximumTokenSize:   DefaultMaximumTokenSize,
		setDefaultTimes:    true,
		tokenLifetime:      DefaultTokenLifetime,
		logger:             logging.Nop(),
		tracer:             defaultTracer(),
		metrics:            NoopMetrics{},
		now:                time.Now,
		cryptoFactory:      cryptoprovider.Default(),
		compressionFactory: compression.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return h, nil
}

// WithMaximumTokenSize sets the longest token, in bytes, that is read.
func WithMaximumTokenSize(size int) Option {
	return func(h *TokenHandler) error {
		if size < 1 {
			return errors.New("maximum token size must be positive")
		}
		h.maximumTokenSize = size
		return nil
	}
}

// WithSetDefaultTimesOnTokenCreation controls whether missing exp, iat and
// nbf claims are filled in when a token is created. Enabled by default.
func WithSetDefaultTimesOnTokenCreation(set bool) Option {
	return func(h *TokenHandler) error {
		h.setDefaultTimes = set
		return nil
	}
}

// WithTokenLifetime sets the lifetime of created tokens that have no expiry.
func WithTokenLifetime(d time.Duration) Option {
	return func(h *TokenHandler) error {
		if d <= 0 {
			return errors.New("token lifetime must be positive")
		}
		h.tokenLifetime = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(h *TokenHandler) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		h.logger = logger
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer. The global tracer provider is
// used by default.
func WithTracer(tracer oteltrace.Tracer) Option {
	return func(h *TokenHandler) error {
		if tracer == nil {
			return errors.New("tracer cannot be nil")
		}
		h.tracer = tracer
		return nil
	}
}

// WithMetrics sets where validation metrics are reported.
func WithMetrics(metrics Metrics) Option {
	return func(h *TokenHandler) error {
		if metrics == nil {
			return errors.New("metrics cannot be nil")
		}
		h.metrics = metrics
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *TokenHandler) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		h.now = now
		return nil
	}
}

// WithCryptoProviderFactory sets the factory for signature, encryption and
// key wrap providers.
func WithCryptoProviderFactory(f cryptoprovider.ProviderFactory) Option {
	return func(h *TokenHandler) error {
		if f == nil {
			return errors.New("crypto provider factory cannot be nil")
		}
		h.cryptoFactory = f
		return nil
	}
}

// WithCompressionFactory sets the factory for compression providers.
func WithCompressionFactory(f compression.ProviderFactory) Option {
	return func(h *TokenHandler) error {
		if f == nil {
			return errors.New("compression factory cannot be nil")
		}
		h.compressionFactory = f
		return nil
	}
}

// MaximumTokenSize returns the longest token, in bytes, that is read.
func (h *TokenHandler) MaximumTokenSize() int { return h.maximumTokenSize }

// CanReadToken reports whether token is small enough and shaped like a JWS or
// JWE. It does not decode the segments' JSON.
func (h *TokenHandler) CanReadToken(token string) bool {
	return jwt.CanRead(token, h.maximumTokenSize)
}

// ReadToken parses token without validating it.
func (h *TokenHandler) ReadToken(token string) (*jwt.Token, error) {
	if token == "" {
		return nil, tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "token is empty")
	}
	if len(token) > h.maximumTokenSize {
		return nil, tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeTooLarge,
			"token is %d bytes, larger than the maximum of %d", len(token), h.maximumTokenSize)
	}
	return jwt.Parse(token)
}

func (h *TokenHandler) cryptoFactoryFor(p *ValidationParameters) cryptoprovider.ProviderFactory {
	if p != nil && p.CryptoProviderFactory != nil {
		return p.CryptoProviderFactory
	}
	return h.cryptoFactory
}
