package configuration

import (
	"errors"
	"net/http"
	"time"

	"github.com/identitymodel/go-jsonwebtoken/logging"
)

// ManagerOption is how options for the BaseManager are set up.
type ManagerOption func(*BaseManager) error

// WithLogger sets the logger used to report fetch failures.
func WithLogger(logger logging.Logger) ManagerOption {
	return func(m *BaseManager) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		m.logger = logger
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *BaseManager) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		m.now = now
		return nil
	}
}

// WithAutomaticRefreshInterval sets how long a fetched configuration is used
// before it is fetched again. Defaults to 12 hours.
func WithAutomaticRefreshInterval(d time.Duration) ManagerOption {
	return func(m *BaseManager) error {
		if d < MinimumAutomaticRefreshInterval {
			return errors.New("automatic refresh interval must be at least 5 minutes")
		}
		m.automaticRefreshInterval = d
		return nil
	}
}

// WithRefreshInterval sets the minimum time between two honoured calls to
// RequestRefresh. Defaults to 5 minutes.
func WithRefreshInterval(d time.Duration) ManagerOption {
	return func(m *BaseManager) error {
		if d < MinimumRefreshInterval {
			return errors.New("refresh interval must be at least 1 second")
		}
		m.refreshInterval = d
		return nil
	}
}

// WithLastKnownGoodLifetime sets how long the last-known-good configuration
// stays usable after it was recorded. Defaults to 1 hour.
func WithLastKnownGoodLifetime(d time.Duration) ManagerOption {
	return func(m *BaseManager) error {
		if d <= 0 {
			return errors.New("last known good lifetime must be positive")
		}
		m.lkgLifetime = d
		return nil
	}
}

// WithUseLastKnownGood enables or disables the last-known-good fallback.
// Enabled by default.
func WithUseLastKnownGood(use bool) ManagerOption {
	return func(m *BaseManager) error {
		m.useLKG = use
		return nil
	}
}

// RetrieverOption is how options for the HTTP retrievers are set up.
type RetrieverOption func(*HTTPRetriever) error

// WithHTTPClient sets the client used for discovery and key set requests.
func WithHTTPClient(client *http.Client) RetrieverOption {
	return func(r *HTTPRetriever) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		r.client = client
		return nil
	}
}

// WithExpectedIssuer sets the issuer the discovery document must name. It
// defaults to the issuer URL.
func WithExpectedIssuer(issuer string) RetrieverOption {
	return func(r *HTTPRetriever) error {
		if issuer == "" {
			return errors.New("expected issuer cannot be empty")
		}
		r.issuer = issuer
		return nil
	}
}
