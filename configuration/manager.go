package configuration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/identitymodel/go-jsonwebtoken/logging"
)

const (
	DefaultAutomaticRefreshInterval = 12 * time.Hour
	DefaultRefreshInterval          = 5 * time.Minute
	DefaultLastKnownGoodLifetime    = time.Hour

	MinimumAutomaticRefreshInterval = 5 * time.Minute
	MinimumRefreshInterval          = time.Second
)

// BaseManager caches the configuration returned by a Retriever and keeps a
// last-known-good copy.
type BaseManager struct {
	retriever Retriever
	logger    logging.Logger
	now       func() time.Time

	automaticRefreshInterval time.Duration
	refreshInterval          time.Duration
	lkgLifetime              time.Duration
	useLKG                   bool

	// fetchMu serializes fetches so that concurrent callers share one.
	fetchMu sync.Mutex

	mu                 sync.RWMutex
	current            *Configuration
	syncAfter          time.Time
	lastRequestRefresh time.Time
	lkg                *Configuration
	lkgFirstUse        time.Time
}

var _ Manager = (*BaseManager)(nil)

// NewManager returns a BaseManager that fetches through retriever.
func NewManager(retriever Retriever, opts ...ManagerOption) (*BaseManager, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required but was nil")
	}

	m := &BaseManager{
		retriever:                retriever,
		logger:                   logging.Nop(),
		now:                      time.Now,
		automaticRefreshInterval: DefaultAutomaticRefreshInterval,
		refreshInterval:          DefaultRefreshInterval,
		lkgLifetime:              DefaultLastKnownGoodLifetime,
		useLKG:                   true,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return m, nil
}

func (m *BaseManager) fresh(now time.Time) (*Configuration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.current != nil && now.Before(m.syncAfter)
}

// GetConfiguration returns the cached configuration until it is due for a
// refresh. When a refresh fails and a configuration is already cached, the
// failure is logged and the cached configuration is returned.
func (m *BaseManager) GetConfiguration(ctx context.Context) (*Configuration, error) {
	if cfg, ok := m.fresh(m.now()); ok {
		return cfg, nil
	}

	m.fetchMu.Lock()
	defer m.fetchMu.Unlock()

	// Another caller may have fetched while we waited.
	now := m.now()
	current, ok := m.fresh(now)
	if ok {
		return current, nil
	}

	cfg, err := m.retriever.Retrieve(ctx)
	if err != nil {
		if current == nil {
			return nil, fmt.Errorf("failed to retrieve configuration: %w", err)
		}
		m.logger.Warnf("failed to refresh configuration, keeping the current one: %v", err)

		m.mu.Lock()
		m.syncAfter = now.Add(min(m.refreshInterval, m.automaticRefreshInterval))
		m.mu.Unlock()
		return current, nil
	}

	// Use the source max-age only when it is longer than the configured
	// interval.
	interval := m.automaticRefreshInterval
	if cfg.MaxAge > interval {
		interval = cfg.MaxAge
	}

	m.mu.Lock()
	m.current = cfg
	m.syncAfter = now.Add(interval)
	m.mu.Unlock()

	m.logger.Debugf("configuration retrieved for issuer %q with %d signing keys", cfg.Issuer, len(cfg.SigningKeys))
	return cfg, nil
}

// RequestRefresh makes the next GetConfiguration fetch again, at most once
// per refresh interval.
func (m *BaseManager) RequestRefresh() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastRequestRefresh.IsZero() && now.Before(m.lastRequestRefresh.Add(m.refreshInterval)) {
		return
	}
	m.lastRequestRefresh = now
	m.syncAfter = now
}

// CurrentConfiguration returns the cached configuration without fetching.
func (m *BaseManager) CurrentConfiguration() *Configuration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetCurrentConfiguration replaces the cached configuration. Its refresh
// schedule is left unchanged.
func (m *BaseManager) SetCurrentConfiguration(c *Configuration) {
	if c == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = c
}

// LastKnownGoodConfiguration returns the last configuration a token was
// validated against, or nil.
func (m *BaseManager) LastKnownGoodConfiguration() *Configuration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lkg
}

// SetLastKnownGoodConfiguration records c and starts its lifetime.
func (m *BaseManager) SetLastKnownGoodConfiguration(c *Configuration) {
	if c == nil {
		return
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lkg = c
	m.lkgFirstUse = now
}

// UseLastKnownGood reports whether the fallback is enabled and a
// last-known-good configuration exists that has not outlived its lifetime.
func (m *BaseManager) UseLastKnownGood() bool {
	if !m.useLKG {
		return false
	}
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lkg != nil && now.Before(m.lkgFirstUse.Add(m.lkgLifetime))
}
