package configuration

import (
	"context"
	"errors"
	"sync"
)

// StaticManager always returns the same configuration. It still records a
// last-known-good configuration so that it can stand in for a BaseManager.
type StaticManager struct {
	cfg *Configuration

	mu  sync.RWMutex
	lkg *Configuration
}

var _ Manager = (*StaticManager)(nil)

// NewStaticManager returns a Manager for cfg.
func NewStaticManager(cfg *Configuration) (*StaticManager, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required but was nil")
	}
	return &StaticManager{cfg: cfg}, nil
}

func (m *StaticManager) GetConfiguration(ctx context.Context) (*Configuration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.cfg, nil
}

func (m *StaticManager) RequestRefresh() {}

func (m *StaticManager) LastKnownGoodConfiguration() *Configuration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lkg
}

func (m *StaticManager) SetLastKnownGoodConfiguration(c *Configuration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lkg = c
}

// UseLastKnownGood is always false: there is only one configuration.
func (m *StaticManager) UseLastKnownGood() bool { return false }
