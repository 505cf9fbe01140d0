package application

import (
	"fmt"
	"sync"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
)

// PlatformFactory builds the platform client for one credential.
type PlatformFactory func(cred model.Credential) (driven.Platform, error)

// PlatformRegistry hands out one driven.Platform per AppID, so every
// orchestration for an account shares that account's token cache. It is safe
// for concurrent use.
type PlatformRegistry struct {
	mu        sync.RWMutex
	factory   PlatformFactory
	platforms map[string]driven.Platform
}

// NewPlatformRegistry creates an empty registry that builds clients with factory.
func NewPlatformRegistry(factory PlatformFactory) *PlatformRegistry {
	return &PlatformRegistry{
		factory:   factory,
		platforms: make(map[string]driven.Platform),
	}
}

// For returns the client for cred, creating it on first use.
func (r *PlatformRegistry) For(cred model.Credential) (driven.Platform, error) {
	if cred.AppID == "" {
		return nil, fmt.Errorf("platform for %s: %w: app id is empty", cred.Label(), model.ErrConfiguration)
	}

	r.mu.RLock()
	p, ok := r.platforms[cred.AppID]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.platforms[cred.AppID]; ok {
		return p, nil
	}

	p, err := r.factory(cred)
	if err != nil {
		return nil, fmt.Errorf("create platform client for ****%s: %w", cred.MaskedAppID(), err)
	}
	r.platforms[cred.AppID] = p
	return p, nil
}
