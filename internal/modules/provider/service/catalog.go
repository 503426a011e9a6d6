package service

import (
	"fmt"
	"sort"
	"sync"

	"provhost/internal/modules/provider/domain"
)

type reservation struct {
	id string
}

// Catalog owns every loaded module and the active API index. An id is held
// from reservation until Remove, so concurrent loads of one id cannot race.
type Catalog struct {
	mu       sync.RWMutex
	reserved map[string]*reservation
	modules  map[string]*domain.LoadedModule
	apis     map[string]domain.ProviderAPI
}

func NewCatalog() *Catalog {
	return &Catalog{
		reserved: map[string]*reservation{},
		modules:  map[string]*domain.LoadedModule{},
		apis:     map[string]domain.ProviderAPI{},
	}
}

// Reserve claims id for a load. Release is a no-op once the load commits.
func (c *Catalog) Reserve(id string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.modules[id]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyLoaded, id)
	}
	if _, ok := c.reserved[id]; ok {
		return nil, fmt.Errorf("%w: %s is loading", domain.ErrAlreadyLoaded, id)
	}
	token := &reservation{id: id}
	c.reserved[id] = token
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.reserved[id] == token {
			delete(c.reserved, id)
		}
	}, nil
}

// Commit stores a loaded module and drops its reservation.
func (c *Catalog) Commit(module *domain.LoadedModule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reserved, module.Metadata.ID)
	c.modules[module.Metadata.ID] = module
}

func (c *Catalog) Get(id string) (*domain.LoadedModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	module, ok := c.modules[id]
	return module, ok
}

func (c *Catalog) Remove(id string) (*domain.LoadedModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	module, ok := c.modules[id]
	if !ok {
		return nil, false
	}
	delete(c.modules, id)
	delete(c.apis, id)
	return module, true
}

func (c *Catalog) RegisterAPI(id string, api domain.ProviderAPI) error {
	if api == nil {
		return fmt.Errorf("%w: %s returned no api", domain.ErrAPIRegistration, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apis[id] = api
	if module, ok := c.modules[id]; ok {
		module.API = api
	}
	return nil
}

func (c *Catalog) UnregisterAPI(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.apis, id)
	if module, ok := c.modules[id]; ok {
		module.API = nil
	}
}

func (c *Catalog) API(id string) (domain.ProviderAPI, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	api, ok := c.apis[id]
	return api, ok
}

// Loaded returns a snapshot of loaded modules sorted by id.
func (c *Catalog) Loaded() []domain.LoadedModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.LoadedModule, 0, len(c.modules))
	for _, module := range c.modules {
		out = append(out, *module)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.ID < out[j].Metadata.ID })
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules)
}
