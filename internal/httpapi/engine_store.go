package httpapi

import (
	"sync"

	"github.com/TheKrainBow/mnk/engine"
)

// EngineStore holds the live engine. Updating the configuration swaps in a
// fresh engine, which also drops the old caches.
type EngineStore struct {
	mu     sync.RWMutex
	config engine.Config
	engine *engine.Engine
	opts   []engine.Option
}

func NewEngineStore(cfg engine.Config, opts ...engine.Option) (*EngineStore, error) {
	eng, err := engine.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &EngineStore{config: cfg, engine: eng, opts: opts}, nil
}

func (s *EngineStore) Get() *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *EngineStore) Config() engine.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *EngineStore) Update(cfg engine.Config) error {
	eng, err := engine.New(cfg, s.opts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.config = cfg
	s.engine = eng
	s.mu.Unlock()
	return nil
}
