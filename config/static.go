package config

import (
	"sync"

	"github.com/spf13/viper"
)

// Defaults returns the configuration used when no file or environment
// overrides anything.
func Defaults() Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("config: bad defaults: " + err.Error())
	}
	return cfg
}

// Static is an in-memory Source.
type Static struct {
	mu  sync.RWMutex
	cfg Config
}

func NewStatic(cfg Config) *Static {
	return &Static{cfg: cfg}
}

func (s *Static) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.clone()
}

func (s *Static) Update(fn func(*Config)) {
	s.mu.Lock()
	fn(&s.cfg)
	s.mu.Unlock()
}
