package results

import (
	"fmt"

	core "github.com/kilianp07/openbat/core/results"
)

// Config selects the run store.
type Config struct {
	// Backend is "none", "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// SetDefaults applies the memory backend.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "runs.db"
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "", "none", "memory", "sqlite":
		return nil
	}
	return fmt.Errorf("results: unknown backend %q", c.Backend)
}

// New opens the configured store. The "none" backend returns nil.
func New(cfg Config) (core.Store, error) {
	cfg.SetDefaults()
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "memory":
		return core.NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	}
	return nil, cfg.Validate()
}
