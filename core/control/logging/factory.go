package logging

import (
	"fmt"

	"github.com/kilianp07/openbat/core/factory"
)

var storeRegistry = factory.NewRegistry[Store]()

// Options are the settings understood by the built-in stores.
type Options struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func init() {
	_ = storeRegistry.Register("nop", func(map[string]any) (Store, error) { return NopStore{}, nil })
	_ = storeRegistry.Register("jsonl", func(conf map[string]any) (Store, error) {
		o, err := decode(conf)
		if err != nil {
			return nil, err
		}
		if o.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(o.Path, o.MaxSizeMB, o.MaxBackups, o.MaxAgeDays)
		}
		return NewJSONLStore(o.Path)
	})
	_ = storeRegistry.Register("sqlite", func(conf map[string]any) (Store, error) {
		o, err := decode(conf)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(o.Path)
	})
}

func decode(conf map[string]any) (Options, error) {
	var o Options
	if err := factory.Decode(conf, &o); err != nil {
		return o, err
	}
	if o.Path == "" {
		return o, fmt.Errorf("path is required")
	}
	return o, nil
}

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates the store described by cfg. An empty type yields NopStore.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NopStore{}, nil
	}
	return storeRegistry.Create(cfg)
}
