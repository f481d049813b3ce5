package knowledge

import (
	"context"

	"github.com/kilianp07/mtrr/core/factory"
	"github.com/kilianp07/mtrr/core/model"
)

var storeRegistry = factory.NewRegistry[Store]()

func init() {
	_ = RegisterStore("memory", func(map[string]any) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// RegisterStore adds a backend factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates the configured backend; an empty type selects memory.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return storeRegistry.Create(cfg)
}

// Backends lists the registered backend types.
func Backends() []string { return storeRegistry.Names() }

// SeedFleet hands the configured fleet to stores that accept it. Other
// stores learn vehicles when a mission assigns them.
func SeedFleet(ctx context.Context, s Store, vehicles []model.Vehicle) error {
	fs, ok := s.(FleetSeeder)
	if !ok || len(vehicles) == 0 {
		return nil
	}
	return fs.SeedFleet(ctx, vehicles)
}
