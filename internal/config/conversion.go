package config

import (
	"sort"

	"github.com/iwvelando/mediaplan/internal/planner"
	"github.com/iwvelando/mediaplan/internal/solver/cbc"
)

// PlannerConfig converts the configuration into planner settings.
func (c *Configuration) PlannerConfig() planner.Config {
	return planner.Config{
		TimeLimit:        c.Solver.TimeLimit,
		Defaults:         c.Defaults,
		Rules:            c.Pricing.Rules,
		ChannelDiscounts: c.Pricing.ChannelDiscounts,
	}
}

// CBCConfig converts the solver section into CBC backend settings.
func (c *Configuration) CBCConfig() cbc.Config {
	threads := c.Solver.Threads
	if threads < 0 {
		threads = 0
	}
	return cbc.Config{
		Binary:    c.Solver.Binary,
		Threads:   threads,
		KeepFiles: c.Solver.KeepFiles,
		WorkDir:   c.Solver.WorkDir,
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
