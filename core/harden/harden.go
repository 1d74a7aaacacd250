// Package harden applies safe defaults to a freshly produced spec:
// encryption and backups on data stores, multi-AZ on databases in
// non-trivial architectures, and auto scaling on compute. It runs
// once after design or modification, before costing and validation.
package harden

import (
	"go.uber.org/zap"

	"cloudwright/core/spec"
	"cloudwright/data"
	"cloudwright/internal/logging"
)

// multiAZThreshold is the component count above which databases are
// forced to multi-AZ.
const multiAZThreshold = 3

// Hardener applies the post-validation defaults.
type Hardener struct {
	log *zap.Logger
}

// New creates a hardener.
func New() *Hardener {
	return &Hardener{log: logging.Named("harden")}
}

// Apply returns a hardened deep copy of s. The input is never
// mutated, and applying twice yields the same spec as applying once.
func (h *Hardener) Apply(s *spec.ArchSpec) *spec.ArchSpec {
	out := s.Clone()

	classes, err := data.LoadServiceClasses()
	if err != nil {
		h.log.Error("service class tables unavailable", zap.Error(err))
		return out
	}

	var touched []string
	for _, c := range out.Components {
		changed := false
		if classes.IsDataStore(c.Service) {
			changed = ensure(c, "encryption") || changed
			changed = ensure(c, "backup") || changed
		}
		if classes.IsDatabase(c.Service) && len(out.Components) > multiAZThreshold {
			changed = ensure(c, "multi_az") || changed
		}
		if classes.IsCompute(c.Service) {
			changed = ensure(c, "auto_scaling") || changed
		}
		if changed {
			touched = append(touched, c.ID)
		}
	}
	if len(touched) > 0 {
		h.log.Debug("hardened components", zap.Strings("components", touched))
	}

	if out.Constraints != nil && out.Constraints.BudgetMonthly > 0 &&
		out.CostEstimate != nil && out.CostEstimate.MonthlyTotal > out.Constraints.BudgetMonthly {
		h.log.Warn("estimated cost exceeds budget",
			zap.String("name", out.Name),
			zap.Float64("monthly_total", out.CostEstimate.MonthlyTotal),
			zap.Float64("budget_monthly", out.Constraints.BudgetMonthly))
	}

	return out
}

// ensure sets key to true unless it already is, and reports whether
// the config changed. Explicit false values are overridden.
func ensure(c *spec.Component, key string) bool {
	if on, ok := c.Config.Flag(key); ok && on {
		return false
	}
	c.Config.Set(key, spec.BoolValue(true))
	return true
}
