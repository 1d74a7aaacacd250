// Package cost prices architecture specs. Every component resolves
// through three layers: live catalog rows, the registry's named pricing
// formulas, and a static fallback table. The first layer that produces
// a price wins; later layers never run for that component.
package cost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cloudwright/core/registry"
	"cloudwright/core/spec"
	"cloudwright/db/catalog"
	"cloudwright/internal/config"
	"cloudwright/internal/logging"
)

const hoursPerMonth = 730

// MetadataPricingTier is the spec metadata key that selects the
// purchase model for an estimate
const MetadataPricingTier = "pricing_tier"

// Resolution sources, in pipeline order
const (
	sourceCatalog  = "catalog"
	sourceFormula  = "formula"
	sourceFallback = "fallback"
)

// Engine prices components and connection data transfer
type Engine struct {
	store *catalog.Store
	reg   *registry.Registry
	log   *zap.Logger
}

// New creates a cost engine backed by a catalog store and the service
// registry
func New(store *catalog.Store, reg *registry.Registry) *Engine {
	return &Engine{store: store, reg: reg, log: logging.Named("cost")}
}

// Estimate prices every component and connection of a spec. The
// purchase model comes from the spec metadata key "pricing_tier";
// absent or invalid values fall back to the configured default.
func (e *Engine) Estimate(ctx context.Context, s *spec.ArchSpec) (*spec.CostEstimate, error) {
	tier := pricingTier(s)
	estimate := &spec.CostEstimate{
		Currency: spec.DefaultCurrency,
		AsOf:     time.Now().UTC().Format("2006-01-02"),
	}

	total := decimal.Zero
	for _, c := range s.Components {
		line, monthly, err := e.estimateComponent(ctx, c, s.Region, tier)
		if err != nil {
			return nil, err
		}
		estimate.Breakdown = append(estimate.Breakdown, line)
		total = total.Add(monthly)
	}

	transfer := e.transferTotal(s).Round(2)
	estimate.DataTransferMonthly = transfer.InexactFloat64()
	estimate.MonthlyTotal = total.Add(transfer).Round(2).InexactFloat64()

	e.log.Debug("estimated spec",
		zap.String("name", s.Name),
		zap.String("pricing_tier", string(tier)),
		zap.Int("components", len(s.Components)),
		zap.Float64("monthly_total", estimate.MonthlyTotal))
	return estimate, nil
}

// EstimateComponent prices a single component in a region
func (e *Engine) EstimateComponent(ctx context.Context, c *spec.Component, region string, tier spec.PricingTier) (spec.ComponentCost, error) {
	line, _, err := e.estimateComponent(ctx, c, region, tier)
	return line, err
}

// estimateComponent returns the breakdown line plus the rounded monthly
// amount the caller totals. Breakdown lines always sum to the estimate
// total minus data transfer.
func (e *Engine) estimateComponent(ctx context.Context, c *spec.Component, region string, tier spec.PricingTier) (spec.ComponentCost, decimal.Decimal, error) {
	monthly, source, err := e.resolve(ctx, c, region, tier)
	if err != nil {
		return spec.ComponentCost{}, decimal.Zero, err
	}
	e.log.Debug("priced component",
		zap.String("component", c.ID),
		zap.String("service", c.Service),
		zap.String("source", source),
		zap.String("monthly", monthly.StringFixed(2)))

	monthly = monthly.Round(2)
	line := spec.ComponentCost{
		ComponentID: c.ID,
		Service:     c.Service,
		Monthly:     monthly.InexactFloat64(),
		Notes:       describeConfig(c.Config),
	}
	if monthly.IsPositive() {
		line.Hourly = monthly.Div(decimal.NewFromInt(hoursPerMonth)).Round(4).InexactFloat64()
	}
	return line, monthly, nil
}

// resolve runs the three-layer pipeline. The catalog layer applies the
// tier discount and the multi-AZ doubling itself; the formula and
// fallback layers are discounted and scaled here.
func (e *Engine) resolve(ctx context.Context, c *spec.Component, region string, tier spec.PricingTier) (decimal.Decimal, string, error) {
	monthly, ok, err := e.store.ServicePricing(ctx, c.Service, c.Provider, region, c.Config, tier)
	if err != nil {
		return decimal.Zero, "", err
	}
	if ok {
		return decimal.NewFromFloat(monthly), sourceCatalog, nil
	}

	discount := decimal.NewFromFloat(tier.Discount())
	if monthly, ok := e.fromFormula(c); ok {
		return e.scale(monthly.Mul(discount), c), sourceFormula, nil
	}
	return e.scale(e.fromFallback(c).Mul(discount), c), sourceFallback, nil
}

// fromFormula evaluates the registry's named formula for the service
// over the default-merged config. A missing definition, an unknown
// formula name, or a non-positive result falls through to the fallback
// table.
func (e *Engine) fromFormula(c *spec.Component) (decimal.Decimal, bool) {
	def := e.reg.Get(c.Provider, c.Service)
	if def == nil || def.PricingFormula == "" {
		return decimal.Zero, false
	}
	formula, ok := formulas[def.PricingFormula]
	if !ok {
		e.log.Debug("unknown pricing formula",
			zap.String("service", c.Service),
			zap.String("formula", def.PricingFormula),
			zap.Error(ErrFormula))
		return decimal.Zero, false
	}
	monthly := formula(mergeConfig(def.DefaultConfig, c.Config))
	if !monthly.IsPositive() {
		e.log.Debug("formula produced no price",
			zap.String("service", c.Service),
			zap.String("formula", def.PricingFormula),
			zap.Error(ErrFormula))
		return decimal.Zero, false
	}
	return monthly, true
}

// Orchestrator clusters modeled without node counts price as a small
// three-node cluster
var orchestrators = map[string]bool{
	"ecs": true,
	"eks": true,
	"gke": true,
	"aks": true,
}

// Keys that make a component's scale explicit
var countKeys = []string{"count", "node_count", "desired_count", "min_instances", "min_tasks"}

// scale applies the post-resolution multipliers. Only formula and
// fallback results pass through here; the catalog layer accounts for
// multi-AZ inside its own branches.
func (e *Engine) scale(monthly decimal.Decimal, c *spec.Component) decimal.Decimal {
	if c.Config.FlagOr("multi_az", false) {
		monthly = monthly.Mul(decimal.NewFromInt(2))
	}
	if orchestrators[c.Service] && !hasExplicitCount(c.Config) {
		monthly = monthly.Mul(decimal.NewFromInt(3))
	}
	return monthly
}

func hasExplicitCount(cfg spec.Config) bool {
	for _, key := range countKeys {
		if cfg.Has(key) {
			return true
		}
	}
	return false
}

// mergeConfig layers the component config over the service defaults
func mergeConfig(defaults, cfg spec.Config) spec.Config {
	if len(defaults) == 0 {
		return cfg
	}
	merged := defaults.Clone()
	for k, v := range cfg {
		merged[k] = v
	}
	return merged
}

// pricingTier picks the purchase model for an estimate
func pricingTier(s *spec.ArchSpec) spec.PricingTier {
	if v, ok := s.Metadata.Str(MetadataPricingTier); ok {
		if tier := spec.PricingTier(v); spec.ValidPricingTier(tier) {
			return tier
		}
	}
	return spec.PricingTier(config.Get().Defaults.PricingTier)
}

// describeConfig summarizes the config keys a reader prices by eye,
// e.g. "m5.large, 2x, Multi-AZ, 100GB storage, postgres"
func describeConfig(cfg spec.Config) string {
	var parts []string
	if name := firstString(cfg, "instance_type", "machine_type", "vm_size", "instance_class", "node_type"); name != "" {
		parts = append(parts, name)
	}
	if count := cfg.FloatOr("count", 0); count > 1 {
		parts = append(parts, fmt.Sprintf("%gx", count))
	}
	if cfg.FlagOr("multi_az", false) {
		parts = append(parts, "Multi-AZ")
	}
	if gb := cfg.FloatOr("storage_gb", 0); gb > 0 {
		parts = append(parts, fmt.Sprintf("%gGB storage", gb))
	}
	if engine, ok := cfg.Str("engine"); ok && engine != "" {
		parts = append(parts, engine)
	}
	return strings.Join(parts, ", ")
}

func firstString(cfg spec.Config, keys ...string) string {
	for _, key := range keys {
		if v, ok := cfg.Str(key); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(cfg spec.Config, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := cfg.Float(key); ok {
			return v, true
		}
	}
	return 0, false
}
