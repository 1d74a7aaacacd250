// Package engine wires the Cloudwright subsystems into one facade. The
// CLI and the HTTP API are thin wrappers around it; nothing in here
// computes costs or runs checks itself.
package engine

import (
	"context"

	"go.uber.org/zap"

	"cloudwright/core/cost"
	"cloudwright/core/diff"
	"cloudwright/core/harden"
	"cloudwright/core/mapper"
	"cloudwright/core/registry"
	"cloudwright/core/score"
	"cloudwright/core/spec"
	"cloudwright/core/validate"
	"cloudwright/db/catalog"
	"cloudwright/db/refresh"
	"cloudwright/internal/config"
	"cloudwright/internal/errors"
	"cloudwright/internal/logging"
)

// Engine owns the subsystem graph: service registry, pricing catalog,
// cost engine, validator, mapper, hardener, scorer, and refresh runner.
type Engine struct {
	cfg       *config.Config
	reg       *registry.Registry
	store     *catalog.Store
	cost      *cost.Engine
	validator *validate.Validator
	mapper    *mapper.Mapper
	hardener  *harden.Hardener
	scorer    *score.Scorer
	refresher *refresh.Runner
	log       *zap.Logger
}

// Open builds an engine from configuration. The service registry loads
// from the configured directory or the embedded category files; the
// catalog store opens (and seeds, on first open) at the configured
// path. A registry or catalog failure aborts startup.
func Open(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Get()
	}

	var reg *registry.Registry
	var err error
	if dir := cfg.Catalog.RegistryDir; dir != "" {
		reg, err = registry.LoadDir(dir)
	} else {
		reg, err = registry.Default()
	}
	if err != nil {
		return nil, err
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	costEngine := cost.New(store, reg)
	validator := validate.New(reg)
	return &Engine{
		cfg:       cfg,
		reg:       reg,
		store:     store,
		cost:      costEngine,
		validator: validator,
		mapper:    mapper.New(reg, store, costEngine),
		hardener:  harden.New(),
		scorer:    score.New(validator),
		refresher: refresh.NewRunner(store),
		log:       logging.Named("engine"),
	}, nil
}

// Close releases the catalog store
func (e *Engine) Close() error {
	return e.store.Close()
}

// Registry returns the loaded service registry
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Catalog returns the pricing catalog store
func (e *Engine) Catalog() *catalog.Store {
	return e.store
}

// Options selects what Process runs beyond hardening and pricing
type Options struct {
	// Frameworks names the compliance frameworks to validate against.
	// Empty falls back to the spec's own compliance constraints.
	Frameworks []string

	// CompareTargets requests cross-provider alternatives. The spec's
	// own provider is skipped.
	CompareTargets []spec.Provider

	// PricingTier overrides the purchase model for this run
	PricingTier spec.PricingTier

	// SkipHarden prices the spec as written instead of hardening it
	// first. Validation then sees the raw configuration too.
	SkipHarden bool
}

// Result is the outcome of one pipeline run
type Result struct {
	Spec         *spec.ArchSpec          `json:"spec"`
	Validations  []spec.ValidationResult `json:"validations,omitempty"`
	Alternatives []spec.Alternative      `json:"alternatives,omitempty"`
	Scorecard    *score.Scorecard        `json:"scorecard"`
}

// Process runs the design pipeline over a spec: harden defaults, price
// every component, validate against the requested frameworks, produce
// cross-provider alternatives, and grade the result. The input is
// never mutated; the enriched copy rides in the result.
func (e *Engine) Process(ctx context.Context, s *spec.ArchSpec, opts Options) (*Result, error) {
	if s == nil {
		return nil, errors.InvalidSpec("no spec provided")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if opts.PricingTier != "" && !spec.ValidPricingTier(opts.PricingTier) {
		return nil, errors.Newf(errors.TypeConfig, "unknown pricing tier %q", opts.PricingTier)
	}

	out := s.Clone()
	if !opts.SkipHarden {
		out = e.hardener.Apply(out)
	}
	if opts.PricingTier != "" {
		out.Metadata.Set(cost.MetadataPricingTier, spec.String(string(opts.PricingTier)))
	}

	estimate, err := e.cost.Estimate(ctx, out)
	if err != nil {
		return nil, err
	}
	out.CostEstimate = estimate

	if out.Constraints != nil && out.Constraints.BudgetMonthly > 0 &&
		estimate.MonthlyTotal > out.Constraints.BudgetMonthly {
		e.log.Warn("estimated cost exceeds budget",
			zap.String("name", out.Name),
			zap.Float64("monthly_total", estimate.MonthlyTotal),
			zap.Float64("budget_monthly", out.Constraints.BudgetMonthly))
	}

	result := &Result{Spec: out}

	frameworks := opts.Frameworks
	if len(frameworks) == 0 && out.Constraints != nil {
		frameworks = out.Constraints.Compliance
	}
	if len(frameworks) > 0 {
		result.Validations = e.validator.Validate(out, frameworks)
	}

	if len(opts.CompareTargets) > 0 {
		alts, err := e.mapper.CompareProviders(ctx, out, opts.CompareTargets)
		if err != nil {
			return nil, err
		}
		result.Alternatives = alts
	}

	card, err := e.scorer.Score(out)
	if err != nil {
		return nil, err
	}
	result.Scorecard = card

	e.log.Info("processed spec",
		zap.String("name", out.Name),
		zap.Int("components", len(out.Components)),
		zap.Float64("monthly_total", estimate.MonthlyTotal),
		zap.String("grade", card.Grade),
		zap.Int("validations", len(result.Validations)),
		zap.Int("alternatives", len(result.Alternatives)))
	return result, nil
}

// Estimate prices a spec without the rest of the pipeline
func (e *Engine) Estimate(ctx context.Context, s *spec.ArchSpec) (*spec.CostEstimate, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return e.cost.Estimate(ctx, s)
}

// Validate runs compliance frameworks over a spec as written
func (e *Engine) Validate(s *spec.ArchSpec, frameworks []string) []spec.ValidationResult {
	return e.validator.Validate(s, frameworks)
}

// Harden returns a hardened deep copy of a spec
func (e *Engine) Harden(s *spec.ArchSpec) *spec.ArchSpec {
	return e.hardener.Apply(s)
}

// Score grades a spec as written
func (e *Engine) Score(s *spec.ArchSpec) (*score.Scorecard, error) {
	return e.scorer.Score(s)
}

// Diff reports the structural delta between two specs
func (e *Engine) Diff(before, after *spec.ArchSpec) *spec.DiffResult {
	return diff.Diff(before, after)
}

// CompareProviders translates and reprices a spec for other providers
func (e *Engine) CompareProviders(ctx context.Context, s *spec.ArchSpec, targets []spec.Provider) ([]spec.Alternative, error) {
	return e.mapper.CompareProviders(ctx, s, targets)
}

// Refresh pulls live pricing through the registered adapters
func (e *Engine) Refresh(ctx context.Context, opts refresh.Options) *refresh.Summary {
	return e.refresher.Run(ctx, opts)
}

// SyncCatalog mirrors the service registry into the catalog store
func (e *Engine) SyncCatalog(ctx context.Context) error {
	return e.store.SyncFromRegistry(ctx, e.reg)
}
