// Package refresh orchestrates pricing adapters against the catalog
// store. Providers run in parallel under a bounded errgroup; failures
// are recorded per provider and never abort the run.
package refresh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cloudwright/clouds"
	"cloudwright/core/spec"
	"cloudwright/db/catalog"
	"cloudwright/internal/config"
	"cloudwright/internal/logging"
)

// Options selects what a refresh run covers
type Options struct {
	// Providers limits the run; empty means every registered adapter
	Providers []spec.Provider

	// Category narrows the run: "compute" refreshes instance pricing
	// only; any other value refreshes managed services whose key
	// contains it. Empty refreshes everything.
	Category string

	// Region overrides the configured default region
	Region string

	// DryRun fetches prices without writing to the catalog
	DryRun bool
}

// Result is one provider's outcome
type Result struct {
	Provider               spec.Provider `json:"provider"`
	InstancesFetched       int           `json:"instances_fetched"`
	ManagedServicesFetched int           `json:"managed_services_fetched"`
	Errors                 []string      `json:"errors,omitempty"`
	DryRun                 bool          `json:"dry_run"`
}

// Summary is the outcome of one refresh run
type Summary struct {
	RunID     string                    `json:"run_id"`
	StartedAt time.Time                 `json:"started_at"`
	Duration  time.Duration             `json:"duration"`
	Results   map[spec.Provider]*Result `json:"results"`
}

// TotalErrors counts recorded errors across providers
func (s *Summary) TotalErrors() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Errors)
	}
	return n
}

// Runner executes refresh runs against one catalog store
type Runner struct {
	store    *catalog.Store
	adapters *clouds.Registry
	log      *zap.Logger
}

// NewRunner creates a runner over the default adapter registry
func NewRunner(store *catalog.Store) *Runner {
	return NewRunnerWithRegistry(store, clouds.DefaultRegistry())
}

// NewRunnerWithRegistry creates a runner over a specific adapter
// registry. Tests inject fake adapters this way.
func NewRunnerWithRegistry(store *catalog.Store, adapters *clouds.Registry) *Runner {
	return &Runner{
		store:    store,
		adapters: adapters,
		log:      logging.Named("refresh"),
	}
}

// Run refreshes the selected providers. The summary always comes back;
// per-provider errors ride in the results.
func (r *Runner) Run(ctx context.Context, opts Options) *Summary {
	providers := opts.Providers
	if len(providers) == 0 {
		providers = r.adapters.Providers()
	}
	region := opts.Region
	if region == "" {
		region = config.Get().Defaults.Region
	}

	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make(map[spec.Provider]*Result, len(providers)),
	}
	for _, provider := range providers {
		summary.Results[provider] = &Result{Provider: provider, DryRun: opts.DryRun}
	}

	concurrency := config.Get().Refresh.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, provider := range providers {
		result := summary.Results[provider]
		g.Go(func() error {
			r.refreshProvider(gctx, provider, region, opts, result)
			return nil
		})
	}
	// Workers report through their results, never through errors.
	_ = g.Wait()

	summary.Duration = time.Since(summary.StartedAt)
	r.log.Info("refresh run finished",
		zap.String("run_id", summary.RunID),
		zap.Duration("duration", summary.Duration),
		zap.Int("providers", len(providers)),
		zap.Int("errors", summary.TotalErrors()),
		zap.Bool("dry_run", opts.DryRun))
	return summary
}

func (r *Runner) refreshProvider(ctx context.Context, provider spec.Provider, region string, opts Options, result *Result) {
	adapter, ok := r.adapters.Get(provider)
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("no adapter registered for %s", provider))
		return
	}

	log := r.log.With(
		zap.String("provider", string(provider)),
		zap.String("region", region))

	if opts.Category == "" || opts.Category == "compute" {
		r.refreshInstances(ctx, adapter, region, opts.DryRun, result, log)
	}
	if opts.Category == "" || opts.Category != "compute" {
		r.refreshManaged(ctx, adapter, region, opts, result, log)
	}
}

func (r *Runner) refreshInstances(ctx context.Context, adapter clouds.Adapter, region string, dryRun bool, result *Result, log *zap.Logger) {
	provider := adapter.Provider()

	var imports []catalog.InstanceImport
	err := adapter.FetchInstancePricing(ctx, region, func(p clouds.InstancePrice) error {
		imports = append(imports, catalog.InstanceImport{
			Name:             p.InstanceType,
			Family:           instanceFamily(provider, p.InstanceType),
			VCPUs:            p.VCPUs,
			MemoryGB:         p.MemoryGB,
			StorageDesc:      p.StorageDesc,
			NetworkBandwidth: p.NetworkBandwidth,
			OS:               p.OS,
			PriceType:        p.PriceType,
			PricePerHour:     p.PricePerHour,
		})
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.InstancesFetched = len(imports)
	log.Debug("fetched instance pricing", zap.Int("count", len(imports)))

	if dryRun || len(imports) == 0 {
		return
	}
	if err := r.store.ImportInstancePrices(ctx, string(provider), region, imports); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return
	}
	r.stamp(ctx, provider, "compute", result)
}

func (r *Runner) refreshManaged(ctx context.Context, adapter clouds.Adapter, region string, opts Options, result *Result, log *zap.Logger) {
	provider := adapter.Provider()

	for _, service := range adapter.SupportedManagedServices() {
		if opts.Category != "" && !strings.Contains(service, opts.Category) {
			continue
		}
		tiers, err := adapter.FetchManagedServicePricing(ctx, service, region)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if len(tiers) == 0 {
			continue
		}

		imports := make([]catalog.ManagedImport, 0, len(tiers))
		for _, tier := range tiers {
			imports = append(imports, catalog.ManagedImport{
				Service:       tier.Service,
				Tier:          tier.TierName,
				PricePerHour:  tier.PricePerHour,
				PricePerMonth: tier.PricePerMonth,
				VCPUs:         tier.VCPUs,
				MemoryGB:      tier.MemoryGB,
				Description:   tier.Description,
				Notes:         tier.Notes,
			})
		}
		result.ManagedServicesFetched += len(imports)
		log.Debug("fetched managed pricing",
			zap.String("service", service),
			zap.Int("tiers", len(imports)))

		if opts.DryRun {
			continue
		}
		if err := r.store.ImportManagedServices(ctx, string(provider), imports); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		r.stamp(ctx, provider, service, result)
	}
}

// stamp records when a provider and category were last refreshed
func (r *Runner) stamp(ctx context.Context, provider spec.Provider, category string, result *Result) {
	key := fmt.Sprintf("refreshed:%s:%s", provider, category)
	value := time.Now().UTC().Format(time.RFC3339)
	if err := r.store.SetMetadata(ctx, key, value); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
}

// instanceFamily buckets an instance type name into the catalog's
// family vocabulary (general, compute, memory, burstable)
func instanceFamily(provider spec.Provider, name string) string {
	lower := strings.ToLower(name)
	switch provider {
	case spec.ProviderAWS:
		switch {
		case strings.HasPrefix(lower, "t"):
			return "burstable"
		case strings.HasPrefix(lower, "c"):
			return "compute"
		case strings.HasPrefix(lower, "r"), strings.HasPrefix(lower, "x"), strings.HasPrefix(lower, "z"):
			return "memory"
		}
	case spec.ProviderGCP:
		switch {
		case strings.HasPrefix(lower, "e2-micro"), strings.HasPrefix(lower, "e2-small"), strings.HasPrefix(lower, "e2-medium"):
			return "burstable"
		case strings.HasPrefix(lower, "c"), strings.HasPrefix(lower, "h"):
			return "compute"
		case strings.Contains(lower, "highmem"), strings.HasPrefix(lower, "m"):
			return "memory"
		}
	case spec.ProviderAzure:
		switch {
		case strings.HasPrefix(lower, "b"):
			return "burstable"
		case strings.HasPrefix(lower, "f"):
			return "compute"
		case strings.HasPrefix(lower, "e"), strings.HasPrefix(lower, "m"):
			return "memory"
		}
	}
	return "general"
}
