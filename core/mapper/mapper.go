// Package mapper translates architecture specs between cloud providers.
// Services move through the registry's equivalence groups, instance
// names through the catalog's equivalence table, and the rewritten spec
// is repriced end to end by the cost engine.
package mapper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cloudwright/core/cost"
	"cloudwright/core/registry"
	"cloudwright/core/spec"
	"cloudwright/db/catalog"
	"cloudwright/internal/logging"
)

// Each provider names its instance size under a different config key.
var instanceKeys = map[spec.Provider]string{
	spec.ProviderAWS:   "instance_type",
	spec.ProviderGCP:   "machine_type",
	spec.ProviderAzure: "vm_size",
}

// maxKeyDifferences caps the notes attached to one alternative.
const maxKeyDifferences = 5

// Mapper rewrites specs for other providers and reprices them.
type Mapper struct {
	reg   *registry.Registry
	store *catalog.Store
	cost  *cost.Engine
	log   *zap.Logger
}

// New creates a mapper over the service registry, the pricing catalog,
// and the cost engine used to reprice translated specs.
func New(reg *registry.Registry, store *catalog.Store, costEngine *cost.Engine) *Mapper {
	return &Mapper{reg: reg, store: store, cost: costEngine, log: logging.Named("mapper")}
}

// CompareProviders translates the spec to each target provider and
// reprices the result. Targets equal to the spec's own provider are
// skipped, so comparing an AWS spec against [aws gcp] yields one
// alternative.
func (m *Mapper) CompareProviders(ctx context.Context, s *spec.ArchSpec, targets []spec.Provider) ([]spec.Alternative, error) {
	var alts []spec.Alternative
	for _, target := range targets {
		if target == s.Provider {
			continue
		}
		alt, err := m.translate(ctx, s, target)
		if err != nil {
			return nil, err
		}
		alts = append(alts, *alt)
	}
	return alts, nil
}

// translate rewrites a copy of the spec for the target provider. Key
// differences rank equivalence misses above service substitutions
// above instance swaps above feature gaps, then truncate.
func (m *Mapper) translate(ctx context.Context, s *spec.ArchSpec, target spec.Provider) (*spec.Alternative, error) {
	out := s.Clone()
	out.Provider = target
	out.CostEstimate = nil

	var misses, subs, swaps, gaps []string
	for _, c := range out.Components {
		from := c.Provider
		if from == "" {
			from = s.Provider
		}
		if from == target {
			continue
		}

		if equiv := m.reg.GetEquivalent(c.Service, from, target); equiv != "" {
			if equiv != c.Service {
				subs = append(subs, fmt.Sprintf("%s instead of %s", equiv, c.Service))
			}
			c.Service = equiv
			for _, gap := range m.reg.FeatureGaps(equiv, target) {
				gaps = append(gaps, fmt.Sprintf("%s lacks %s", equiv, gap))
			}
		} else {
			misses = append(misses, fmt.Sprintf("No direct equivalent for %s", c.Service))
		}
		c.Provider = target

		if err := m.remapInstance(ctx, c, from, target, &swaps); err != nil {
			return nil, err
		}
	}

	estimate, err := m.cost.Estimate(ctx, out)
	if err != nil {
		return nil, err
	}
	out.CostEstimate = estimate

	diffs := append(append(append(misses, subs...), swaps...), gaps...)
	if len(diffs) > maxKeyDifferences {
		diffs = diffs[:maxKeyDifferences]
	}

	m.log.Debug("translated spec",
		zap.String("name", s.Name),
		zap.String("target", string(target)),
		zap.Float64("monthly_total", estimate.MonthlyTotal),
		zap.Int("key_differences", len(diffs)))

	return &spec.Alternative{
		Provider:       target,
		MonthlyTotal:   estimate.MonthlyTotal,
		Spec:           out,
		KeyDifferences: diffs,
	}, nil
}

// remapInstance moves the component's instance size onto the target
// provider's config key and substitutes the equivalent name from the
// catalog. Database tiers share the instance_class key across
// providers, so only their value is substituted. Names with no catalog
// equivalent carry over unchanged.
func (m *Mapper) remapInstance(ctx context.Context, c *spec.Component, from, to spec.Provider, swaps *[]string) error {
	name, key := instanceName(c.Config)
	if name != "" {
		mapped, err := m.store.EquivalentInstance(ctx, name, string(from), string(to))
		if err != nil {
			return err
		}
		targetKey := instanceKeys[to]
		if targetKey == "" {
			targetKey = key
		}
		if key != targetKey {
			delete(c.Config, key)
		}
		if mapped != "" && mapped != name {
			*swaps = append(*swaps, fmt.Sprintf("%s replaces %s", mapped, name))
			name = mapped
		}
		c.Config.Set(targetKey, spec.String(name))
	}

	if class, ok := c.Config.Str("instance_class"); ok && class != "" {
		mapped, err := m.store.EquivalentInstance(ctx, class, string(from), string(to))
		if err != nil {
			return err
		}
		if mapped != "" && mapped != class {
			*swaps = append(*swaps, fmt.Sprintf("%s replaces %s", mapped, class))
			c.Config.Set("instance_class", spec.String(mapped))
		}
	}
	return nil
}

// instanceName returns the instance size and the config key holding it.
func instanceName(cfg spec.Config) (name, key string) {
	for _, k := range []string{"instance_type", "machine_type", "vm_size"} {
		if v, ok := cfg.Str(k); ok && v != "" {
			return v, k
		}
	}
	return "", ""
}
