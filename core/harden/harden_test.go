package harden

import (
	"reflect"
	"testing"

	"cloudwright/core/spec"
)

func comp(id, service string, config map[string]interface{}) *spec.Component {
	c := &spec.Component{ID: id, Service: service, Provider: spec.ProviderAWS, Tier: spec.TierCompute}
	if config != nil {
		c.Config = make(spec.Config, len(config))
		for k, v := range config {
			c.Config[k] = spec.FromInterface(v)
		}
	}
	return c
}

func awsSpec(components ...*spec.Component) *spec.ArchSpec {
	return &spec.ArchSpec{
		Name:       "test",
		Version:    1,
		Provider:   spec.ProviderAWS,
		Region:     "us-east-1",
		Components: components,
	}
}

func flag(t *testing.T, s *spec.ArchSpec, id, key string) bool {
	t.Helper()
	c := s.ComponentByID(id)
	if c == nil {
		t.Fatalf("no component %s", id)
	}
	on, ok := c.Config.Flag(key)
	return ok && on
}

func TestApplyDataStoreDefaults(t *testing.T) {
	h := New()
	out := h.Apply(awsSpec(
		comp("bucket", "s3", nil),
		comp("cache", "elasticache", nil),
	))

	for _, id := range []string{"bucket", "cache"} {
		if !flag(t, out, id, "encryption") {
			t.Errorf("%s: encryption not enabled", id)
		}
		if !flag(t, out, id, "backup") {
			t.Errorf("%s: backup not enabled", id)
		}
	}
	// elasticache is a data store but not a database
	if flag(t, out, "cache", "multi_az") {
		t.Error("cache: multi_az set on a non-database")
	}
}

func TestApplyMultiAZThreshold(t *testing.T) {
	h := New()

	small := h.Apply(awsSpec(
		comp("db", "rds", nil),
		comp("web", "ec2", nil),
		comp("bucket", "s3", nil),
	))
	if flag(t, small, "db", "multi_az") {
		t.Error("multi_az set with only 3 components")
	}

	large := h.Apply(awsSpec(
		comp("db", "rds", nil),
		comp("web", "ec2", nil),
		comp("bucket", "s3", nil),
		comp("dns", "route53", nil),
	))
	if !flag(t, large, "db", "multi_az") {
		t.Error("multi_az not set with 4 components")
	}
	if !flag(t, large, "db", "encryption") || !flag(t, large, "db", "backup") {
		t.Error("database missing data-store defaults")
	}
}

func TestApplyComputeAutoScaling(t *testing.T) {
	h := New()
	out := h.Apply(awsSpec(
		comp("web", "ec2", nil),
		comp("jobs", "ecs", map[string]interface{}{"auto_scaling": false}),
	))

	if !flag(t, out, "web", "auto_scaling") {
		t.Error("web: auto_scaling not enabled")
	}
	if !flag(t, out, "jobs", "auto_scaling") {
		t.Error("jobs: explicit false not overridden")
	}
}

func TestApplyLeavesOtherServicesAlone(t *testing.T) {
	h := New()
	out := h.Apply(awsSpec(comp("dns", "route53", nil), comp("lb", "alb", nil)))

	for _, id := range []string{"dns", "lb"} {
		if n := len(out.ComponentByID(id).Config); n != 0 {
			t.Errorf("%s: config has %d keys, want 0", id, n)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	h := New()
	in := awsSpec(comp("bucket", "s3", map[string]interface{}{"versioning": true}))
	h.Apply(in)

	cfg := in.Components[0].Config
	if _, ok := cfg["encryption"]; ok {
		t.Error("input spec was mutated")
	}
	if len(cfg) != 1 {
		t.Errorf("input config has %d keys, want 1", len(cfg))
	}
}

func TestApplyIdempotent(t *testing.T) {
	h := New()
	in := awsSpec(
		comp("web", "ec2", map[string]interface{}{"instance_type": "m5.large"}),
		comp("db", "rds", map[string]interface{}{"instance_class": "db.t3.medium"}),
		comp("bucket", "s3", nil),
		comp("lb", "alb", nil),
	)

	once := h.Apply(in)
	twice := h.Apply(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second apply changed the spec:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestApplyWarnsOverBudgetAndStillHardens(t *testing.T) {
	h := New()
	in := awsSpec(comp("web", "ec2", nil))
	in.Constraints = &spec.Constraints{BudgetMonthly: 100}
	in.CostEstimate = &spec.CostEstimate{MonthlyTotal: 250, Currency: "USD"}

	out := h.Apply(in)
	if !flag(t, out, "web", "auto_scaling") {
		t.Error("hardening skipped on over-budget spec")
	}
	if out.CostEstimate.MonthlyTotal != 250 {
		t.Error("estimate altered by hardening")
	}
}
