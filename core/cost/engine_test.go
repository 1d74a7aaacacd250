package cost

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"cloudwright/core/registry"
	"cloudwright/core/spec"
	"cloudwright/db/catalog"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.001 {
		t.Errorf("%s = %f, want %f", name, got, want)
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry load failed: %v", err)
	}
	return New(store, reg)
}

func comp(id, service string, provider spec.Provider, config map[string]interface{}) *spec.Component {
	c := &spec.Component{ID: id, Service: service, Provider: provider, Tier: spec.TierCompute}
	if config != nil {
		c.Config = make(spec.Config, len(config))
		for k, v := range config {
			c.Config[k] = spec.FromInterface(v)
		}
	}
	return c
}

func archSpec(components ...*spec.Component) *spec.ArchSpec {
	return &spec.ArchSpec{
		Name:       "test",
		Version:    1,
		Provider:   spec.ProviderAWS,
		Region:     "us-east-1",
		Components: components,
	}
}

func TestEstimateBreakdownAndTotal(t *testing.T) {
	e := newTestEngine(t)
	s := archSpec(
		comp("web", "cloudfront", spec.ProviderAWS, map[string]interface{}{"estimated_gb": 200}),
		comp("app", "ec2", spec.ProviderAWS, map[string]interface{}{"instance_type": "m5.large"}),
		comp("db", "rds", spec.ProviderAWS, map[string]interface{}{
			"instance_class": "db.t3.medium",
			"storage_gb":     100,
			"multi_az":       true,
			"engine":         "postgres",
		}),
	)
	s.Connections = []*spec.Connection{
		{Source: "web", Target: "app", EstimatedMonthlyGB: 100},
		{Source: "app", Target: "db", EstimatedMonthlyGB: 50},
	}

	estimate, err := e.Estimate(context.Background(), s)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if len(estimate.Breakdown) != 3 {
		t.Fatalf("breakdown has %d lines, want 3", len(estimate.Breakdown))
	}

	approx(t, "cloudfront", estimate.Breakdown[0].Monthly, 200*0.085)
	approx(t, "ec2", estimate.Breakdown[1].Monthly, 0.096*730)
	// Multi-AZ doubles the compute piece inside the catalog branch.
	approx(t, "rds", estimate.Breakdown[2].Monthly, 0.068*730*2+100*0.115)

	// cloudfront source override 0.085, ec2 source aws egress 0.09.
	approx(t, "transfer", estimate.DataTransferMonthly, 100*0.085+50*0.09)

	sum := estimate.DataTransferMonthly
	for _, line := range estimate.Breakdown {
		sum += line.Monthly
	}
	approx(t, "monthly_total", estimate.MonthlyTotal, sum)

	approx(t, "ec2 hourly", estimate.Breakdown[1].Hourly, estimate.Breakdown[1].Monthly/730)
	if estimate.Currency != "USD" {
		t.Errorf("currency = %s, want USD", estimate.Currency)
	}
	if estimate.AsOf == "" {
		t.Error("as_of not stamped")
	}
	if estimate.Breakdown[2].Notes != "db.t3.medium, Multi-AZ, 100GB storage, postgres" {
		t.Errorf("rds notes = %q", estimate.Breakdown[2].Notes)
	}
}

func TestEstimateFormulaLayer(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// nat_gateway never resolves in the catalog; its registry formula
	// prices it at 0.045/hr.
	line, err := e.EstimateComponent(ctx, comp("nat", "nat_gateway", spec.ProviderAWS, nil), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "nat_gateway", line.Monthly, 0.045*730)

	// Component config overrides the registry default.
	line, err = e.EstimateComponent(ctx, comp("nat", "nat_gateway", spec.ProviderAWS,
		map[string]interface{}{"count": 2}), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "nat_gateway x2", line.Monthly, 0.045*730*2)

	// route53 prices per hosted zone.
	line, err = e.EstimateComponent(ctx, comp("dns", "route53", spec.ProviderAWS,
		map[string]interface{}{"zones": 4}), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "route53 4 zones", line.Monthly, 4*0.50)
}

func TestEstimateFallbackLayer(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Unknown services price at the table default.
	line, err := e.EstimateComponent(ctx, comp("x", "quantum_annealer", spec.ProviderAWS, nil), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "unknown service", line.Monthly, 10)

	// Raw Terraform types land on their family by substring.
	line, err = e.EstimateComponent(ctx, comp("x", "aws_msk_cluster", spec.ProviderAWS, nil), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "msk by substring", line.Monthly, 150)

	// Counts scale the baseline, storage adds on top.
	line, err = e.EstimateComponent(ctx, comp("x", "aws_msk_cluster", spec.ProviderAWS,
		map[string]interface{}{"desired_count": 2, "storage_gb": 50}), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "msk x2 + storage", line.Monthly, 150*2+50*0.10)
}

// Multi-AZ and orchestrator multipliers apply to formula and fallback
// results only; catalog results account for them internally.
func TestPostResolutionMultipliers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// eks control plane 0.10/hr via formula, tripled without a count.
	line, err := e.EstimateComponent(ctx, comp("k8s", "eks", spec.ProviderAWS, nil), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "eks no count", line.Monthly, 0.10*730*3)

	// An explicit count disables the tripling.
	line, err = e.EstimateComponent(ctx, comp("k8s", "eks", spec.ProviderAWS,
		map[string]interface{}{"node_count": 2}), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "eks node_count 2", line.Monthly, 0.10*730)

	// Fallback results double under multi_az.
	line, err = e.EstimateComponent(ctx, comp("docs", "firestore", spec.ProviderGCP,
		map[string]interface{}{"multi_az": true}), "us-central1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "firestore multi_az", line.Monthly, 25*2)

	// Catalog results must not be doubled a second time.
	line, err = e.EstimateComponent(ctx, comp("db", "rds", spec.ProviderAWS, map[string]interface{}{
		"instance_class": "db.t3.medium",
		"storage_gb":     100,
		"multi_az":       true,
	}), "us-east-1", spec.PricingOnDemand)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "rds multi_az once", line.Monthly, 0.068*730*2+100*0.115)
}

func TestDiscountAppliesAtEveryLayer(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Catalog layer.
	line, err := e.EstimateComponent(ctx, comp("app", "ec2", spec.ProviderAWS,
		map[string]interface{}{"instance_type": "m5.large"}), "us-east-1", spec.PricingSpot)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "ec2 spot", line.Monthly, 0.096*730*0.3)

	// Formula layer, multiplier applied after the discount.
	line, err = e.EstimateComponent(ctx, comp("k8s", "eks", spec.ProviderAWS, nil), "us-east-1", spec.PricingReserved1Yr)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "eks reserved_1yr", line.Monthly, 0.10*730*0.6*3)

	// Fallback layer.
	line, err = e.EstimateComponent(ctx, comp("x", "quantum_annealer", spec.ProviderAWS, nil), "us-east-1", spec.PricingReserved3Yr)
	if err != nil {
		t.Fatalf("EstimateComponent failed: %v", err)
	}
	approx(t, "fallback reserved_3yr", line.Monthly, 10*0.4)
}

func TestEstimateTierFromMetadata(t *testing.T) {
	e := newTestEngine(t)
	s := archSpec(comp("app", "ec2", spec.ProviderAWS, map[string]interface{}{"instance_type": "m5.large"}))
	s.Metadata = spec.Config{MetadataPricingTier: spec.String("spot")}

	estimate, err := e.Estimate(context.Background(), s)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	approx(t, "spot via metadata", estimate.Breakdown[0].Monthly, 0.096*730*0.3)

	// Invalid tiers fall back to on-demand.
	s.Metadata = spec.Config{MetadataPricingTier: spec.String("weekly")}
	estimate, err = e.Estimate(context.Background(), s)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	approx(t, "invalid tier", estimate.Breakdown[0].Monthly, 0.096*730)
}

func TestTransferCrossProvider(t *testing.T) {
	e := newTestEngine(t)
	s := archSpec(
		comp("app", "ec2", spec.ProviderAWS, map[string]interface{}{"instance_type": "m5.large"}),
		comp("db", "cloud_sql", spec.ProviderGCP, map[string]interface{}{"instance_class": "db-n1-standard-1"}),
	)
	s.Connections = []*spec.Connection{
		{Source: "app", Target: "db", EstimatedMonthlyGB: 100},
		// gcp egress would be 0.12; cross-provider flattens to 0.09.
		{Source: "db", Target: "app", EstimatedMonthlyGB: 10},
		// Connections without a traffic estimate cost nothing.
		{Source: "app", Target: "db"},
		// Dangling endpoints fall back to the default rate.
		{Source: "ghost", Target: "app", EstimatedMonthlyGB: 10},
	}

	estimate, err := e.Estimate(context.Background(), s)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	approx(t, "transfer", estimate.DataTransferMonthly, 100*0.09+10*0.09+10*0.09)
}

func TestTransferEgressByProvider(t *testing.T) {
	e := newTestEngine(t)
	s := &spec.ArchSpec{
		Name:     "gcp-only",
		Provider: spec.ProviderGCP,
		Region:   "us-central1",
		Components: []*spec.Component{
			comp("app", "compute_engine", spec.ProviderGCP, map[string]interface{}{"machine_type": "n2-standard-2"}),
			comp("bucket", "cloud_storage", spec.ProviderGCP, map[string]interface{}{"storage_gb": 100}),
		},
		Connections: []*spec.Connection{
			// compute_engine has no override: gcp egress 0.12.
			{Source: "app", Target: "bucket", EstimatedMonthlyGB: 100},
			// cloud_storage overrides to 0.01 regardless of provider.
			{Source: "bucket", Target: "app", EstimatedMonthlyGB: 100},
		},
	}

	estimate, err := e.Estimate(context.Background(), s)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	approx(t, "gcp transfer", estimate.DataTransferMonthly, 100*0.12+100*0.01)
}

func TestDescribeConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
		want   string
	}{
		{"empty", nil, ""},
		{"instance only", map[string]interface{}{"instance_type": "m5.large"}, "m5.large"},
		{"full", map[string]interface{}{
			"instance_type": "m5.large",
			"count":         2,
			"multi_az":      true,
			"storage_gb":    100,
			"engine":        "postgres",
		}, "m5.large, 2x, Multi-AZ, 100GB storage, postgres"},
		{"count of one hidden", map[string]interface{}{"instance_type": "t3.micro", "count": 1}, "t3.micro"},
		{"node type", map[string]interface{}{"node_type": "cache.t3.medium"}, "cache.t3.medium"},
	}
	for _, tt := range tests {
		c := comp("x", "ec2", spec.ProviderAWS, tt.config)
		if got := describeConfig(c.Config); got != tt.want {
			t.Errorf("%s: describeConfig = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFallbackLookup(t *testing.T) {
	table, _ := tables()
	tests := []struct {
		service string
		want    float64
	}{
		{"ec2", 150},
		{"aws_msk_cluster", 150},
		{"google_cloud_sql_thing", 200},
		{"quantum_annealer", 10},
		{"iam", 0},
	}
	for _, tt := range tests {
		if got := table.lookup(tt.service); got != tt.want {
			t.Errorf("lookup(%s) = %v, want %v", tt.service, got, tt.want)
		}
	}
}
