package score

import (
	"fmt"
	"math"
	"slices"
	"testing"

	"cloudwright/core/registry"
	"cloudwright/core/spec"
	"cloudwright/core/validate"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.001 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry load failed: %v", err)
	}
	return New(validate.New(reg))
}

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

func dim(t *testing.T, card *Scorecard, name string) Dimension {
	t.Helper()
	for _, d := range card.Dimensions {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no dimension named %s in %v", name, card.Dimensions)
	return Dimension{}
}

// wellArchitected is a single-provider spec that satisfies every
// reliability and security criterion and sits under budget.
func wellArchitected() *spec.ArchSpec {
	cdn := comp("cdn", "cloudfront", nil)
	cdn.Tier = spec.TierEdge
	lb := comp("lb", "alb", nil)
	lb.Tier = spec.TierIngress
	web := comp("web", "ec2", map[string]interface{}{"auto_scaling": true})
	db := comp("db", "rds", map[string]interface{}{"multi_az": true, "encryption": true})
	db.Tier = spec.TierData
	cache := comp("cache", "elasticache", map[string]interface{}{"encryption": true})
	cache.Tier = spec.TierData
	assets := comp("assets", "s3", map[string]interface{}{"encryption": true})
	assets.Tier = spec.TierData
	dns := comp("dns", "route53", nil)
	dns.Tier = spec.TierEdge
	firewall := comp("firewall", "waf", nil)
	firewall.Tier = spec.TierEdge
	identity := comp("identity", "iam", nil)
	identity.Tier = spec.TierOps

	s := awsSpec(cdn, lb, web, db, cache, assets, dns, firewall, identity)
	s.Connections = []*spec.Connection{
		{Source: "cdn", Target: "lb", Protocol: "https"},
		{Source: "lb", Target: "web", Protocol: "https"},
		{Source: "web", Target: "db", Protocol: "postgresql"},
		{Source: "web", Target: "cache", Protocol: "redis"},
		{Source: "cdn", Target: "assets", Protocol: "https"},
	}
	s.Constraints = &spec.Constraints{BudgetMonthly: 600}
	s.CostEstimate = &spec.CostEstimate{
		MonthlyTotal: 500,
		Breakdown: []spec.ComponentCost{
			{ComponentID: "web", Monthly: 150},
			{ComponentID: "db", Monthly: 180},
			{ComponentID: "cache", Monthly: 80},
			{ComponentID: "cdn", Monthly: 50},
			{ComponentID: "assets", Monthly: 40},
		},
	}
	return s
}

func TestScoreWellArchitected(t *testing.T) {
	sc := newTestScorer(t)
	card, err := sc.Score(wellArchitected())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	approx(t, "total", card.Total, 91.5)
	if card.Grade != "A" {
		t.Errorf("grade = %s, want A", card.Grade)
	}

	order := []string{"reliability", "security", "cost_efficiency", "compliance", "complexity"}
	if len(card.Dimensions) != len(order) {
		t.Fatalf("got %d dimensions, want %d", len(card.Dimensions), len(order))
	}
	weights := 0.0
	for i, d := range card.Dimensions {
		if d.Name != order[i] {
			t.Errorf("dimension %d = %s, want %s", i, d.Name, order[i])
		}
		weights += d.Weight
	}
	approx(t, "weight sum", weights, 1.0)

	approx(t, "reliability", dim(t, card, "reliability").Score, 100)
	approx(t, "security", dim(t, card, "security").Score, 100)
	approx(t, "cost_efficiency", dim(t, card, "cost_efficiency").Score, 85)
	approx(t, "compliance", dim(t, card, "compliance").Score, 70)
	approx(t, "complexity", dim(t, card, "complexity").Score, 90)

	if f := dim(t, card, "reliability").Findings; len(f) != 0 {
		t.Errorf("reliability findings = %v, want none", f)
	}
	cost := dim(t, card, "cost_efficiency")
	if !slices.Contains(cost.Findings, "within monthly budget") {
		t.Errorf("cost findings = %v, want within monthly budget", cost.Findings)
	}
	if !slices.Contains(cost.Findings, "1 free-tier components") {
		t.Errorf("cost findings = %v, want free-tier note", cost.Findings)
	}
}

func TestScoreBareSpec(t *testing.T) {
	sc := newTestScorer(t)
	card, err := sc.Score(awsSpec(comp("web", "ec2", nil)))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	approx(t, "total", card.Total, 45.6)
	if card.Grade != "F" {
		t.Errorf("grade = %s, want F", card.Grade)
	}

	rel := dim(t, card, "reliability")
	approx(t, "reliability", rel.Score, 20)
	for _, want := range []string{
		"no load balancer",
		"1 of 1 compute components have no redundancy",
		"no CDN",
		"no cache layer",
	} {
		if !slices.Contains(rel.Findings, want) {
			t.Errorf("reliability findings = %v, want %q", rel.Findings, want)
		}
	}

	sec := dim(t, card, "security")
	approx(t, "security", sec.Score, 100*2/4.5)
	if len(sec.Findings) != 3 {
		t.Errorf("security findings = %v, want 3 entries", sec.Findings)
	}

	approx(t, "cost_efficiency", dim(t, card, "cost_efficiency").Score, 60)
	approx(t, "compliance", dim(t, card, "compliance").Score, 70)
	approx(t, "complexity", dim(t, card, "complexity").Score, 60)
}

func TestScoreCostConcentrationAppliedOnce(t *testing.T) {
	sc := newTestScorer(t)
	s := awsSpec(comp("a", "ec2", nil), comp("b", "ec2", nil), comp("c", "ec2", nil))
	s.CostEstimate = &spec.CostEstimate{
		MonthlyTotal: 1000,
		Breakdown: []spec.ComponentCost{
			{ComponentID: "a", Monthly: 450},
			{ComponentID: "b", Monthly: 450},
			{ComponentID: "c", Monthly: 100},
		},
	}
	card, err := sc.Score(s)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	cost := dim(t, card, "cost_efficiency")
	approx(t, "cost_efficiency", cost.Score, 50)
	if !slices.Contains(cost.Findings, "a carries 45% of monthly cost") {
		t.Errorf("cost findings = %v, want concentration note for a", cost.Findings)
	}
	if slices.Contains(cost.Findings, "b carries 45% of monthly cost") {
		t.Errorf("cost findings = %v, concentration penalty applied twice", cost.Findings)
	}
}

func TestScoreCostOverBudget(t *testing.T) {
	sc := newTestScorer(t)
	s := awsSpec(comp("a", "ec2", nil), comp("b", "ec2", nil), comp("c", "ec2", nil))
	s.Constraints = &spec.Constraints{BudgetMonthly: 800}
	s.CostEstimate = &spec.CostEstimate{
		MonthlyTotal: 1000,
		Breakdown: []spec.ComponentCost{
			{ComponentID: "a", Monthly: 400},
			{ComponentID: "b", Monthly: 350},
			{ComponentID: "c", Monthly: 250},
		},
	}
	card, err := sc.Score(s)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	cost := dim(t, card, "cost_efficiency")
	approx(t, "cost_efficiency", cost.Score, 40)
	if !slices.Contains(cost.Findings, "over budget: 1000.00 of 800.00") {
		t.Errorf("cost findings = %v, want over-budget note", cost.Findings)
	}
}

func TestScoreFreeTierBonusCapped(t *testing.T) {
	sc := newTestScorer(t)
	s := awsSpec(
		comp("identity", "iam", nil),
		comp("net", "vpc", nil),
		comp("vn", "virtual_network", nil),
		comp("directory", "users", nil),
	)
	card, err := sc.Score(s)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	cost := dim(t, card, "cost_efficiency")
	approx(t, "cost_efficiency", cost.Score, 75)
	if !slices.Contains(cost.Findings, "4 free-tier components") {
		t.Errorf("cost findings = %v, want free-tier note", cost.Findings)
	}
}

func TestScoreComplianceFromValidator(t *testing.T) {
	sc := newTestScorer(t)
	s := awsSpec(
		comp("logs", "cloudwatch", nil),
		comp("identity", "iam", nil),
		comp("lb", "alb", nil),
	)
	s.Constraints = &spec.Constraints{Compliance: []string{"soc2"}}
	card, err := sc.Score(s)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	// soc2 passes logging, access control, and availability; ci_cd fails.
	compliance := dim(t, card, "compliance")
	approx(t, "compliance", compliance.Score, 75)
	if !slices.Contains(compliance.Findings, "SOC 2: 75% (passed)") {
		t.Errorf("compliance findings = %v, want soc2 summary", compliance.Findings)
	}
}

func TestScoreComplianceUnknownFramework(t *testing.T) {
	sc := newTestScorer(t)
	s := awsSpec(comp("web", "ec2", nil))
	s.Constraints = &spec.Constraints{Compliance: []string{"itar"}}
	card, err := sc.Score(s)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	compliance := dim(t, card, "compliance")
	approx(t, "compliance", compliance.Score, 70)
	if !slices.Contains(compliance.Findings, "no recognized compliance frameworks") {
		t.Errorf("compliance findings = %v, want unrecognized note", compliance.Findings)
	}
}

func TestScoreComplexity(t *testing.T) {
	manyComps := func(n int) []*spec.Component {
		out := make([]*spec.Component, n)
		for i := range out {
			out[i] = comp(fmt.Sprintf("c%d", i), "ec2", nil)
		}
		return out
	}
	manyConns := func(n int) []*spec.Connection {
		out := make([]*spec.Connection, n)
		for i := range out {
			out[i] = &spec.Connection{Source: "c0", Target: "c1", Protocol: "https"}
		}
		return out
	}

	tests := []struct {
		name    string
		build   func() *spec.ArchSpec
		want    float64
		finding string
	}{
		{
			name: "two components",
			build: func() *spec.ArchSpec {
				s := awsSpec(manyComps(2)...)
				s.Connections = manyConns(1)
				return s
			},
			want:    70,
			finding: "fewer than 3 components",
		},
		{
			name: "ten components",
			build: func() *spec.ArchSpec {
				s := awsSpec(manyComps(10)...)
				s.Connections = manyConns(5)
				return s
			},
			want:    70,
			finding: "10 components",
		},
		{
			name: "fifteen components",
			build: func() *spec.ArchSpec {
				s := awsSpec(manyComps(15)...)
				s.Connections = manyConns(8)
				return s
			},
			want:    60,
			finding: "15 components",
		},
		{
			name: "dense connections",
			build: func() *spec.ArchSpec {
				s := awsSpec(manyComps(4)...)
				s.Connections = manyConns(13)
				return s
			},
			want:    65,
			finding: "connection density 3.2",
		},
		{
			name: "three providers",
			build: func() *spec.ArchSpec {
				comps := manyComps(3)
				comps[1].Provider = spec.ProviderGCP
				comps[2].Provider = spec.ProviderAzure
				s := awsSpec(comps...)
				s.Connections = manyConns(2)
				return s
			},
			want:    70,
			finding: "3 providers",
		},
		{
			name: "tier bonus",
			build: func() *spec.ArchSpec {
				comps := manyComps(3)
				comps[0].Tier = spec.TierEdge
				comps[2].Tier = spec.TierData
				s := awsSpec(comps...)
				s.Connections = manyConns(2)
				return s
			},
			want:    90,
			finding: "layered across 3 or more tiers",
		},
	}

	sc := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := sc.Score(tt.build())
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			complexity := dim(t, card, "complexity")
			approx(t, "complexity", complexity.Score, tt.want)
			if !slices.Contains(complexity.Findings, tt.finding) {
				t.Errorf("complexity findings = %v, want %q", complexity.Findings, tt.finding)
			}
		})
	}
}

func TestGradeBands(t *testing.T) {
	tests := []struct {
		total float64
		want  string
	}{
		{95, "A"},
		{90, "A"},
		{89.9, "B"},
		{80, "B"},
		{79.9, "C"},
		{70, "C"},
		{69.9, "D"},
		{60, "D"},
		{59.9, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		if got := grade(tt.total); got != tt.want {
			t.Errorf("grade(%v) = %s, want %s", tt.total, got, tt.want)
		}
	}
}
