// Package spec defines the architecture specification model shared by
// every subsystem: components, connections, boundaries, constraints,
// cost estimates, and the derived result types.
package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Provider identifies a cloud provider
type Provider string

const (
	// ProviderAWS is Amazon Web Services
	ProviderAWS Provider = "aws"

	// ProviderGCP is Google Cloud Platform
	ProviderGCP Provider = "gcp"

	// ProviderAzure is Microsoft Azure
	ProviderAzure Provider = "azure"
)

// KnownProviders lists the supported providers in canonical order
func KnownProviders() []Provider {
	return []Provider{ProviderAWS, ProviderGCP, ProviderAzure}
}

// ValidProvider reports whether p is a supported provider
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderAWS, ProviderGCP, ProviderAzure:
		return true
	}
	return false
}

// PricingTier identifies a purchase model applied as a discount multiplier
type PricingTier string

const (
	// PricingOnDemand is pay-as-you-go pricing
	PricingOnDemand PricingTier = "on_demand"

	// PricingReserved1Yr is a one-year reservation
	PricingReserved1Yr PricingTier = "reserved_1yr"

	// PricingReserved3Yr is a three-year reservation
	PricingReserved3Yr PricingTier = "reserved_3yr"

	// PricingSpot is interruptible capacity
	PricingSpot PricingTier = "spot"
)

// ValidPricingTier reports whether t is a known pricing tier
func ValidPricingTier(t PricingTier) bool {
	switch t {
	case PricingOnDemand, PricingReserved1Yr, PricingReserved3Yr, PricingSpot:
		return true
	}
	return false
}

// Discount returns the price multiplier for the tier. Unknown tiers
// price as on-demand.
func (t PricingTier) Discount() float64 {
	switch t {
	case PricingReserved1Yr:
		return 0.6
	case PricingReserved3Yr:
		return 0.4
	case PricingSpot:
		return 0.3
	default:
		return 1.0
	}
}

// Severity ranks a validation check finding
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Defaults applied to sparse specs on load
const (
	DefaultVersion  = 1
	DefaultProvider = ProviderAWS
	DefaultRegion   = "us-east-1"
	DefaultTier     = 2
	DefaultCurrency = "USD"
)

// Component tiers, edge first
const (
	TierEdge    = 0
	TierIngress = 1
	TierCompute = 2
	TierData    = 3
	TierOps     = 4
)

// ArchSpec is the canonical representation of a cloud architecture.
// Mutation is by replacement: subsystems that change a spec return a
// modified deep copy and never write through a shared pointer.
type ArchSpec struct {
	Name         string        `yaml:"name" json:"name"`
	Version      int           `yaml:"version" json:"version"`
	Provider     Provider      `yaml:"provider" json:"provider"`
	Region       string        `yaml:"region" json:"region"`
	Constraints  *Constraints  `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Components   []*Component  `yaml:"components,omitempty" json:"components,omitempty"`
	Connections  []*Connection `yaml:"connections,omitempty" json:"connections,omitempty"`
	Boundaries   []*Boundary   `yaml:"boundaries,omitempty" json:"boundaries,omitempty"`
	CostEstimate *CostEstimate `yaml:"cost_estimate,omitempty" json:"cost_estimate,omitempty"`
	Metadata     Config        `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Component is a single cloud resource in an architecture
type Component struct {
	ID          string   `yaml:"id" json:"id"`
	Service     string   `yaml:"service" json:"service"`
	Provider    Provider `yaml:"provider" json:"provider"`
	Label       string   `yaml:"label,omitempty" json:"label,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tier        int      `yaml:"tier" json:"tier"`
	Config      Config   `yaml:"config,omitempty" json:"config,omitempty"`
}

// Connection is a directed edge between two components
type Connection struct {
	Source             string  `yaml:"source" json:"source"`
	Target             string  `yaml:"target" json:"target"`
	Label              string  `yaml:"label,omitempty" json:"label,omitempty"`
	Protocol           string  `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	Port               int     `yaml:"port,omitempty" json:"port,omitempty"`
	EstimatedMonthlyGB float64 `yaml:"estimated_monthly_gb,omitempty" json:"estimated_monthly_gb,omitempty"`
}

// Boundary is an isolation container (VPC, subnet, account, region)
type Boundary struct {
	ID           string   `yaml:"id" json:"id"`
	Kind         string   `yaml:"kind" json:"kind"`
	Label        string   `yaml:"label,omitempty" json:"label,omitempty"`
	Parent       string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	ComponentIDs []string `yaml:"component_ids,omitempty" json:"component_ids,omitempty"`
	Config       Config   `yaml:"config,omitempty" json:"config,omitempty"`
}

// Constraints carries the design constraints a spec was produced under
type Constraints struct {
	Compliance    []string `yaml:"compliance,omitempty" json:"compliance,omitempty"`
	BudgetMonthly float64  `yaml:"budget_monthly,omitempty" json:"budget_monthly,omitempty"`
	Availability  float64  `yaml:"availability,omitempty" json:"availability,omitempty"`
	Regions       []string `yaml:"regions,omitempty" json:"regions,omitempty"`
	LatencyMS     float64  `yaml:"latency_ms,omitempty" json:"latency_ms,omitempty"`
	DataResidency []string `yaml:"data_residency,omitempty" json:"data_residency,omitempty"`
	ThroughputRPS float64  `yaml:"throughput_rps,omitempty" json:"throughput_rps,omitempty"`
}

// CostEstimate is the pricing output attached to a spec
type CostEstimate struct {
	MonthlyTotal        float64         `yaml:"monthly_total" json:"monthly_total"`
	Breakdown           []ComponentCost `yaml:"breakdown,omitempty" json:"breakdown,omitempty"`
	DataTransferMonthly float64         `yaml:"data_transfer_monthly,omitempty" json:"data_transfer_monthly,omitempty"`
	Currency            string          `yaml:"currency" json:"currency"`
	AsOf                string          `yaml:"as_of" json:"as_of"`
}

// ComponentCost is one line of a cost breakdown.
// Breakdown order follows ArchSpec.Components order.
type ComponentCost struct {
	ComponentID string  `yaml:"component_id" json:"component_id"`
	Service     string  `yaml:"service" json:"service"`
	Monthly     float64 `yaml:"monthly" json:"monthly"`
	Hourly      float64 `yaml:"hourly,omitempty" json:"hourly,omitempty"`
	Notes       string  `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Alternative is a spec rewritten for another provider and repriced
type Alternative struct {
	Provider       Provider  `yaml:"provider" json:"provider"`
	MonthlyTotal   float64   `yaml:"monthly_total" json:"monthly_total"`
	Spec           *ArchSpec `yaml:"spec" json:"spec"`
	KeyDifferences []string  `yaml:"key_differences,omitempty" json:"key_differences,omitempty"`
}

// FieldChange records one differing field between two versions of a component
type FieldChange struct {
	ComponentID string      `yaml:"component_id" json:"component_id"`
	Field       string      `yaml:"field" json:"field"`
	OldValue    interface{} `yaml:"old_value" json:"old_value"`
	NewValue    interface{} `yaml:"new_value" json:"new_value"`
}

// ConnectionChange records a connection added, removed, or changed
type ConnectionChange struct {
	Kind     string      `yaml:"kind" json:"kind"`
	Source   string      `yaml:"source" json:"source"`
	Target   string      `yaml:"target" json:"target"`
	Field    string      `yaml:"field,omitempty" json:"field,omitempty"`
	OldValue interface{} `yaml:"old_value,omitempty" json:"old_value,omitempty"`
	NewValue interface{} `yaml:"new_value,omitempty" json:"new_value,omitempty"`
}

// Connection change kinds
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
	ChangeChanged = "changed"
)

// DiffResult is the structural delta between two specs
type DiffResult struct {
	Added             []*Component       `yaml:"added,omitempty" json:"added,omitempty"`
	Removed           []*Component       `yaml:"removed,omitempty" json:"removed,omitempty"`
	Changed           []FieldChange      `yaml:"changed,omitempty" json:"changed,omitempty"`
	ConnectionChanges []ConnectionChange `yaml:"connection_changes,omitempty" json:"connection_changes,omitempty"`
	CostDelta         float64            `yaml:"cost_delta" json:"cost_delta"`
	Summary           string             `yaml:"summary" json:"summary"`
}

// ValidationCheck is one compliance or well-architected check outcome
type ValidationCheck struct {
	Name           string   `yaml:"name" json:"name"`
	Category       string   `yaml:"category" json:"category"`
	Passed         bool     `yaml:"passed" json:"passed"`
	Severity       Severity `yaml:"severity" json:"severity"`
	Detail         string   `yaml:"detail,omitempty" json:"detail,omitempty"`
	Recommendation string   `yaml:"recommendation,omitempty" json:"recommendation,omitempty"`
}

// ValidationResult is the outcome of one framework's check set.
// Passed is true iff no check at the framework's gating severity failed.
type ValidationResult struct {
	Framework string            `yaml:"framework" json:"framework"`
	Passed    bool              `yaml:"passed" json:"passed"`
	Score     float64           `yaml:"score" json:"score"`
	Checks    []ValidationCheck `yaml:"checks" json:"checks"`
}

// ComponentByID returns the component with the given id, or nil
func (s *ArchSpec) ComponentByID(id string) *Component {
	for _, c := range s.Components {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// BoundaryByID returns the boundary with the given id, or nil
func (s *ArchSpec) BoundaryByID(id string) *Boundary {
	for _, b := range s.Boundaries {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Providers returns the distinct providers used by components, sorted.
// An empty architecture reports the spec-level provider.
func (s *ArchSpec) Providers() []Provider {
	seen := make(map[Provider]bool)
	for _, c := range s.Components {
		if c.Provider != "" {
			seen[c.Provider] = true
		}
	}
	if len(seen) == 0 {
		return []Provider{s.Provider}
	}
	out := make([]Provider, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fingerprint returns a stable content hash of the spec, used to detect
// whether a cached estimate is stale
func (s *ArchSpec) Fingerprint() string {
	data, err := s.ToJSON()
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
