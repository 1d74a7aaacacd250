package spec

import (
	"math"
	"regexp"

	"cloudwright/internal/errors"
)

// idPattern accepts identifiers safe for emission as IaC resource names
var idPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// IsSafeID reports whether id is usable as an IaC resource name
func IsSafeID(id string) bool {
	return idPattern.MatchString(id)
}

// Validate checks the spec invariants. The first violation found is
// returned as an invalid-spec error.
func (s *ArchSpec) Validate() error {
	if !ValidProvider(s.Provider) {
		return errors.InvalidSpecf("unknown provider %q", s.Provider)
	}

	ids := make(map[string]bool, len(s.Components))
	for _, c := range s.Components {
		if !IsSafeID(c.ID) {
			return errors.InvalidSpecf("component id %q is not IaC-safe", c.ID)
		}
		if ids[c.ID] {
			return errors.InvalidSpecf("duplicate component id %q", c.ID)
		}
		ids[c.ID] = true
		if c.Service == "" {
			return errors.InvalidSpecf("component %q has no service", c.ID)
		}
		if !ValidProvider(c.Provider) {
			return errors.InvalidSpecf("component %q has unknown provider %q", c.ID, c.Provider)
		}
		if c.Tier < TierEdge || c.Tier > TierOps {
			return errors.InvalidSpecf("component %q tier %d out of range 0-4", c.ID, c.Tier)
		}
	}

	for _, conn := range s.Connections {
		if !ids[conn.Source] {
			return errors.InvalidSpecf("connection source %q does not exist", conn.Source)
		}
		if !ids[conn.Target] {
			return errors.InvalidSpecf("connection target %q does not exist", conn.Target)
		}
	}

	boundaryIDs := make(map[string]bool, len(s.Boundaries))
	for _, b := range s.Boundaries {
		if !IsSafeID(b.ID) {
			return errors.InvalidSpecf("boundary id %q is not IaC-safe", b.ID)
		}
		if boundaryIDs[b.ID] {
			return errors.InvalidSpecf("duplicate boundary id %q", b.ID)
		}
		boundaryIDs[b.ID] = true
	}
	for _, b := range s.Boundaries {
		if b.Parent != "" && !boundaryIDs[b.Parent] {
			return errors.InvalidSpecf("boundary %q parent %q does not exist", b.ID, b.Parent)
		}
	}

	if est := s.CostEstimate; est != nil {
		var sum float64
		for _, line := range est.Breakdown {
			sum += line.Monthly
		}
		want := math.Round((sum+est.DataTransferMonthly)*100) / 100
		if math.Abs(est.MonthlyTotal-want) > 0.01 {
			return errors.InvalidSpecf("cost estimate total %.2f does not match breakdown sum %.2f",
				est.MonthlyTotal, want)
		}
	}

	return nil
}
