// Package score grades architecture specs across five weighted
// dimensions: reliability, security, cost efficiency, compliance, and
// complexity. Dimension scores live on a 0 to 100 scale; the weighted
// total maps onto letter grades.
package score

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"cloudwright/core/spec"
	"cloudwright/core/validate"
	"cloudwright/data"
	"cloudwright/internal/errors"
	"cloudwright/internal/logging"
)

// Dimension weights, summing to 1.
const (
	weightReliability = 0.30
	weightSecurity    = 0.25
	weightCost        = 0.20
	weightCompliance  = 0.15
	weightComplexity  = 0.10
)

// neutralCompliance is the score used when a spec declares no
// compliance constraints to validate against.
const neutralCompliance = 70

// Scorecard is the graded outcome for one spec.
type Scorecard struct {
	Total      float64     `yaml:"total" json:"total"`
	Grade      string      `yaml:"grade" json:"grade"`
	Dimensions []Dimension `yaml:"dimensions" json:"dimensions"`
}

// Dimension is one weighted scoring axis with human findings.
type Dimension struct {
	Name     string   `yaml:"name" json:"name"`
	Weight   float64  `yaml:"weight" json:"weight"`
	Score    float64  `yaml:"score" json:"score"`
	Findings []string `yaml:"findings,omitempty" json:"findings,omitempty"`
}

// Scorer grades specs. The validator supplies the compliance dimension.
type Scorer struct {
	validator *validate.Validator
	log       *zap.Logger
}

// New creates a scorer over a validator.
func New(validator *validate.Validator) *Scorer {
	return &Scorer{validator: validator, log: logging.Named("score")}
}

// Score grades the spec. Specs are scored as-is: call it after cost
// estimation so the cost dimension sees the estimate.
func (sc *Scorer) Score(s *spec.ArchSpec) (*Scorecard, error) {
	classes, err := data.LoadServiceClasses()
	if err != nil {
		return nil, errors.Internal("load service classes", err)
	}

	dims := []Dimension{
		sc.reliability(s, classes),
		sc.security(s, classes),
		sc.costEfficiency(s, classes),
		sc.compliance(s),
		sc.complexity(s),
	}

	total := 0.0
	for _, d := range dims {
		total += d.Weight * d.Score
	}
	total = math.Round(total*10) / 10

	card := &Scorecard{Total: total, Grade: grade(total), Dimensions: dims}
	sc.log.Debug("scored spec",
		zap.String("name", s.Name),
		zap.Float64("total", card.Total),
		zap.String("grade", card.Grade))
	return card, nil
}

func grade(total float64) string {
	switch {
	case total >= 90:
		return "A"
	case total >= 80:
		return "B"
	case total >= 70:
		return "C"
	case total >= 60:
		return "D"
	default:
		return "F"
	}
}

// reliability spreads 20 points over each of five criteria: a load
// balancer, replicated databases, redundant compute, a CDN, and a
// cache. Class-wide criteria earn partial credit by fraction.
func (sc *Scorer) reliability(s *spec.ArchSpec, classes *data.ServiceClasses) Dimension {
	d := Dimension{Name: "reliability", Weight: weightReliability}

	if anyService(s, classes.IsLoadBalancer) {
		d.Score += 20
	} else {
		d.Findings = append(d.Findings, "no load balancer")
	}

	met, total := classFraction(s, classes.IsDatabase, func(c *spec.Component) bool {
		return c.Config.FlagOr("multi_az", false)
	})
	d.Score += 20 * ratio(met, total)
	if met < total {
		d.Findings = append(d.Findings, fmt.Sprintf("%d of %d databases lack multi_az", total-met, total))
	}

	met, total = classFraction(s, classes.IsCompute, func(c *spec.Component) bool {
		return c.Config.FloatOr("count", 1) > 1 || c.Config.FlagOr("auto_scaling", false)
	})
	d.Score += 20 * ratio(met, total)
	if met < total {
		d.Findings = append(d.Findings, fmt.Sprintf("%d of %d compute components have no redundancy", total-met, total))
	}

	if anyService(s, classes.IsCDN) {
		d.Score += 20
	} else {
		d.Findings = append(d.Findings, "no CDN")
	}
	if anyService(s, classes.IsCache) {
		d.Score += 20
	} else {
		d.Findings = append(d.Findings, "no cache layer")
	}
	return d
}

// security weighs WAF, auth, data-store encryption, and encrypted
// connections equally, with DNS at half weight. Encryption and
// transit criteria earn partial credit by fraction.
func (sc *Scorer) security(s *spec.ArchSpec, classes *data.ServiceClasses) Dimension {
	d := Dimension{Name: "security", Weight: weightSecurity}
	achieved, weights := 0.0, 0.0
	criterion := func(weight, value float64, finding string) {
		weights += weight
		achieved += weight * value
		if value < 1 && finding != "" {
			d.Findings = append(d.Findings, finding)
		}
	}

	criterion(1, boolScore(anyService(s, classes.IsWAF)), "no WAF")
	criterion(1, boolScore(anyService(s, classes.IsAuth)), "no auth service")

	met, total := classFraction(s, classes.IsDataStore, func(c *spec.Component) bool {
		return c.Config.FlagOr("encryption", false)
	})
	criterion(1, ratio(met, total), fmt.Sprintf("%d of %d data stores unencrypted", total-met, total))

	secure, conns := secureConnections(s)
	criterion(1, ratio(secure, conns), fmt.Sprintf("%d of %d connections use plaintext", conns-secure, conns))

	criterion(0.5, boolScore(anyService(s, classes.IsDNS)), "no managed DNS")

	d.Score = 100 * achieved / weights
	return d
}

// costEfficiency starts at 60 and adjusts for concentration, budget
// fit, and free-tier usage.
func (sc *Scorer) costEfficiency(s *spec.ArchSpec, classes *data.ServiceClasses) Dimension {
	d := Dimension{Name: "cost_efficiency", Weight: weightCost}
	d.Score = 60

	if s.CostEstimate != nil && s.CostEstimate.MonthlyTotal > 0 {
		for _, line := range s.CostEstimate.Breakdown {
			share := line.Monthly / s.CostEstimate.MonthlyTotal
			if share > 0.4 {
				d.Score -= 10
				d.Findings = append(d.Findings,
					fmt.Sprintf("%s carries %.0f%% of monthly cost", line.ComponentID, share*100))
				break
			}
		}
		if s.Constraints != nil && s.Constraints.BudgetMonthly > 0 {
			if s.CostEstimate.MonthlyTotal <= s.Constraints.BudgetMonthly {
				d.Score += 20
				d.Findings = append(d.Findings, "within monthly budget")
			} else {
				d.Score -= 20
				d.Findings = append(d.Findings,
					fmt.Sprintf("over budget: %.2f of %.2f", s.CostEstimate.MonthlyTotal, s.Constraints.BudgetMonthly))
			}
		}
	}

	free := 0
	for _, c := range s.Components {
		if classes.IsFreeTier(c.Service) {
			free++
		}
	}
	if free > 0 {
		bonus := math.Min(float64(free*5), 15)
		d.Score += bonus
		d.Findings = append(d.Findings, fmt.Sprintf("%d free-tier components", free))
	}

	d.Score = clamp(d.Score)
	return d
}

// compliance averages the validator scores for the declared frameworks,
// or sits at the neutral score when none are declared.
func (sc *Scorer) compliance(s *spec.ArchSpec) Dimension {
	d := Dimension{Name: "compliance", Weight: weightCompliance}
	if s.Constraints == nil || len(s.Constraints.Compliance) == 0 {
		d.Score = neutralCompliance
		d.Findings = []string{"no compliance constraints declared"}
		return d
	}

	results := sc.validator.Validate(s, s.Constraints.Compliance)
	if len(results) == 0 {
		d.Score = neutralCompliance
		d.Findings = []string{"no recognized compliance frameworks"}
		return d
	}

	sum := 0.0
	for _, r := range results {
		sum += r.Score
		state := "failed"
		if r.Passed {
			state = "passed"
		}
		d.Findings = append(d.Findings, fmt.Sprintf("%s: %.0f%% (%s)", r.Framework, r.Score*100, state))
	}
	d.Score = 100 * sum / float64(len(results))
	return d
}

// complexity starts at 80 and penalizes sprawl, dense or sparse
// connectivity, and provider spread; tiered layouts earn a bonus.
func (sc *Scorer) complexity(s *spec.ArchSpec) Dimension {
	d := Dimension{Name: "complexity", Weight: weightComplexity}
	d.Score = 80
	n := len(s.Components)

	switch {
	case n >= 15:
		d.Score -= 20
		d.Findings = append(d.Findings, fmt.Sprintf("%d components", n))
	case n >= 10:
		d.Score -= 10
		d.Findings = append(d.Findings, fmt.Sprintf("%d components", n))
	case n < 3:
		d.Score -= 10
		d.Findings = append(d.Findings, "fewer than 3 components")
	}

	if n > 0 {
		density := float64(len(s.Connections)) / float64(n)
		if density > 3 {
			d.Score -= 15
			d.Findings = append(d.Findings, fmt.Sprintf("connection density %.1f", density))
		} else if density < 0.5 {
			d.Score -= 10
			d.Findings = append(d.Findings, fmt.Sprintf("connection density %.1f", density))
		}
	}

	if len(s.Providers()) > 2 {
		d.Score -= 10
		d.Findings = append(d.Findings, fmt.Sprintf("%d providers", len(s.Providers())))
	}

	tiers := make(map[int]bool)
	for _, c := range s.Components {
		tiers[c.Tier] = true
	}
	if len(tiers) >= 3 {
		d.Score += 10
		d.Findings = append(d.Findings, "layered across 3 or more tiers")
	}

	d.Score = clamp(d.Score)
	return d
}

func anyService(s *spec.ArchSpec, class func(string) bool) bool {
	for _, c := range s.Components {
		if class(c.Service) {
			return true
		}
	}
	return false
}

// classFraction counts components in a class and how many of them
// satisfy the predicate.
func classFraction(s *spec.ArchSpec, class func(string) bool, ok func(*spec.Component) bool) (met, total int) {
	for _, c := range s.Components {
		if !class(c.Service) {
			continue
		}
		total++
		if ok(c) {
			met++
		}
	}
	return met, total
}

// secureConnections counts connections not using a plaintext protocol.
func secureConnections(s *spec.ArchSpec) (secure, total int) {
	for _, conn := range s.Connections {
		total++
		if conn.Protocol != "http" && conn.Protocol != "ftp" {
			secure++
		}
	}
	return secure, total
}

// ratio treats an empty class as fully satisfied.
func ratio(met, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(met) / float64(total)
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}
