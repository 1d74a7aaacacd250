package validate

import (
	"fmt"
	"strings"

	"cloudwright/core/spec"
	"cloudwright/data"
)

// checkFn produces one check result for a spec.
type checkFn func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck

// Config keys that satisfy the data-deletion capability.
var deletionKeys = []string{"ttl", "lifecycle", "retention_days"}

// Instance sizes flagged as oversized for a design-stage spec.
var oversized = []string{"16xlarge", "24xlarge", "32xlarge", "metal"}

// Config keys that may carry an instance size.
var sizeKeys = []string{"instance_type", "machine_type", "vm_size", "instance_class", "node_type"}

// classPresent builds a check that passes when any component's service
// belongs to the class.
func classPresent(name, category string, severity spec.Severity, class func(*data.ServiceClasses, string) bool, what, recommendation string) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: name, Category: category, Severity: severity}
		for _, c := range s.Components {
			if class(classes, c.Service) {
				check.Passed = true
				return check
			}
		}
		check.Detail = "no " + what + " in the spec"
		check.Recommendation = recommendation
		return check
	}
}

// encryptionAtRest requires encryption on every data store.
func encryptionAtRest(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "encryption_at_rest", Category: "encryption", Severity: severity, Passed: true}
		var plain []string
		for _, c := range s.Components {
			if classes.IsDataStore(c.Service) && !c.Config.FlagOr("encryption", false) {
				plain = append(plain, c.ID)
			}
		}
		if len(plain) > 0 {
			check.Passed = false
			check.Detail = "unencrypted data stores: " + strings.Join(plain, ", ")
			check.Recommendation = "set encryption: true on every data store"
		}
		return check
	}
}

// encryptionInTransit rejects plaintext protocols on connections.
func encryptionInTransit(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "encryption_in_transit", Category: "encryption", Severity: severity, Passed: true}
		var plain []string
		for _, conn := range s.Connections {
			p := strings.ToLower(conn.Protocol)
			if p == "http" || p == "ftp" {
				plain = append(plain, fmt.Sprintf("%s to %s (%s)", conn.Source, conn.Target, p))
			}
		}
		if len(plain) > 0 {
			check.Passed = false
			check.Detail = "plaintext connections: " + strings.Join(plain, ", ")
			check.Recommendation = "use https or another encrypted protocol on all connections"
		}
		return check
	}
}

// baaEligible requires every service to appear on the provider's
// business associate agreement list.
func baaEligible(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "baa_eligibility", Category: "governance", Severity: severity, Passed: true}
		var outside []string
		for _, c := range s.Components {
			provider := c.Provider
			if provider == "" {
				provider = s.Provider
			}
			if !classes.IsBAAEligible(string(provider), c.Service) {
				outside = append(outside, c.Service)
			}
		}
		if len(outside) > 0 {
			check.Passed = false
			check.Detail = "services outside the BAA: " + strings.Join(outside, ", ")
			check.Recommendation = "replace non-eligible services or confirm coverage with the provider"
		}
		return check
	}
}

// networkSegmentation passes with a WAF or segmented compute.
func networkSegmentation(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "network_segmentation", Category: "network", Severity: severity}
		for _, c := range s.Components {
			if classes.IsWAF(c.Service) {
				check.Passed = true
				return check
			}
			if classes.IsCompute(c.Service) && (c.Config.Has("security_groups") || c.Config.Has("private_subnet")) {
				check.Passed = true
				return check
			}
		}
		check.Detail = "no WAF and no compute behind security groups or private subnets"
		check.Recommendation = "add a WAF or isolate compute with security_groups or private_subnet"
		return check
	}
}

// availability passes when anything is multi-AZ or load balanced.
func availability(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "availability", Category: "resilience", Severity: severity}
		for _, c := range s.Components {
			if c.Config.FlagOr("multi_az", false) || classes.IsLoadBalancer(c.Service) {
				check.Passed = true
				return check
			}
		}
		check.Detail = "no multi-AZ component and no load balancer"
		check.Recommendation = "enable multi_az on stateful services or add a load balancer"
		return check
	}
}

// ciCD looks for a member of the ci_cd equivalence group.
func ciCD(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "ci_cd", Category: "operations", Severity: severity}
		for _, c := range s.Components {
			provider := c.Provider
			if provider == "" {
				provider = s.Provider
			}
			if group := v.reg.GroupFor(provider, c.Service); group != nil && group.Name == "ci_cd" {
				check.Passed = true
				return check
			}
		}
		check.Detail = "no CI/CD service in the spec"
		check.Recommendation = "add a delivery pipeline such as codepipeline or cloud_build"
		return check
	}
}

// usRegion requires a US region, including normalized buckets for
// providers whose codes do not start with us-.
func usRegion(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "us_region", Category: "residency", Severity: severity}
		if strings.HasPrefix(s.Region, "us-") || strings.HasPrefix(s.Region, "us-gov-") {
			check.Passed = true
			return check
		}
		if table, err := data.LoadRegions(); err == nil && strings.HasPrefix(table.Normalize(s.Region), "us_") {
			check.Passed = true
			return check
		}
		check.Detail = fmt.Sprintf("region %s is outside the US", s.Region)
		check.Recommendation = "deploy to a us-* or us-gov-* region"
		return check
	}
}

// euRegion requires an EU region for data residency.
func euRegion(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "eu_region", Category: "residency", Severity: severity}
		if table, err := data.LoadRegions(); err == nil && table.IsEU(s.Region) {
			check.Passed = true
			return check
		}
		check.Detail = fmt.Sprintf("region %s is outside the EU", s.Region)
		check.Recommendation = "deploy to an EU region such as eu-west-1 or europe-west1"
		return check
	}
}

// dataDeletion requires a deletion mechanism on every data store.
func dataDeletion(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "data_deletion", Category: "governance", Severity: severity, Passed: true}
		var missing []string
		for _, c := range s.Components {
			if classes.IsDataStore(c.Service) && !hasAnyKey(c.Config, deletionKeys) {
				missing = append(missing, c.ID)
			}
		}
		if len(missing) > 0 {
			check.Passed = false
			check.Detail = "data stores without a deletion mechanism: " + strings.Join(missing, ", ")
			check.Recommendation = "configure ttl, lifecycle, or retention_days on every data store"
		}
		return check
	}
}

// multiAZAnywhere requires at least one multi-AZ component.
func multiAZAnywhere(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "multi_az", Category: "resilience", Severity: severity}
		for _, c := range s.Components {
			if c.Config.FlagOr("multi_az", false) {
				check.Passed = true
				return check
			}
		}
		check.Detail = "no component spans availability zones"
		check.Recommendation = "enable multi_az on at least the primary database"
		return check
	}
}

// autoScaling requires auto_scaling on every compute component.
func autoScaling(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "auto_scaling", Category: "resilience", Severity: severity, Passed: true}
		var fixed []string
		for _, c := range s.Components {
			if classes.IsCompute(c.Service) && !c.Config.FlagOr("auto_scaling", false) {
				fixed = append(fixed, c.ID)
			}
		}
		if len(fixed) > 0 {
			check.Passed = false
			check.Detail = "compute without auto scaling: " + strings.Join(fixed, ", ")
			check.Recommendation = "enable auto_scaling on compute components"
		}
		return check
	}
}

// backups requires backup on every data store.
func backups(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "backups", Category: "resilience", Severity: severity, Passed: true}
		var missing []string
		for _, c := range s.Components {
			if classes.IsDataStore(c.Service) && !c.Config.FlagOr("backup", false) {
				missing = append(missing, c.ID)
			}
		}
		if len(missing) > 0 {
			check.Passed = false
			check.Detail = "data stores without backup: " + strings.Join(missing, ", ")
			check.Recommendation = "set backup: true on every data store"
		}
		return check
	}
}

// noSPOF requires a load balancer and replicated databases.
func noSPOF(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "no_spof", Category: "resilience", Severity: severity}
		balanced := false
		var unreplicated []string
		for _, c := range s.Components {
			if classes.IsLoadBalancer(c.Service) {
				balanced = true
			}
			if classes.IsDatabase(c.Service) && !replicated(c.Config) {
				unreplicated = append(unreplicated, c.ID)
			}
		}
		switch {
		case !balanced:
			check.Detail = "no load balancer in front of the architecture"
			check.Recommendation = "add a load balancer"
		case len(unreplicated) > 0:
			check.Detail = "unreplicated databases: " + strings.Join(unreplicated, ", ")
			check.Recommendation = "enable multi_az or read replicas on databases"
		default:
			check.Passed = true
		}
		return check
	}
}

// costOptimization flags oversized instances.
func costOptimization(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "cost_optimization", Category: "cost", Severity: severity, Passed: true}
		var outsized []string
		for _, c := range s.Components {
			for _, key := range sizeKeys {
				name, ok := c.Config.Str(key)
				if !ok {
					continue
				}
				for _, size := range oversized {
					if strings.Contains(name, size) {
						outsized = append(outsized, fmt.Sprintf("%s (%s)", c.ID, name))
					}
				}
			}
		}
		if len(outsized) > 0 {
			check.Passed = false
			check.Detail = "oversized instances: " + strings.Join(outsized, ", ")
			check.Recommendation = "right-size instances before committing to the design"
		}
		return check
	}
}

// securityPillar bundles WAF, auth, and full encryption.
func securityPillar(severity spec.Severity) checkFn {
	return func(v *Validator, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationCheck {
		check := spec.ValidationCheck{Name: "security", Category: "security", Severity: severity}
		var gaps []string
		if !anyService(s, classes, (*data.ServiceClasses).IsWAF) {
			gaps = append(gaps, "no WAF")
		}
		if !anyService(s, classes, (*data.ServiceClasses).IsAuth) {
			gaps = append(gaps, "no auth service")
		}
		if !encryptionAtRest(severity)(v, s, classes).Passed {
			gaps = append(gaps, "unencrypted data stores")
		}
		if !encryptionInTransit(severity)(v, s, classes).Passed {
			gaps = append(gaps, "plaintext connections")
		}
		if len(gaps) > 0 {
			check.Detail = strings.Join(gaps, "; ")
			check.Recommendation = "add WAF and auth services and encrypt data at rest and in transit"
			return check
		}
		check.Passed = true
		return check
	}
}

func anyService(s *spec.ArchSpec, classes *data.ServiceClasses, class func(*data.ServiceClasses, string) bool) bool {
	for _, c := range s.Components {
		if class(classes, c.Service) {
			return true
		}
	}
	return false
}

func hasAnyKey(cfg spec.Config, keys []string) bool {
	for _, key := range keys {
		if cfg.Has(key) {
			return true
		}
	}
	return false
}

func replicated(cfg spec.Config) bool {
	if cfg.FlagOr("multi_az", false) {
		return true
	}
	return cfg.FloatOr("read_replicas", 0) > 0 || cfg.FloatOr("replicas", 0) > 0
}
