// Package validate runs compliance framework checks against
// architecture specs. Each framework contributes a fixed check set; the
// service classes the checks reason about (data stores, WAFs, loggers)
// are data, loaded from the bundled framework tables.
package validate

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"cloudwright/core/registry"
	"cloudwright/core/spec"
	"cloudwright/data"
	"cloudwright/internal/logging"
)

// Validator evaluates specs against compliance frameworks.
type Validator struct {
	reg *registry.Registry
	log *zap.Logger
}

// New creates a validator. The registry resolves equivalence-group
// membership for checks that look for a role rather than a service.
func New(reg *registry.Registry) *Validator {
	return &Validator{reg: reg, log: logging.Named("validate")}
}

// framework is one compliance standard: an ordered check set and the
// severity that gates the overall pass flag. Results carry the display
// name; lookup goes by the map key.
type framework struct {
	name    string
	display string
	gate    spec.Severity
	checks  []checkFn
}

var frameworks = map[string]*framework{
	"hipaa": {
		name:    "hipaa",
		display: "HIPAA",
		gate:    spec.SeverityCritical,
		checks: []checkFn{
			encryptionAtRest(spec.SeverityCritical),
			encryptionInTransit(spec.SeverityCritical),
			classPresent("audit_logging", "logging", spec.SeverityHigh,
				(*data.ServiceClasses).IsLogging,
				"audit logging service", "add an audit logging service such as cloudtrail or cloud_audit_logs"),
			classPresent("access_control", "identity", spec.SeverityHigh,
				(*data.ServiceClasses).IsAuth,
				"access control service", "add an identity service such as iam or cognito"),
			baaEligible(spec.SeverityHigh),
		},
	},
	"pci_dss": {
		name:    "pci_dss",
		display: "PCI-DSS",
		gate:    spec.SeverityCritical,
		checks: []checkFn{
			classPresent("waf", "network", spec.SeverityHigh,
				(*data.ServiceClasses).IsWAF,
				"web application firewall", "add a WAF in front of public endpoints"),
			networkSegmentation(spec.SeverityHigh),
			encryptionAtRest(spec.SeverityCritical),
			encryptionInTransit(spec.SeverityCritical),
			classPresent("logging", "logging", spec.SeverityHigh,
				(*data.ServiceClasses).IsLogging,
				"logging service", "add a logging service to capture access trails"),
		},
	},
	"soc2": {
		name:    "soc2",
		display: "SOC 2",
		gate:    spec.SeverityCritical,
		checks: []checkFn{
			classPresent("logging", "logging", spec.SeverityHigh,
				(*data.ServiceClasses).IsLogging,
				"logging service", "add a logging service to capture access trails"),
			classPresent("access_control", "identity", spec.SeverityHigh,
				(*data.ServiceClasses).IsAuth,
				"access control service", "add an identity service such as iam or cognito"),
			availability(spec.SeverityMedium),
			ciCD(spec.SeverityLow),
		},
	},
	"fedramp_moderate": {
		name:    "fedramp_moderate",
		display: "FedRAMP Moderate",
		gate:    spec.SeverityCritical,
		checks: []checkFn{
			encryptionAtRest(spec.SeverityCritical),
			usRegion(spec.SeverityCritical),
			classPresent("mfa_auth", "identity", spec.SeverityCritical,
				(*data.ServiceClasses).IsAuth,
				"MFA-capable auth service", "add an identity service with MFA support"),
			classPresent("audit_logging", "logging", spec.SeverityCritical,
				(*data.ServiceClasses).IsLogging,
				"audit logging service", "add an audit logging service such as cloudtrail or cloud_audit_logs"),
			classPresent("access_control", "identity", spec.SeverityHigh,
				(*data.ServiceClasses).IsAuth,
				"access control service", "add an identity service such as iam or cognito"),
			classPresent("continuous_monitoring", "operations", spec.SeverityHigh,
				(*data.ServiceClasses).IsMonitoring,
				"monitoring service", "add a monitoring service such as cloudwatch or cloud_monitoring"),
			classPresent("incident_response", "operations", spec.SeverityMedium,
				(*data.ServiceClasses).IsAlerting,
				"alerting service", "add an alerting service such as sns or event_grid"),
		},
	},
	"gdpr": {
		name:    "gdpr",
		display: "GDPR",
		gate:    spec.SeverityCritical,
		checks: []checkFn{
			euRegion(spec.SeverityCritical),
			encryptionAtRest(spec.SeverityCritical),
			encryptionInTransit(spec.SeverityCritical),
			classPresent("access_control", "identity", spec.SeverityHigh,
				(*data.ServiceClasses).IsAuth,
				"access control service", "add an identity service such as iam or cognito"),
			classPresent("audit_trail", "logging", spec.SeverityHigh,
				(*data.ServiceClasses).IsLogging,
				"audit trail service", "add an audit logging service such as cloudtrail or cloud_audit_logs"),
			dataDeletion(spec.SeverityMedium),
		},
	},
	"well_architected": {
		name:    "well_architected",
		display: "Well-Architected",
		gate:    spec.SeverityCritical,
		checks: []checkFn{
			multiAZAnywhere(spec.SeverityHigh),
			autoScaling(spec.SeverityMedium),
			backups(spec.SeverityMedium),
			classPresent("monitoring", "operations", spec.SeverityHigh,
				(*data.ServiceClasses).IsMonitoring,
				"monitoring service", "add a monitoring service such as cloudwatch or cloud_monitoring"),
			noSPOF(spec.SeverityHigh),
			costOptimization(spec.SeverityLow),
			securityPillar(spec.SeverityHigh),
		},
	},
}

// Short and hyphenated spellings accepted on input.
var aliases = map[string]string{
	"pci":     "pci_dss",
	"soc_2":   "soc2",
	"fedramp": "fedramp_moderate",
}

// Frameworks returns the supported framework names, sorted.
func Frameworks() []string {
	names := make([]string, 0, len(frameworks))
	for name := range frameworks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) *framework {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	return frameworks[key]
}

// Validate runs each requested framework against the spec. Unknown
// framework names are skipped with a warning; results come back in
// request order.
func (v *Validator) Validate(s *spec.ArchSpec, names []string) []spec.ValidationResult {
	classes, err := data.LoadServiceClasses()
	if err != nil {
		v.log.Error("service class tables unavailable", zap.Error(err))
		return nil
	}

	var results []spec.ValidationResult
	for _, name := range names {
		fw := lookup(name)
		if fw == nil {
			v.log.Warn("unknown compliance framework, skipping", zap.String("framework", name))
			continue
		}
		result := v.run(fw, s, classes)
		v.log.Debug("validated spec",
			zap.String("framework", fw.name),
			zap.Bool("passed", result.Passed),
			zap.Float64("score", result.Score))
		results = append(results, result)
	}
	return results
}

func (v *Validator) run(fw *framework, s *spec.ArchSpec, classes *data.ServiceClasses) spec.ValidationResult {
	result := spec.ValidationResult{Framework: fw.display, Passed: true}
	passed := 0
	for _, check := range fw.checks {
		c := check(v, s, classes)
		if c.Passed {
			passed++
		} else if c.Severity == fw.gate {
			result.Passed = false
		}
		result.Checks = append(result.Checks, c)
	}
	if len(fw.checks) > 0 {
		result.Score = float64(passed) / float64(len(fw.checks))
	}
	return result
}
