package validate

import (
	"testing"

	"cloudwright/core/registry"
	"cloudwright/core/spec"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry load failed: %v", err)
	}
	return New(reg)
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

func awsSpec(region string, components ...*spec.Component) *spec.ArchSpec {
	return &spec.ArchSpec{
		Name:       "test",
		Version:    1,
		Provider:   spec.ProviderAWS,
		Region:     region,
		Components: components,
	}
}

// checkByName finds one check in a result; fails the test when absent.
func checkByName(t *testing.T, result spec.ValidationResult, name string) spec.ValidationCheck {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("%s: no check named %s in %v", result.Framework, name, result.Checks)
	return spec.ValidationCheck{}
}

func hipaaReadySpec() *spec.ArchSpec {
	s := awsSpec("us-east-1",
		comp("db", "rds", map[string]interface{}{"encryption": true, "multi_az": true}),
		comp("bucket", "s3", map[string]interface{}{"encryption": true}),
		comp("trail", "cloudtrail", nil),
		comp("identity", "iam", nil),
	)
	s.Connections = []*spec.Connection{{Source: "db", Target: "bucket", Protocol: "https"}}
	return s
}

func TestHIPAACompliantSpec(t *testing.T) {
	v := newTestValidator(t)
	results := v.Validate(hipaaReadySpec(), []string{"hipaa"})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Framework != "HIPAA" {
		t.Errorf("framework = %s, want HIPAA", r.Framework)
	}
	if !r.Passed {
		t.Errorf("hipaa failed: %+v", r.Checks)
	}
	if r.Score != 1.0 {
		t.Errorf("score = %f, want 1.0", r.Score)
	}
	if len(r.Checks) != 5 {
		t.Errorf("got %d checks, want 5", len(r.Checks))
	}
}

func TestHIPAAUnencryptedDataStore(t *testing.T) {
	v := newTestValidator(t)
	s := hipaaReadySpec()
	delete(s.ComponentByID("bucket").Config, "encryption")

	r := v.Validate(s, []string{"hipaa"})[0]
	if r.Passed {
		t.Error("hipaa passed with an unencrypted data store")
	}
	check := checkByName(t, r, "encryption_at_rest")
	if check.Passed {
		t.Error("encryption_at_rest passed")
	}
	if check.Detail != "unencrypted data stores: bucket" {
		t.Errorf("detail = %q", check.Detail)
	}
	if r.Score != 0.8 {
		t.Errorf("score = %f, want 0.8", r.Score)
	}
}

func TestHIPAAPlaintextConnection(t *testing.T) {
	v := newTestValidator(t)
	s := hipaaReadySpec()
	s.Connections = append(s.Connections, &spec.Connection{Source: "bucket", Target: "db", Protocol: "HTTP"})

	r := v.Validate(s, []string{"hipaa"})[0]
	if r.Passed {
		t.Error("hipaa passed with a plaintext connection")
	}
	check := checkByName(t, r, "encryption_in_transit")
	if check.Passed || check.Detail == "" {
		t.Errorf("encryption_in_transit = %+v", check)
	}
}

func TestHIPAABAAEligibility(t *testing.T) {
	v := newTestValidator(t)
	s := hipaaReadySpec()
	s.Components = append(s.Components, comp("stream", "msk", nil))

	r := v.Validate(s, []string{"hipaa"})[0]
	check := checkByName(t, r, "baa_eligibility")
	if check.Passed {
		t.Error("baa_eligibility passed with msk in the spec")
	}
	if check.Detail != "services outside the BAA: msk" {
		t.Errorf("detail = %q", check.Detail)
	}
	// The failure is high severity, so the gate stays open.
	if !r.Passed {
		t.Error("hipaa gate closed on a high-severity failure")
	}
}

func TestPCIDSSSegmentationWithoutWAF(t *testing.T) {
	v := newTestValidator(t)
	s := awsSpec("us-east-1",
		comp("app", "ec2", map[string]interface{}{"private_subnet": true}),
		comp("trail", "cloudtrail", nil),
	)

	r := v.Validate(s, []string{"pci_dss"})[0]
	if !checkByName(t, r, "network_segmentation").Passed {
		t.Error("network_segmentation failed despite private subnet compute")
	}
	if checkByName(t, r, "waf").Passed {
		t.Error("waf check passed without a WAF")
	}
	// Only high-severity checks failed.
	if !r.Passed {
		t.Error("pci_dss gate closed without critical failures")
	}
	if r.Score != 0.8 {
		t.Errorf("score = %f, want 0.8", r.Score)
	}
}

func TestSOC2NeverGatesWithoutCriticalChecks(t *testing.T) {
	v := newTestValidator(t)
	bare := awsSpec("us-east-1", comp("app", "ec2", nil))

	r := v.Validate(bare, []string{"soc2"})[0]
	if !r.Passed {
		t.Error("soc2 gate closed; it has no critical checks")
	}
	if r.Score != 0 {
		t.Errorf("score = %f, want 0", r.Score)
	}

	full := awsSpec("us-east-1",
		comp("app", "ec2", nil),
		comp("lb", "alb", nil),
		comp("identity", "iam", nil),
		comp("logs", "cloudwatch", nil),
		comp("pipeline", "codepipeline", nil),
	)
	r = v.Validate(full, []string{"soc2"})[0]
	if r.Score != 1.0 {
		t.Errorf("score = %f, want 1.0: %+v", r.Score, r.Checks)
	}
}

func TestFedRAMPRegionGate(t *testing.T) {
	v := newTestValidator(t)
	s := awsSpec("eu-west-1",
		comp("db", "rds", map[string]interface{}{"encryption": true}),
		comp("identity", "iam", nil),
		comp("trail", "cloudtrail", nil),
		comp("metrics", "cloudwatch", nil),
		comp("alerts", "sns", nil),
	)

	r := v.Validate(s, []string{"fedramp_moderate"})[0]
	if r.Passed {
		t.Error("fedramp passed outside the US")
	}
	if checkByName(t, r, "us_region").Passed {
		t.Error("us_region passed for eu-west-1")
	}

	s.Region = "us-gov-west-1"
	r = v.Validate(s, []string{"fedramp"})[0]
	if !r.Passed {
		t.Errorf("fedramp failed in us-gov-west-1: %+v", r.Checks)
	}
	if r.Score != 1.0 {
		t.Errorf("score = %f, want 1.0", r.Score)
	}
}

func TestFedRAMPNormalizedRegion(t *testing.T) {
	v := newTestValidator(t)
	s := awsSpec("eastus")
	s.Provider = spec.ProviderAzure

	r := v.Validate(s, []string{"fedramp_moderate"})[0]
	if !checkByName(t, r, "us_region").Passed {
		t.Error("us_region failed for eastus")
	}
}

func TestGDPR(t *testing.T) {
	v := newTestValidator(t)
	s := awsSpec("eu-west-1",
		comp("bucket", "s3", map[string]interface{}{"encryption": true, "lifecycle": "expire-90d"}),
		comp("identity", "iam", nil),
		comp("trail", "cloudtrail", nil),
	)

	r := v.Validate(s, []string{"gdpr"})[0]
	if !r.Passed || r.Score != 1.0 {
		t.Errorf("gdpr = passed %v score %f: %+v", r.Passed, r.Score, r.Checks)
	}

	// Dropping the deletion mechanism fails a medium check only.
	delete(s.ComponentByID("bucket").Config, "lifecycle")
	r = v.Validate(s, []string{"gdpr"})[0]
	if !r.Passed {
		t.Error("gdpr gate closed on a medium-severity failure")
	}
	if checkByName(t, r, "data_deletion").Passed {
		t.Error("data_deletion passed without ttl, lifecycle, or retention_days")
	}

	// Leaving the EU closes the gate.
	s.Region = "us-east-1"
	r = v.Validate(s, []string{"gdpr"})[0]
	if r.Passed {
		t.Error("gdpr passed outside the EU")
	}
}

func TestWellArchitected(t *testing.T) {
	v := newTestValidator(t)
	s := awsSpec("us-east-1",
		comp("app", "ec2", map[string]interface{}{"auto_scaling": true}),
		comp("db", "rds", map[string]interface{}{"encryption": true, "multi_az": true, "backup": true}),
		comp("lb", "alb", nil),
		comp("fw", "waf", nil),
		comp("identity", "iam", nil),
		comp("metrics", "cloudwatch", nil),
	)

	r := v.Validate(s, []string{"well_architected"})[0]
	if r.Score != 1.0 {
		t.Errorf("score = %f, want 1.0: %+v", r.Score, r.Checks)
	}
	if len(r.Checks) != 7 {
		t.Errorf("got %d checks, want 7", len(r.Checks))
	}
}

func TestWellArchitectedOversizedInstance(t *testing.T) {
	v := newTestValidator(t)
	s := awsSpec("us-east-1",
		comp("app", "ec2", map[string]interface{}{"instance_type": "m5.16xlarge"}),
	)

	r := v.Validate(s, []string{"well-architected"})[0]
	check := checkByName(t, r, "cost_optimization")
	if check.Passed {
		t.Error("cost_optimization passed with a 16xlarge instance")
	}
	// Low severity never closes the gate.
	if !r.Passed {
		t.Error("well_architected gate closed")
	}
}

func TestValidateUnknownFrameworkSkipped(t *testing.T) {
	v := newTestValidator(t)
	results := v.Validate(hipaaReadySpec(), []string{"hipaa", "iso27001"})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestFrameworkAliases(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"PCI-DSS", "pci_dss"},
		{"pci", "pci_dss"},
		{"SOC-2", "soc2"},
		{"fedramp", "fedramp_moderate"},
		{"Well-Architected", "well_architected"},
		{"HIPAA", "hipaa"},
	}
	for _, tt := range tests {
		fw := lookup(tt.input)
		if fw == nil {
			t.Errorf("lookup(%q) = nil", tt.input)
			continue
		}
		if fw.name != tt.want {
			t.Errorf("lookup(%q) = %s, want %s", tt.input, fw.name, tt.want)
		}
	}
	if lookup("iso27001") != nil {
		t.Error("lookup(iso27001) found a framework")
	}
}

func TestFrameworksList(t *testing.T) {
	names := Frameworks()
	if len(names) != 6 {
		t.Fatalf("got %d frameworks, want 6", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i] < names[i-1] {
			t.Errorf("framework list not sorted: %v", names)
		}
	}
}
