package export

import (
	"encoding/json"
	"strings"
	"testing"

	"cloudwright/core/registry"
	"cloudwright/core/spec"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry load failed: %v", err)
	}
	return New(reg)
}

func comp(id, service string, provider spec.Provider, tier int, config map[string]interface{}) *spec.Component {
	c := &spec.Component{ID: id, Service: service, Provider: provider, Tier: tier}
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
		Name:       "web-app",
		Version:    1,
		Provider:   spec.ProviderAWS,
		Region:     "us-east-1",
		Components: components,
	}
}

func TestTerraformRendersResources(t *testing.T) {
	r := newTestRenderer(t)
	s := archSpec(
		comp("web", "ec2", spec.ProviderAWS, spec.TierCompute, map[string]interface{}{
			"instance_type": "m5.large",
			"count":         2,
		}),
		comp("db", "rds", spec.ProviderAWS, spec.TierData, map[string]interface{}{
			"instance_class": "db.t3.medium",
		}),
		comp("legacy", "mainframe", spec.ProviderAWS, spec.TierCompute, nil),
	)
	s.Connections = []*spec.Connection{{Source: "web", Target: "db"}}

	out, err := r.Terraform(s)
	if err != nil {
		t.Fatalf("Terraform failed: %v", err)
	}

	for _, want := range []string{
		"terraform {",
		`source = "hashicorp/aws"`,
		"provider \"aws\" {\n  region = \"us-east-1\"\n}",
		`resource "aws_instance" "web" {`,
		`"m5.large"`,
		`resource "aws_db_instance" "db" {`,
		"depends_on = [aws_db_instance.db]",
		`# unsupported: component "legacy" (service "mainframe" on aws) has no terraform resource type`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("terraform output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `resource "mainframe"`) {
		t.Error("unsupported service emitted as a resource")
	}
}

func TestTerraformMultiProvider(t *testing.T) {
	r := newTestRenderer(t)
	s := archSpec(
		comp("web", "ec2", spec.ProviderAWS, spec.TierCompute, nil),
		comp("db", "cloud_sql", spec.ProviderGCP, spec.TierData, nil),
		comp("vm", "virtual_machines", spec.ProviderAzure, spec.TierCompute, nil),
	)

	out, err := r.Terraform(s)
	if err != nil {
		t.Fatalf("Terraform failed: %v", err)
	}
	for _, want := range []string{
		`source = "hashicorp/google"`,
		`source = "hashicorp/azurerm"`,
		`provider "google" {`,
		"provider \"azurerm\" {\n  features {}\n}",
		`resource "google_sql_database_instance" "db" {`,
		`resource "azurerm_linux_virtual_machine" "vm" {`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("terraform output missing %q:\n%s", want, out)
		}
	}
}

func TestTerraformEscapesTemplateSequences(t *testing.T) {
	r := newTestRenderer(t)
	s := archSpec(comp("web", "ec2", spec.ProviderAWS, spec.TierCompute, map[string]interface{}{
		"user_data": `echo "${HOME}"`,
	}))

	out, err := r.Terraform(s)
	if err != nil {
		t.Fatalf("Terraform failed: %v", err)
	}
	if !strings.Contains(out, `"echo \"$${HOME}\""`) {
		t.Errorf("template sequence not escaped:\n%s", out)
	}
}

func TestHCLValueRendering(t *testing.T) {
	tests := []struct {
		name string
		in   spec.Value
		want string
	}{
		{"string", spec.String("gp3"), `"gp3"`},
		{"int", spec.Number(100), "100"},
		{"float", spec.Number(0.5), "0.5"},
		{"bool", spec.BoolValue(true), "true"},
		{"list", spec.List(spec.String("a"), spec.Number(2)), `["a", 2]`},
		{"map", spec.MapValue(map[string]spec.Value{"b": spec.Number(1), "a": spec.String("x")}), `{ a = "x", b = 1 }`},
		{"empty_map", spec.MapValue(nil), "{}"},
		{"null", spec.Null(), "null"},
	}
	for _, tt := range tests {
		if got := hclValue(tt.in); got != tt.want {
			t.Errorf("%s: hclValue = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestCloudFormationTemplate(t *testing.T) {
	r := newTestRenderer(t)
	s := archSpec(
		comp("web", "ec2", spec.ProviderAWS, spec.TierCompute, map[string]interface{}{"instance_type": "m5.large"}),
		comp("db", "rds", spec.ProviderAWS, spec.TierData, map[string]interface{}{"storage_gb": 100}),
		comp("warehouse", "bigquery", spec.ProviderGCP, spec.TierData, nil),
		comp("legacy", "mainframe", spec.ProviderAWS, spec.TierCompute, nil),
	)
	s.Connections = []*spec.Connection{{Source: "web", Target: "db"}}

	out, err := r.CloudFormation(s)
	if err != nil {
		t.Fatalf("CloudFormation failed: %v", err)
	}

	var tpl struct {
		FormatVersion string `json:"AWSTemplateFormatVersion"`
		Description   string `json:"Description"`
		Metadata      struct {
			Unsupported []string `json:"unsupported"`
		} `json:"Metadata"`
		Resources map[string]struct {
			Type       string                 `json:"Type"`
			Properties map[string]interface{} `json:"Properties"`
			DependsOn  []string               `json:"DependsOn"`
		} `json:"Resources"`
	}
	if err := json.Unmarshal([]byte(out), &tpl); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}

	if tpl.FormatVersion != "2010-09-09" {
		t.Errorf("format version = %q", tpl.FormatVersion)
	}
	if tpl.Description != "web-app" {
		t.Errorf("description = %q", tpl.Description)
	}
	if len(tpl.Resources) != 2 {
		t.Fatalf("got %d resources, want 2: %v", len(tpl.Resources), tpl.Resources)
	}

	web := tpl.Resources["Web"]
	if web.Type != "AWS::EC2::Instance" {
		t.Errorf("web type = %q", web.Type)
	}
	if got := web.Properties["instance_type"]; got != "m5.large" {
		t.Errorf("web instance_type = %v", got)
	}
	if len(web.DependsOn) != 1 || web.DependsOn[0] != "Db" {
		t.Errorf("web DependsOn = %v, want [Db]", web.DependsOn)
	}
	if tpl.Resources["Db"].Type != "AWS::RDS::DBInstance" {
		t.Errorf("db type = %q", tpl.Resources["Db"].Type)
	}

	if len(tpl.Metadata.Unsupported) != 2 {
		t.Fatalf("unsupported = %v, want gcp component and unmapped service", tpl.Metadata.Unsupported)
	}
	if !strings.Contains(tpl.Metadata.Unsupported[0], "warehouse") {
		t.Errorf("unsupported[0] = %q, want the gcp component", tpl.Metadata.Unsupported[0])
	}
	if !strings.Contains(tpl.Metadata.Unsupported[1], "legacy") {
		t.Errorf("unsupported[1] = %q, want the unmapped service", tpl.Metadata.Unsupported[1])
	}
}

func TestCloudFormationLogicalIDs(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"web", "Web"},
		{"web-server", "WebServer"},
		{"web_app_2", "WebApp2"},
		{"_", "Resource"},
	}
	for _, tt := range tests {
		if got := logicalID(tt.id); got != tt.want {
			t.Errorf("logicalID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}

	// Distinct ids that camel to the same logical name get suffixes.
	taken := make(map[string]bool)
	if got := uniqueLogicalID("web-app", taken); got != "WebApp" {
		t.Errorf("first id = %q, want WebApp", got)
	}
	if got := uniqueLogicalID("web_app", taken); got != "WebApp2" {
		t.Errorf("colliding id = %q, want WebApp2", got)
	}
}

func TestMermaidGraph(t *testing.T) {
	s := archSpec(
		comp("db", "rds", spec.ProviderAWS, spec.TierData, nil),
		comp("cdn", "cloudfront", spec.ProviderAWS, spec.TierEdge, nil),
		comp("web", "ec2", spec.ProviderAWS, spec.TierCompute, nil),
	)
	s.Components[2].Label = "Web Fleet"
	s.Connections = []*spec.Connection{
		{Source: "cdn", Target: "web", Protocol: "https"},
		{Source: "web", Target: "db"},
	}
	s.Boundaries = []*spec.Boundary{
		{ID: "vpc", Kind: "vpc", Label: "Prod VPC", ComponentIDs: []string{"web", "db"}},
	}

	out := Mermaid(s)
	if !strings.HasPrefix(out, "graph TB\n") {
		t.Fatalf("output does not open a graph:\n%s", out)
	}
	for _, want := range []string{
		`subgraph vpc["Prod VPC"]`,
		`web["Web Fleet (ec2)"]`,
		`db["db (rds)"]`,
		"end\n",
		`cdn["cdn (cloudfront)"]`,
		`cdn -->|"https"| web`,
		"web --> db",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("mermaid output missing %q:\n%s", want, out)
		}
	}

	// Inside the subgraph the compute tier renders before the data tier
	// even though the spec lists the database first.
	if strings.Index(out, `web["Web Fleet`) > strings.Index(out, `db["db`) {
		t.Errorf("nodes not tier-ordered:\n%s", out)
	}
}

func TestMermaidNestedBoundaries(t *testing.T) {
	s := archSpec(comp("web", "ec2", spec.ProviderAWS, spec.TierCompute, nil))
	s.Boundaries = []*spec.Boundary{
		{ID: "vpc", Kind: "vpc"},
		{ID: "private", Kind: "subnet", Parent: "vpc", ComponentIDs: []string{"web"}},
	}

	out := Mermaid(s)
	vpcAt := strings.Index(out, `subgraph vpc`)
	subnetAt := strings.Index(out, `subgraph private`)
	if vpcAt < 0 || subnetAt < 0 || subnetAt < vpcAt {
		t.Fatalf("nested subgraphs missing or out of order:\n%s", out)
	}
	if strings.Count(out, "end\n") != 2 {
		t.Errorf("want 2 subgraph ends:\n%s", out)
	}
}

func TestRenderDispatch(t *testing.T) {
	r := newTestRenderer(t)
	s := archSpec(comp("web", "ec2", spec.ProviderAWS, spec.TierCompute, nil))

	for _, f := range KnownFormats() {
		out, err := r.Render(s, f)
		if err != nil {
			t.Errorf("Render(%s) failed: %v", f, err)
		}
		if out == "" {
			t.Errorf("Render(%s) produced no output", f)
		}
	}

	if _, err := r.Render(s, "svg"); err == nil {
		t.Error("unknown format did not error")
	}
	if ValidFormat("svg") {
		t.Error("svg reported as a valid format")
	}
}
