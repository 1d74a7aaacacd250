package export

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"cloudwright/core/spec"
)

// terraformProviders maps providers to their Terraform provider names
// and registry sources
var terraformProviders = map[spec.Provider]struct {
	name   string
	source string
}{
	spec.ProviderAWS:   {"aws", "hashicorp/aws"},
	spec.ProviderGCP:   {"google", "hashicorp/google"},
	spec.ProviderAzure: {"azurerm", "hashicorp/azurerm"},
}

// Terraform renders the spec as HCL: a terraform block declaring the
// required providers, one provider block per provider in use, and one
// resource per component named by its id. The resource type is the
// first terraform type the registry declares for the service.
// Components whose service has no terraform type are emitted as
// comments so the output stays a complete inventory.
func (r *Renderer) Terraform(s *spec.ArchSpec) (string, error) {
	var b strings.Builder

	providers := s.Providers()
	b.WriteString("terraform {\n  required_providers {\n")
	for _, p := range providers {
		tp := terraformProviders[p]
		fmt.Fprintf(&b, "    %s = {\n      source = %q\n    }\n", tp.name, tp.source)
	}
	b.WriteString("  }\n}\n")

	for _, p := range providers {
		tp := terraformProviders[p]
		var body string
		if p == spec.ProviderAzure {
			body = "  features {}\n"
		} else if p == s.Provider && s.Region != "" {
			body = fmt.Sprintf("  region = %s\n", hclString(s.Region))
		}
		if body == "" {
			fmt.Fprintf(&b, "\nprovider %q {}\n", tp.name)
		} else {
			fmt.Fprintf(&b, "\nprovider %q {\n%s}\n", tp.name, body)
		}
	}

	types := r.resourceTypes(s)
	for _, c := range s.Components {
		b.WriteString("\n")
		resourceType := types[c.ID]
		if resourceType == "" {
			fmt.Fprintf(&b, "# unsupported: component %q (service %q on %s) has no terraform resource type\n",
				c.ID, c.Service, c.Provider)
			continue
		}
		writeResource(&b, s, c, resourceType, types)
	}

	return b.String(), nil
}

// resourceTypes resolves each component to a terraform resource type,
// leaving unsupported components out of the map
func (r *Renderer) resourceTypes(s *spec.ArchSpec) map[string]string {
	types := make(map[string]string, len(s.Components))
	for _, c := range s.Components {
		if def := r.reg.Get(c.Provider, c.Service); def != nil && len(def.TerraformTypes) > 0 {
			types[c.ID] = def.TerraformTypes[0]
		}
	}
	return types
}

func writeResource(b *strings.Builder, s *spec.ArchSpec, c *spec.Component, resourceType string, types map[string]string) {
	fmt.Fprintf(b, "resource %q %q {\n", resourceType, c.ID)

	keys := c.Config.Keys()
	width := 0
	for _, k := range keys {
		if len(k) > width {
			width = len(k)
		}
	}
	for _, k := range keys {
		fmt.Fprintf(b, "  %-*s = %s\n", width, k, hclValue(c.Config[k]))
	}

	if deps := dependsOn(s, c, types); len(deps) > 0 {
		if len(keys) > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "  depends_on = [%s]\n", strings.Join(deps, ", "))
	}
	b.WriteString("}\n")
}

// dependsOn derives resource references from the component's outgoing
// connections, skipping targets without a terraform type
func dependsOn(s *spec.ArchSpec, c *spec.Component, types map[string]string) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, conn := range s.Connections {
		if conn.Source != c.ID || conn.Target == c.ID {
			continue
		}
		t := types[conn.Target]
		if t == "" {
			continue
		}
		ref := t + "." + conn.Target
		if !seen[ref] {
			seen[ref] = true
			deps = append(deps, ref)
		}
	}
	return deps
}

func hclValue(v spec.Value) string {
	switch v.Kind {
	case spec.KindString:
		return hclString(v.Str)
	case spec.KindNumber:
		return hclNumber(v.Num)
	case spec.KindBool:
		return strconv.FormatBool(v.Bool)
	case spec.KindList:
		parts := make([]string, 0, len(v.List))
		for _, item := range v.List {
			parts = append(parts, hclValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case spec.KindMap:
		if len(v.Map) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+" = "+hclValue(v.Map[k]))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return "null"
	}
}

// hclEscaper covers quoting plus the template introducers HCL treats
// specially inside string literals
var hclEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"${", "$${",
	"%{", "%%{",
)

func hclString(s string) string {
	return `"` + hclEscaper.Replace(s) + `"`
}

func hclNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
