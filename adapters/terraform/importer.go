// Package terraform imports Terraform configurations as architecture
// specs. The importer reads resource blocks only: literal attributes
// become component config, reference expressions become connections,
// and everything needing expression evaluation is left out. It is an
// inventory pass, not a Terraform evaluator.
package terraform

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"cloudwright/core/registry"
	"cloudwright/core/spec"
	"cloudwright/internal/errors"
	"cloudwright/internal/logging"
)

// Importer builds specs from Terraform source trees. Resource types
// resolve to service keys through the registry's terraform_types lists.
type Importer struct {
	reg *registry.Registry
	log *zap.Logger
}

// New creates an importer over a service registry
func New(reg *registry.Registry) *Importer {
	return &Importer{reg: reg, log: logging.Named("terraform")}
}

// blockSchema pulls the two block types the importer reads. Everything
// else (variables, outputs, locals, modules, data sources) is ignored.
var blockSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "provider", LabelNames: []string{"name"}},
	},
}

// terraformProviderNames maps provider block names to providers
var terraformProviderNames = map[string]spec.Provider{
	"aws":     spec.ProviderAWS,
	"google":  spec.ProviderGCP,
	"azurerm": spec.ProviderAzure,
}

// rawResource is one resource block before service mapping
type rawResource struct {
	Type string
	Name string
	Body *hclsyntax.Body
}

// Import walks every .tf file under dir and assembles a spec: one
// component per cloud resource, connections derived from cross-resource
// references, spec provider by majority, region from the majority
// provider's block when it is a literal.
func (i *Importer) Import(dir string) (*spec.ArchSpec, error) {
	files, err := tfFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NotFound("terraform configuration", dir)
	}

	parser := hclparse.NewParser()
	var resources []rawResource
	regions := make(map[spec.Provider]string)
	for _, path := range files {
		f, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, errors.Parsing(fmt.Sprintf("parse %s", path), diags)
		}
		content, _, _ := f.Body.PartialContent(blockSchema)
		for _, block := range content.Blocks {
			switch block.Type {
			case "resource":
				if r, ok := rawResourceFromBlock(block); ok {
					resources = append(resources, r)
				} else if len(block.Labels) == 2 {
					i.log.Debug("skipping resource outside the known providers",
						zap.String("type", block.Labels[0]),
						zap.String("file", path))
				}
			case "provider":
				provider, region := providerRegion(block)
				if region != "" && regions[provider] == "" {
					regions[provider] = region
				}
			}
		}
	}

	s := &spec.ArchSpec{Name: filepath.Base(absDir(dir))}
	byAddr := make(map[string]string, len(resources))
	usedIDs := make(map[string]bool, len(resources))
	refsByID := make(map[string][]ref, len(resources))
	counts := make(map[spec.Provider]int)

	for _, r := range resources {
		provider, _ := providerForType(r.Type)
		c := &spec.Component{
			ID:       componentID(r, usedIDs),
			Service:  r.Type,
			Provider: provider,
			Tier:     spec.DefaultTier,
		}
		if def := i.reg.TerraformLookup(r.Type); def != nil {
			c.Service = def.Key
			c.Tier = tierForCategory(def.Category)
		}
		c.Config, refsByID[c.ID] = readBody(r.Body)

		s.Components = append(s.Components, c)
		byAddr[r.Type+"."+r.Name] = c.ID
		counts[provider]++
	}

	for _, c := range s.Components {
		for _, target := range refTargets(c.ID, refsByID[c.ID], byAddr) {
			s.Connections = append(s.Connections, &spec.Connection{Source: c.ID, Target: target})
		}
	}

	s.Provider = majorityProvider(counts)
	s.Region = regions[s.Provider]
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}

	i.log.Info("imported terraform configuration",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("components", len(s.Components)),
		zap.Int("connections", len(s.Connections)))
	return s, nil
}

// tfFiles lists .tf files under dir in lexical order, skipping hidden
// directories (.terraform, .git)
func tfFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tf") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("terraform configuration", dir)
		}
		return nil, errors.Parsing(fmt.Sprintf("walk %s", dir), err)
	}
	return files, nil
}

func rawResourceFromBlock(block *hcl.Block) (rawResource, bool) {
	if len(block.Labels) != 2 {
		return rawResource{}, false
	}
	if _, ok := providerForType(block.Labels[0]); !ok {
		return rawResource{}, false
	}
	body, ok := block.Body.(*hclsyntax.Body)
	if !ok {
		return rawResource{}, false
	}
	return rawResource{Type: block.Labels[0], Name: block.Labels[1], Body: body}, true
}

// providerForType infers the provider from a resource type prefix.
// Resources from other providers (random, null, local) report false.
func providerForType(resourceType string) (spec.Provider, bool) {
	switch {
	case strings.HasPrefix(resourceType, "aws_"):
		return spec.ProviderAWS, true
	case strings.HasPrefix(resourceType, "google_"):
		return spec.ProviderGCP, true
	case strings.HasPrefix(resourceType, "azurerm_"):
		return spec.ProviderAzure, true
	}
	return "", false
}

// providerRegion pulls a literal region attribute out of a provider block
func providerRegion(block *hcl.Block) (spec.Provider, string) {
	if len(block.Labels) != 1 {
		return "", ""
	}
	provider, ok := terraformProviderNames[block.Labels[0]]
	if !ok {
		return "", ""
	}
	body, ok := block.Body.(*hclsyntax.Body)
	if !ok {
		return provider, ""
	}
	attr, ok := body.Attributes["region"]
	if !ok {
		return provider, ""
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() || !val.IsKnown() || val.IsNull() || val.Type() != cty.String {
		return provider, ""
	}
	return provider, val.AsString()
}

// componentID derives an IaC-safe unique id: the block name when free,
// otherwise type-qualified, otherwise numbered
func componentID(r rawResource, used map[string]bool) string {
	id := sanitizeID(r.Name)
	if used[id] {
		id = sanitizeID(r.Type + "_" + r.Name)
	}
	base := id
	for n := 2; used[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	used[id] = true
	return id
}

func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if !spec.IsSafeID(out) {
		out = "_" + out
	}
	return out
}

// ref is one cross-resource reference found in an expression
type ref struct {
	rtype string
	name  string
}

// readBody extracts literal top-level attributes as config and
// collects cross-resource references from every expression, nested
// blocks included. Attributes that need evaluation are dropped;
// their references still count.
func readBody(body *hclsyntax.Body) (spec.Config, []ref) {
	var refs []ref
	collectRefs(body, &refs)

	var cfg spec.Config
	for name, attr := range body.Attributes {
		switch name {
		case "depends_on", "provider", "lifecycle":
			continue
		}
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() || !val.IsKnown() || val.IsNull() {
			continue
		}
		cfg.Set(name, ctyValue(val))
	}
	return cfg, refs
}

func collectRefs(body *hclsyntax.Body, refs *[]ref) {
	for _, attr := range body.Attributes {
		for _, traversal := range attr.Expr.Variables() {
			if r, ok := refFromTraversal(traversal); ok {
				*refs = append(*refs, r)
			}
		}
	}
	for _, block := range body.Blocks {
		collectRefs(block.Body, refs)
	}
}

// refFromTraversal reads `<type>.<name>...` for cloud resource types.
// Variable, local, module, and data-source traversals report false.
func refFromTraversal(t hcl.Traversal) (ref, bool) {
	if len(t) < 2 {
		return ref{}, false
	}
	root, ok := t[0].(hcl.TraverseRoot)
	if !ok {
		return ref{}, false
	}
	if _, cloud := providerForType(root.Name); !cloud {
		return ref{}, false
	}
	step, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return ref{}, false
	}
	return ref{rtype: root.Name, name: step.Name}, true
}

// refTargets resolves references to component ids, deduplicated and
// sorted, self-references dropped
func refTargets(sourceID string, refs []ref, byAddr map[string]string) []string {
	var targets []string
	seen := make(map[string]bool)
	for _, r := range refs {
		id, ok := byAddr[r.rtype+"."+r.name]
		if !ok || id == sourceID || seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, id)
	}
	sort.Strings(targets)
	return targets
}

// ctyValue converts a known, non-null cty value into a tagged config
// value. Unknown or null elements inside collections are dropped.
func ctyValue(val cty.Value) spec.Value {
	t := val.Type()
	switch {
	case t == cty.String:
		return spec.String(val.AsString())
	case t == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return spec.Number(f)
	case t == cty.Bool:
		return spec.BoolValue(val.True())
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		items := make([]spec.Value, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			if !v.IsKnown() || v.IsNull() {
				continue
			}
			items = append(items, ctyValue(v))
		}
		return spec.Value{Kind: spec.KindList, List: items}
	case t.IsMapType() || t.IsObjectType():
		m := make(map[string]spec.Value, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			if !v.IsKnown() || v.IsNull() {
				continue
			}
			m[k.AsString()] = ctyValue(v)
		}
		return spec.Value{Kind: spec.KindMap, Map: m}
	default:
		return spec.Null()
	}
}

func majorityProvider(counts map[spec.Provider]int) spec.Provider {
	best := spec.DefaultProvider
	bestCount := 0
	for _, p := range spec.KnownProviders() {
		if counts[p] > bestCount {
			best, bestCount = p, counts[p]
		}
	}
	return best
}

// tierForCategory places a registry category on the spec tier scale
func tierForCategory(category string) int {
	switch category {
	case "cdn_dns":
		return spec.TierEdge
	case "networking":
		return spec.TierIngress
	case "compute", "containers", "serverless", "orchestration", "ml":
		return spec.TierCompute
	case "database_relational", "database_nosql", "storage_object",
		"storage_block", "cache", "messaging", "streaming", "analytics":
		return spec.TierData
	case "security_identity", "observability", "devops":
		return spec.TierOps
	}
	return spec.DefaultTier
}

func absDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
