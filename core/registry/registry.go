// Package registry loads the declarative service registry: per-provider
// service definitions, cross-provider equivalence groups, and feature
// parity matrices, one YAML category file per service family.
package registry

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"cloudwright/core/spec"
	"cloudwright/data"
	"cloudwright/internal/errors"
)

// Formula names a pricing formula a service definition may declare.
// The cost engine owns the arithmetic; the registry only validates the name.
var knownFormulas = map[string]bool{
	"per_hour":           true,
	"per_request":        true,
	"per_gb":             true,
	"per_gb_hour":        true,
	"per_zone":           true,
	"fixed_plus_request": true,
	"per_mau":            true,
	"per_shard_hour":     true,
	"per_tb_query":       true,
	"per_node_hour":      true,
}

// KnownFormula reports whether name is a recognized pricing formula
func KnownFormula(name string) bool {
	return knownFormulas[name]
}

// ServiceDef describes one managed service offered by a provider
type ServiceDef struct {
	Provider       spec.Provider `yaml:"-"`
	Category       string        `yaml:"-"`
	Key            string        `yaml:"service_key"`
	Name           string        `yaml:"name"`
	Description    string        `yaml:"description"`
	PricingFormula string        `yaml:"pricing_formula"`
	DefaultConfig  spec.Config   `yaml:"default_config"`
	TerraformTypes []string      `yaml:"terraform_types"`
}

// EquivalenceGroup names the services that fill the same role on each provider
type EquivalenceGroup struct {
	Name     string
	Category string
	Members  map[spec.Provider]string
}

// FeatureRow is one feature's support values across providers
type FeatureRow struct {
	Name    string
	Support map[spec.Provider]spec.Value
}

// FeatureComparison is the feature parity table for one equivalence group
type FeatureComparison struct {
	Group    string
	Features []FeatureRow
}

// Registry is the loaded service registry. Immutable after Load.
type Registry struct {
	services   map[string]*ServiceDef
	categories map[string][]*ServiceDef
	groups     []*EquivalenceGroup
	byMember   map[string]*EquivalenceGroup
	matrices   map[string]map[string]map[spec.Provider]spec.Value
	terraform  map[string]*ServiceDef
}

type categoryFile struct {
	Category          string                                      `yaml:"category"`
	Services          map[string][]*ServiceDef                    `yaml:"services"`
	EquivalenceGroups []groupEntry                                `yaml:"equivalence_groups"`
	FeatureMatrix     map[string]map[string]map[string]spec.Value `yaml:"feature_matrix"`
}

type groupEntry struct {
	Name    string            `yaml:"name"`
	Members map[string]string `yaml:"members"`
}

// Load reads every category file in fsys and builds the registry.
// Any parse or consistency failure aborts the load.
func Load(fsys fs.FS) (*Registry, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, errors.CatalogIO("list registry files", err)
	}
	if len(files) == 0 {
		return nil, errors.Config("service registry has no category files", nil)
	}
	sort.Strings(files)

	r := &Registry{
		services:   make(map[string]*ServiceDef),
		categories: make(map[string][]*ServiceDef),
		byMember:   make(map[string]*EquivalenceGroup),
		matrices:   make(map[string]map[string]map[spec.Provider]spec.Value),
		terraform:  make(map[string]*ServiceDef),
	}
	for _, name := range files {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.CatalogIO("read "+name, err)
		}
		var file categoryFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, errors.Parsing("registry file "+name, err)
		}
		if err := r.merge(name, &file); err != nil {
			return nil, err
		}
	}
	for _, defs := range r.categories {
		sort.Slice(defs, func(i, j int) bool {
			if defs[i].Provider != defs[j].Provider {
				return defs[i].Provider < defs[j].Provider
			}
			return defs[i].Key < defs[j].Key
		})
	}
	sort.Slice(r.groups, func(i, j int) bool { return r.groups[i].Name < r.groups[j].Name })
	return r, nil
}

// LoadDir builds the registry from category files on disk
func LoadDir(dir string) (*Registry, error) {
	return Load(os.DirFS(dir))
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry built from the bundled category files
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Load(data.Services())
	})
	return defaultReg, defaultErr
}

func (r *Registry) merge(name string, file *categoryFile) error {
	if file.Category == "" {
		return errors.Parsing(fmt.Sprintf("registry file %s missing category", name), nil)
	}
	for providerName, defs := range file.Services {
		provider := spec.Provider(providerName)
		if !spec.ValidProvider(provider) {
			return errors.Parsing(fmt.Sprintf("registry file %s: unknown provider %q", name, providerName), nil)
		}
		for _, def := range defs {
			if def.Key == "" {
				return errors.Parsing(fmt.Sprintf("registry file %s: %s service missing service_key", name, providerName), nil)
			}
			if !KnownFormula(def.PricingFormula) {
				return errors.Parsing(fmt.Sprintf("registry file %s: service %s has unknown pricing_formula %q", name, def.Key, def.PricingFormula), nil)
			}
			def.Provider = provider
			def.Category = file.Category
			key := memberKey(provider, def.Key)
			if _, dup := r.services[key]; dup {
				return errors.Parsing(fmt.Sprintf("registry file %s: duplicate service %s", name, key), nil)
			}
			r.services[key] = def
			r.categories[file.Category] = append(r.categories[file.Category], def)
			for _, tf := range def.TerraformTypes {
				r.terraform[tf] = def
			}
		}
	}
	for _, entry := range file.EquivalenceGroups {
		group := &EquivalenceGroup{
			Name:     entry.Name,
			Category: file.Category,
			Members:  make(map[spec.Provider]string, len(entry.Members)),
		}
		for providerName, serviceKey := range entry.Members {
			provider := spec.Provider(providerName)
			if !spec.ValidProvider(provider) {
				return errors.Parsing(fmt.Sprintf("registry file %s: group %s has unknown provider %q", name, entry.Name, providerName), nil)
			}
			group.Members[provider] = serviceKey
			r.byMember[memberKey(provider, serviceKey)] = group
		}
		r.groups = append(r.groups, group)
	}
	for groupName, features := range file.FeatureMatrix {
		matrix := make(map[string]map[spec.Provider]spec.Value, len(features))
		for feature, support := range features {
			row := make(map[spec.Provider]spec.Value, len(support))
			for providerName, value := range support {
				provider := spec.Provider(providerName)
				if !spec.ValidProvider(provider) {
					return errors.Parsing(fmt.Sprintf("registry file %s: feature matrix %s has unknown provider %q", name, groupName, providerName), nil)
				}
				row[provider] = value
			}
			matrix[feature] = row
		}
		r.matrices[groupName] = matrix
	}
	return nil
}

func memberKey(provider spec.Provider, serviceKey string) string {
	return string(provider) + ":" + serviceKey
}

// Get returns the definition for a provider's service, or nil when unknown
func (r *Registry) Get(provider spec.Provider, serviceKey string) *ServiceDef {
	return r.services[memberKey(provider, serviceKey)]
}

// GetEquivalent returns the service key filling the same role on another
// provider, or empty when no equivalence group covers it
func (r *Registry) GetEquivalent(serviceKey string, from, to spec.Provider) string {
	group := r.byMember[memberKey(from, serviceKey)]
	if group == nil {
		return ""
	}
	return group.Members[to]
}

// GroupFor returns the equivalence group containing a provider's service
func (r *Registry) GroupFor(provider spec.Provider, serviceKey string) *EquivalenceGroup {
	return r.byMember[memberKey(provider, serviceKey)]
}

// CompareFeatures returns the feature parity table for the group covering
// both services, or nil when the services share no group or the group has
// no matrix. The services may be given with or without a provider prefix.
func (r *Registry) CompareFeatures(serviceA, serviceB string) *FeatureComparison {
	groupA := r.findGroup(serviceA)
	groupB := r.findGroup(serviceB)
	if groupA == nil || groupA != groupB {
		return nil
	}
	matrix := r.matrices[groupA.Name]
	if matrix == nil {
		return nil
	}
	cmp := &FeatureComparison{Group: groupA.Name}
	for feature, support := range matrix {
		row := FeatureRow{Name: feature, Support: make(map[spec.Provider]spec.Value, len(support))}
		for provider, value := range support {
			row.Support[provider] = value
		}
		cmp.Features = append(cmp.Features, row)
	}
	sort.Slice(cmp.Features, func(i, j int) bool { return cmp.Features[i].Name < cmp.Features[j].Name })
	return cmp
}

// FeatureGaps lists the features in the service's parity matrix that the
// provider does not support. Missing entries count as unsupported.
func (r *Registry) FeatureGaps(serviceKey string, provider spec.Provider) []string {
	group := r.byMember[memberKey(provider, serviceKey)]
	if group == nil {
		return nil
	}
	matrix := r.matrices[group.Name]
	if matrix == nil {
		return nil
	}
	var gaps []string
	for feature, support := range matrix {
		value, ok := support[provider]
		if !ok {
			gaps = append(gaps, feature)
			continue
		}
		if value.Kind == spec.KindBool && !value.Bool {
			gaps = append(gaps, feature)
		}
	}
	sort.Strings(gaps)
	return gaps
}

func (r *Registry) findGroup(service string) *EquivalenceGroup {
	if group, ok := r.byMember[service]; ok {
		return group
	}
	for _, provider := range spec.KnownProviders() {
		if group, ok := r.byMember[memberKey(provider, service)]; ok {
			return group
		}
	}
	return nil
}

// Services returns the provider's definitions sorted by service key
func (r *Registry) Services(provider spec.Provider) []*ServiceDef {
	var defs []*ServiceDef
	for _, def := range r.services {
		if def.Provider == provider {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
	return defs
}

// Categories returns the loaded category names sorted
func (r *Registry) Categories() []string {
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Category returns the definitions in one category, all providers
func (r *Registry) Category(name string) []*ServiceDef {
	return r.categories[name]
}

// All returns every definition sorted by provider then key
func (r *Registry) All() []*ServiceDef {
	defs := make([]*ServiceDef, 0, len(r.services))
	for _, def := range r.services {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Provider != defs[j].Provider {
			return defs[i].Provider < defs[j].Provider
		}
		return defs[i].Key < defs[j].Key
	})
	return defs
}

// Groups returns the equivalence groups sorted by name
func (r *Registry) Groups() []*EquivalenceGroup {
	return r.groups
}

// TerraformLookup resolves a Terraform resource type to the service that
// declares it, or nil when no service does
func (r *Registry) TerraformLookup(resourceType string) *ServiceDef {
	return r.terraform[resourceType]
}

// Len returns the number of loaded service definitions
func (r *Registry) Len() int {
	return len(r.services)
}
