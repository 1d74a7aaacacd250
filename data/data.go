// Package data bundles the editable enumerations the engine loads at
// startup: service category files, catalog seeds, framework service
// classes, fallback and transfer rates, and region normalization. They
// are data rather than code so updating a price or adding a service key
// does not require touching the engine.
package data

import (
	"embed"
	"io/fs"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed services/*.yaml seed/*.json frameworks/*.yaml pricing/*.yaml regions.yaml
var bundled embed.FS

// Services returns the embedded service category files as a file system
// rooted at the category directory
func Services() fs.FS {
	sub, err := fs.Sub(bundled, "services")
	if err != nil {
		panic(err)
	}
	return sub
}

// Seed returns an embedded catalog seed file by name
// (instances.json, managed_services.json, equivalences.json)
func Seed(name string) ([]byte, error) {
	return bundled.ReadFile("seed/" + name)
}

// ServiceClassesYAML returns the raw framework service-class sets
func ServiceClassesYAML() []byte {
	return mustRead("frameworks/service_classes.yaml")
}

// FallbackPricesYAML returns the raw static fallback price table
func FallbackPricesYAML() []byte {
	return mustRead("pricing/fallback.yaml")
}

// TransferRatesYAML returns the raw data-transfer rate table
func TransferRatesYAML() []byte {
	return mustRead("pricing/transfer.yaml")
}

// RegionsYAML returns the raw region normalization table
func RegionsYAML() []byte {
	return mustRead("regions.yaml")
}

func mustRead(name string) []byte {
	data, err := bundled.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return data
}

// ServiceClasses groups service keys into the classes the validator,
// scorer, and hardening pass reason about
type ServiceClasses struct {
	DataStores    []string            `yaml:"data_stores"`
	Databases     []string            `yaml:"databases"`
	Compute       []string            `yaml:"compute"`
	Serverless    []string            `yaml:"serverless"`
	Logging       []string            `yaml:"logging"`
	Auth          []string            `yaml:"auth"`
	WAF           []string            `yaml:"waf"`
	LoadBalancers []string            `yaml:"load_balancers"`
	Monitoring    []string            `yaml:"monitoring"`
	Alerting      []string            `yaml:"alerting"`
	CDN           []string            `yaml:"cdn"`
	DNS           []string            `yaml:"dns"`
	Cache         []string            `yaml:"cache"`
	FreeTier      []string            `yaml:"free_tier"`
	BAAEligible   map[string][]string `yaml:"baa_eligible"`

	sets map[string]map[string]bool
	baa  map[string]map[string]bool
}

var (
	classesOnce sync.Once
	classes     *ServiceClasses
	classesErr  error
)

// LoadServiceClasses parses the embedded service-class sets. The result
// is cached; the sets are immutable after load.
func LoadServiceClasses() (*ServiceClasses, error) {
	classesOnce.Do(func() {
		var sc ServiceClasses
		if err := yaml.Unmarshal(ServiceClassesYAML(), &sc); err != nil {
			classesErr = err
			return
		}
		sc.index()
		classes = &sc
	})
	return classes, classesErr
}

func (sc *ServiceClasses) index() {
	sc.sets = map[string]map[string]bool{
		"data_stores":    toSet(sc.DataStores),
		"databases":      toSet(sc.Databases),
		"compute":        toSet(sc.Compute),
		"serverless":     toSet(sc.Serverless),
		"logging":        toSet(sc.Logging),
		"auth":           toSet(sc.Auth),
		"waf":            toSet(sc.WAF),
		"load_balancers": toSet(sc.LoadBalancers),
		"monitoring":     toSet(sc.Monitoring),
		"alerting":       toSet(sc.Alerting),
		"cdn":            toSet(sc.CDN),
		"dns":            toSet(sc.DNS),
		"cache":          toSet(sc.Cache),
		"free_tier":      toSet(sc.FreeTier),
	}
	sc.baa = make(map[string]map[string]bool, len(sc.BAAEligible))
	for provider, keys := range sc.BAAEligible {
		sc.baa[provider] = toSet(keys)
	}
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// IsDataStore reports whether the service persists data
func (sc *ServiceClasses) IsDataStore(service string) bool {
	return sc.sets["data_stores"][service]
}

// IsDatabase reports whether the service is a database
func (sc *ServiceClasses) IsDatabase(service string) bool {
	return sc.sets["databases"][service]
}

// IsCompute reports whether the service runs user workloads
func (sc *ServiceClasses) IsCompute(service string) bool {
	return sc.sets["compute"][service]
}

// IsServerless reports whether the service is function-as-a-service
func (sc *ServiceClasses) IsServerless(service string) bool {
	return sc.sets["serverless"][service]
}

// IsLogging reports whether the service provides audit or log capture
func (sc *ServiceClasses) IsLogging(service string) bool {
	return sc.sets["logging"][service]
}

// IsAuth reports whether the service provides identity or access control
func (sc *ServiceClasses) IsAuth(service string) bool {
	return sc.sets["auth"][service]
}

// IsWAF reports whether the service is a web application firewall
func (sc *ServiceClasses) IsWAF(service string) bool {
	return sc.sets["waf"][service]
}

// IsLoadBalancer reports whether the service balances traffic
func (sc *ServiceClasses) IsLoadBalancer(service string) bool {
	return sc.sets["load_balancers"][service]
}

// IsMonitoring reports whether the service provides monitoring
func (sc *ServiceClasses) IsMonitoring(service string) bool {
	return sc.sets["monitoring"][service]
}

// IsAlerting reports whether the service can deliver incident alerts
func (sc *ServiceClasses) IsAlerting(service string) bool {
	return sc.sets["alerting"][service]
}

// IsCDN reports whether the service is a content delivery network
func (sc *ServiceClasses) IsCDN(service string) bool {
	return sc.sets["cdn"][service]
}

// IsDNS reports whether the service provides DNS
func (sc *ServiceClasses) IsDNS(service string) bool {
	return sc.sets["dns"][service]
}

// IsCache reports whether the service is a managed cache
func (sc *ServiceClasses) IsCache(service string) bool {
	return sc.sets["cache"][service]
}

// IsFreeTier reports whether the service costs nothing at design scale
func (sc *ServiceClasses) IsFreeTier(service string) bool {
	return sc.sets["free_tier"][service]
}

// IsBAAEligible reports whether the provider covers the service under a
// business associate agreement
func (sc *ServiceClasses) IsBAAEligible(provider, service string) bool {
	return sc.baa[provider][service]
}

// RegionTable maps provider region codes into normalized buckets and
// carries the EU residency prefixes
type RegionTable struct {
	Buckets []RegionBucket `yaml:"buckets"`
	EU      []string       `yaml:"eu_prefixes"`
}

// RegionBucket is one normalized region group
type RegionBucket struct {
	Normalized string   `yaml:"normalized"`
	Prefixes   []string `yaml:"prefixes"`
}

var (
	regionsOnce sync.Once
	regions     *RegionTable
	regionsErr  error
)

// LoadRegions parses the embedded region table. The result is cached.
func LoadRegions() (*RegionTable, error) {
	regionsOnce.Do(func() {
		var rt RegionTable
		if err := yaml.Unmarshal(RegionsYAML(), &rt); err != nil {
			regionsErr = err
			return
		}
		// longest prefix first so us-east wins over us
		for _, b := range rt.Buckets {
			sort.Slice(b.Prefixes, func(i, j int) bool {
				return len(b.Prefixes[i]) > len(b.Prefixes[j])
			})
		}
		regions = &rt
	})
	return regions, regionsErr
}

// Normalize maps a provider region code to its bucket, or empty when the
// code matches no bucket
func (rt *RegionTable) Normalize(code string) string {
	for _, b := range rt.Buckets {
		for _, p := range b.Prefixes {
			if len(code) >= len(p) && code[:len(p)] == p {
				return b.Normalized
			}
		}
	}
	return ""
}

// IsEU reports whether the region code satisfies EU data residency
func (rt *RegionTable) IsEU(code string) bool {
	for _, p := range rt.EU {
		if len(code) >= len(p) && code[:len(p)] == p {
			return true
		}
	}
	return false
}
