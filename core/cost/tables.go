package cost

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cloudwright/core/spec"
	"cloudwright/data"
)

// fallbackPrices is the last-resort monthly price table
type fallbackPrices struct {
	Default      float64            `yaml:"default"`
	StoragePerGB float64            `yaml:"storage_per_gb"`
	Services     map[string]float64 `yaml:"services"`
}

// transferRates is the per-GB data transfer rate table
type transferRates struct {
	CrossProvider   float64            `yaml:"cross_provider"`
	Default         float64            `yaml:"default"`
	SourceOverrides map[string]float64 `yaml:"source_overrides"`
	Egress          map[string]float64 `yaml:"egress"`
}

var (
	tablesOnce sync.Once
	fallback   *fallbackPrices
	transfer   *transferRates
)

// tables parses the bundled price tables. The files ship inside the
// binary; a parse failure is a build defect, not a runtime condition.
func tables() (*fallbackPrices, *transferRates) {
	tablesOnce.Do(func() {
		var fp fallbackPrices
		if err := yaml.Unmarshal(data.FallbackPricesYAML(), &fp); err != nil {
			panic(fmt.Sprintf("cost: bundled fallback price table: %v", err))
		}
		var tr transferRates
		if err := yaml.Unmarshal(data.TransferRatesYAML(), &tr); err != nil {
			panic(fmt.Sprintf("cost: bundled transfer rate table: %v", err))
		}
		fallback = &fp
		transfer = &tr
	})
	return fallback, transfer
}

// lookup resolves a service key to its baseline monthly price. Exact
// key first, then the longest table key contained in the service name,
// so raw Terraform types like "aws_msk_cluster" still land on their
// family. Unknown services get the table default.
func (t *fallbackPrices) lookup(service string) float64 {
	if v, ok := t.Services[service]; ok {
		return v
	}
	best := ""
	for key := range t.Services {
		if !strings.Contains(service, key) {
			continue
		}
		if len(key) > len(best) || (len(key) == len(best) && key < best) {
			best = key
		}
	}
	if best != "" {
		return t.Services[best]
	}
	return t.Default
}

// fromFallback prices a component off the static table: baseline,
// scaled by whichever count key is present, plus flat-rate storage
func (e *Engine) fromFallback(c *spec.Component) decimal.Decimal {
	table, _ := tables()
	monthly := dec(table.lookup(c.Service))
	if count, ok := firstFloat(c.Config, countKeys...); ok {
		monthly = monthly.Mul(dec(count))
	}
	if gb := c.Config.FloatOr("storage_gb", 0); gb > 0 {
		monthly = monthly.Add(dec(gb).Mul(dec(table.StoragePerGB)))
	}
	return monthly
}

// transferTotal prices every connection carrying a traffic estimate
func (e *Engine) transferTotal(s *spec.ArchSpec) decimal.Decimal {
	_, rates := tables()
	total := decimal.Zero
	for _, conn := range s.Connections {
		if conn.EstimatedMonthlyGB <= 0 {
			continue
		}
		rate := transferRate(s, conn, rates)
		total = total.Add(dec(conn.EstimatedMonthlyGB).Mul(dec(rate)))
	}
	return total
}

// transferRate picks the per-GB rate for one connection: the flat
// cross-provider rate when the endpoints live on different providers,
// otherwise a source-service override, otherwise the source provider's
// internet egress rate.
func transferRate(s *spec.ArchSpec, conn *spec.Connection, rates *transferRates) float64 {
	source := s.ComponentByID(conn.Source)
	if source == nil {
		return rates.Default
	}
	target := s.ComponentByID(conn.Target)
	if target != nil && source.Provider != target.Provider {
		return rates.CrossProvider
	}
	if rate, ok := rates.SourceOverrides[source.Service]; ok {
		return rate
	}
	if rate, ok := rates.Egress[string(source.Provider)]; ok {
		return rate
	}
	return rates.Default
}
