package gcp

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"cloudwright/clouds"
	"cloudwright/internal/errors"
)

// The billing catalog prices Compute Engine per vCPU-hour and per
// GB-RAM-hour rather than per machine type. Instance prices are
// synthesized by applying the region's component rates to the standard
// shapes below.

// componentRates holds per-vCPU and per-GB-RAM hourly rates for one
// machine family
type componentRates struct {
	cpuPerHour float64
	ramPerHour float64
}

func (r componentRates) complete() bool {
	return r.cpuPerHour > 0 && r.ramPerHour > 0
}

// machineShape is a standard machine type priced from component rates.
// Shared-core shapes bill fractional cores, so billed cores are kept
// separate from the advertised vCPU count.
type machineShape struct {
	name        string
	family      string
	vcpus       int
	billedCores float64
	memoryGB    float64
}

var standardShapes = []machineShape{
	{"e2-micro", "e2", 2, 0.25, 1},
	{"e2-small", "e2", 2, 0.5, 2},
	{"e2-medium", "e2", 2, 1, 4},
	{"e2-standard-2", "e2", 2, 2, 8},
	{"e2-standard-4", "e2", 4, 4, 16},
	{"e2-standard-8", "e2", 8, 8, 32},
	{"n1-standard-1", "n1", 1, 1, 3.75},
	{"n1-standard-2", "n1", 2, 2, 7.5},
	{"n1-standard-4", "n1", 4, 4, 15},
	{"n1-standard-8", "n1", 8, 8, 30},
	{"n2-standard-2", "n2", 2, 2, 8},
	{"n2-standard-4", "n2", 4, 4, 16},
	{"n2-standard-8", "n2", 8, 8, 32},
	{"n2-standard-16", "n2", 16, 16, 64},
	{"n2-highmem-2", "n2", 2, 2, 16},
	{"n2-highmem-4", "n2", 4, 4, 32},
	{"n2-highmem-8", "n2", 8, 8, 64},
	{"n2d-standard-2", "n2d", 2, 2, 8},
	{"n2d-standard-4", "n2d", 4, 4, 16},
	{"n2d-standard-8", "n2d", 8, 8, 32},
	{"c2-standard-4", "c2", 4, 4, 16},
	{"c2-standard-8", "c2", 8, 8, 32},
	{"c2-standard-16", "c2", 16, 16, 64},
	{"c3-standard-4", "c3", 4, 4, 16},
	{"c3-standard-8", "c3", 8, 8, 32},
}

// FetchInstancePricing streams synthesized machine-type prices for a
// region. Without an API key, or when the API rejects the key, the
// stream is empty and no error is returned.
func (a *Adapter) FetchInstancePricing(ctx context.Context, region string, yield func(clouds.InstancePrice) error) error {
	key := a.apiKey()
	if key == "" {
		a.log.Info("no gcp api key configured, skipping instance pricing",
			zap.String("region", region))
		return nil
	}

	rates, err := a.fetchComputeRates(ctx, region, key)
	if err != nil {
		if errors.IsType(err, errors.TypeAdapterAuth) {
			a.log.Warn("gcp rejected the api key, returning no prices",
				zap.String("region", region))
			return nil
		}
		return err
	}

	for _, shape := range standardShapes {
		cr, ok := rates[shape.family]
		if !ok || !cr.complete() {
			continue
		}
		price := cr.cpuPerHour*shape.billedCores + cr.ramPerHour*shape.memoryGB
		price = math.Round(price*10000) / 10000
		if price <= 0 {
			continue
		}
		row := clouds.InstancePrice{
			InstanceType: shape.name,
			Region:       region,
			VCPUs:        shape.vcpus,
			MemoryGB:     shape.memoryGB,
			PricePerHour: price,
			PriceType:    "on_demand",
			OS:           "linux",
		}
		if err := yield(row); err != nil {
			return err
		}
	}
	return nil
}

// fetchComputeRates extracts per-family CPU and RAM hourly rates from
// the Compute Engine catalog for one region
func (a *Adapter) fetchComputeRates(ctx context.Context, region, key string) (map[string]componentRates, error) {
	skus, err := a.fetchSKUs(ctx, computeServiceID, region, key)
	if err != nil {
		return nil, err
	}

	rates := make(map[string]componentRates)
	for _, sku := range skus {
		if sku.Category.ResourceFamily != "Compute" || sku.Category.UsageType != "OnDemand" {
			continue
		}
		price, unit := skuRate(sku)
		if price <= 0 || unit != "h" {
			continue
		}
		family := familyFromResourceGroup(sku.Category.ResourceGroup)
		component := componentFromDescription(sku.Description)
		if family == "" || component == "" {
			continue
		}
		cr := rates[family]
		switch component {
		case "cpu":
			cr.cpuPerHour = price
		case "ram":
			cr.ramPerHour = price
		}
		rates[family] = cr
	}
	return rates, nil
}

// familyFromResourceGroup maps a catalog resourceGroup ("N2Standard",
// "N2DHighmem") onto a machine family. Longer prefixes are checked
// first so N2D does not collapse into N2.
func familyFromResourceGroup(rg string) string {
	prefixes := []struct{ prefix, family string }{
		{"N2D", "n2d"}, {"C2D", "c2d"}, {"C3D", "c3d"},
		{"N1", "n1"}, {"N2", "n2"},
		{"E2", "e2"},
		{"C2", "c2"}, {"C3", "c3"},
		{"M1", "m1"}, {"M3", "m3"},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(rg, p.prefix) {
			return p.family
		}
	}
	return ""
}

// componentFromDescription classifies an SKU as a CPU or RAM component
// from its description text
func componentFromDescription(desc string) string {
	lower := strings.ToLower(desc)
	if !strings.Contains(lower, "instance") {
		return ""
	}
	if strings.Contains(lower, "core") || strings.Contains(lower, "cpu") {
		return "cpu"
	}
	if strings.Contains(lower, "ram") {
		return "ram"
	}
	return ""
}
