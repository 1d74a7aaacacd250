package gcp

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"cloudwright/clouds"
	"cloudwright/internal/errors"
)

// managedSource maps a registry service key onto the billing catalog
// service that prices it
type managedSource struct {
	serviceID string

	// keyword filters SKUs by description when set
	keyword string
}

var managedSources = map[string]managedSource{
	"cloud_sql":       {serviceID: cloudSQLServiceID},
	"cloud_storage":   {serviceID: storageServiceID, keyword: "Standard Storage"},
	"cloud_functions": {serviceID: functionsServiceID},
}

// SupportedManagedServices returns the service keys this adapter fetches
func (a *Adapter) SupportedManagedServices() []string {
	return []string{"cloud_functions", "cloud_sql", "cloud_storage"}
}

// FetchManagedServicePricing fetches one managed service's tiers from
// the billing catalog. Missing or rejected credentials yield an empty
// result, matching instance pricing.
func (a *Adapter) FetchManagedServicePricing(ctx context.Context, service, region string) ([]clouds.ManagedServicePrice, error) {
	source, ok := managedSources[service]
	if !ok {
		return nil, errors.PricingUnavailable(service, "gcp")
	}

	key := a.apiKey()
	if key == "" {
		a.log.Info("no gcp api key configured, skipping managed pricing",
			zap.String("service", service))
		return nil, nil
	}

	skus, err := a.fetchSKUs(ctx, source.serviceID, region, key)
	if err != nil {
		if errors.IsType(err, errors.TypeAdapterAuth) {
			a.log.Warn("gcp rejected the api key, returning no prices",
				zap.String("service", service))
			return nil, nil
		}
		return nil, err
	}

	var tiers []clouds.ManagedServicePrice
	for _, sku := range skus {
		if sku.Category.UsageType != "OnDemand" {
			continue
		}
		if source.keyword != "" && !strings.Contains(sku.Description, source.keyword) {
			continue
		}
		rate, unit := skuRate(sku)
		if rate <= 0 {
			continue
		}

		tierName := sku.Category.ResourceGroup
		if tierName == "" {
			tierName = sku.SkuID
		}

		// Hourly SKUs become hourly tiers; per-GB-month SKUs carry
		// their rate in notes for the catalog's storage math.
		switch unit {
		case "h":
			tiers = append(tiers, clouds.ManagedServicePrice{
				Service:       service,
				TierName:      tierName,
				PricePerHour:  clouds.Hourly(rate),
				PricePerMonth: clouds.Monthly(rate * hoursPerMonth),
				Description:   sku.Description,
			})
		case "GiBy.mo":
			tiers = append(tiers, clouds.ManagedServicePrice{
				Service:       service,
				TierName:      tierName,
				PricePerMonth: clouds.Monthly(rate),
				Description:   sku.Description,
				Notes: map[string]interface{}{
					"per_gb_month":   rate,
					"storage_per_gb": rate,
				},
			})
		}
	}
	return tiers, nil
}
