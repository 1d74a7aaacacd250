// Package azure fetches Azure pricing from the Retail Prices API. The
// endpoint is public and unauthenticated; queries are OData filters
// over region, service name, and price type.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"cloudwright/clouds"
	"cloudwright/core/spec"
	"cloudwright/internal/errors"
	"cloudwright/internal/logging"
)

// DefaultBaseURL is the Retail Prices endpoint
const DefaultBaseURL = "https://prices.azure.com/api/retail/prices"

const apiVersion = "2023-01-01-preview"

// maxPages bounds NextPageLink pagination
const maxPages = 100

const hoursPerMonth = 730

// Adapter implements clouds.Adapter for Azure
type Adapter struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

// New creates an Azure pricing adapter with production defaults
func New() *Adapter {
	return &Adapter{
		client:  clouds.NewHTTPClient(),
		baseURL: DefaultBaseURL,
		log:     logging.Named("clouds.azure"),
	}
}

// NewWithBaseURL creates an adapter against a custom endpoint. Tests
// point this at a local server.
func NewWithBaseURL(baseURL string, client *http.Client) *Adapter {
	a := New()
	a.baseURL = baseURL
	if client != nil {
		a.client = client
	}
	return a
}

// Provider returns the provider identifier
func (a *Adapter) Provider() spec.Provider {
	return spec.ProviderAzure
}

// ----------------------------------------------------------------------------
// Retail Prices wire types
// ----------------------------------------------------------------------------

type retailResponse struct {
	Items        []retailItem `json:"Items"`
	NextPageLink string       `json:"NextPageLink"`
	Count        int          `json:"Count"`
}

type retailItem struct {
	RetailPrice   float64 `json:"retailPrice"`
	ArmRegionName string  `json:"armRegionName"`
	MeterName     string  `json:"meterName"`
	ProductName   string  `json:"productName"`
	SkuName       string  `json:"skuName"`
	ServiceName   string  `json:"serviceName"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
	ArmSkuName    string  `json:"armSkuName"`
	Type          string  `json:"type"`
}

// skipTerms name purchase models and OS variants excluded from linux
// on-demand pricing
var skipTerms = []string{"Spot", "Low Priority", "Windows", "Dedicated Host", "Reserved"}

func excluded(item retailItem) bool {
	for _, term := range skipTerms {
		if strings.Contains(item.SkuName, term) || strings.Contains(item.ProductName, term) {
			return true
		}
	}
	return false
}

// buildURL encodes the OData filter for the first page; later pages
// follow NextPageLink verbatim
func (a *Adapter) buildURL(filter string) string {
	params := url.Values{}
	params.Set("$filter", filter)
	params.Set("api-version", apiVersion)
	return a.baseURL + "?" + params.Encode()
}

// fetchPage fetches one retail prices page and returns the items plus
// the next page link
func (a *Adapter) fetchPage(ctx context.Context, pageURL string) ([]retailItem, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", errors.AdapterHTTP("azure", pageURL, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", errors.AdapterHTTP("azure", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.AdapterHTTP("azure", pageURL, fmt.Errorf("status %d", resp.StatusCode))
	}
	var page retailResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", errors.Parsing("decoding retail prices response", err)
	}
	return page.Items, page.NextPageLink, nil
}

// fetchAll walks every page of a filtered query
func (a *Adapter) fetchAll(ctx context.Context, filter string) ([]retailItem, error) {
	var items []retailItem
	next := a.buildURL(filter)

	for page := 0; next != "" && page < maxPages; page++ {
		pageItems, link, err := a.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		items = append(items, pageItems...)
		next = link
	}
	if next != "" {
		a.log.Warn("retail prices pagination hit the page cap",
			zap.String("filter", filter),
			zap.Int("max_pages", maxPages))
	}
	return items, nil
}

// FetchInstancePricing streams linux consumption VM prices for a region
func (a *Adapter) FetchInstancePricing(ctx context.Context, region string, yield func(clouds.InstancePrice) error) error {
	filter := fmt.Sprintf("armRegionName eq '%s' and serviceName eq 'Virtual Machines' and priceType eq 'Consumption'", region)
	items, err := a.fetchAll(ctx, filter)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	emitted := 0
	for _, item := range items {
		if excluded(item) {
			continue
		}
		if item.RetailPrice <= 0 || item.UnitOfMeasure != "1 Hour" {
			continue
		}
		name := strings.TrimPrefix(item.ArmSkuName, "Standard_")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		row := clouds.InstancePrice{
			InstanceType: name,
			Region:       region,
			PricePerHour: item.RetailPrice,
			PriceType:    "on_demand",
			OS:           "linux",
		}
		if err := yield(row); err != nil {
			return err
		}
		emitted++
	}
	a.log.Debug("fetched azure vm pricing",
		zap.String("region", region),
		zap.Int("instances", emitted))
	return nil
}

// managedServiceNames maps registry service keys onto retail API
// service names
var managedServiceNames = map[string]string{
	"azure_sql":    "SQL Database",
	"blob_storage": "Storage",
	"redis_cache":  "Redis Cache",
}

// SupportedManagedServices returns the service keys this adapter fetches
func (a *Adapter) SupportedManagedServices() []string {
	return []string{"azure_sql", "blob_storage", "redis_cache"}
}

// FetchManagedServicePricing fetches one managed service's consumption
// tiers for a region
func (a *Adapter) FetchManagedServicePricing(ctx context.Context, service, region string) ([]clouds.ManagedServicePrice, error) {
	serviceName, ok := managedServiceNames[service]
	if !ok {
		return nil, errors.PricingUnavailable(service, "azure")
	}

	filter := fmt.Sprintf("armRegionName eq '%s' and serviceName eq '%s' and priceType eq 'Consumption'", region, serviceName)
	items, err := a.fetchAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	var tiers []clouds.ManagedServicePrice
	for _, item := range items {
		if excluded(item) || item.RetailPrice <= 0 {
			continue
		}
		if service == "blob_storage" && !strings.Contains(item.ProductName, "Blob") {
			continue
		}
		tierName := item.SkuName
		if tierName == "" {
			tierName = item.MeterName
		}

		switch item.UnitOfMeasure {
		case "1 Hour":
			tiers = append(tiers, clouds.ManagedServicePrice{
				Service:       service,
				TierName:      tierName,
				PricePerHour:  clouds.Hourly(item.RetailPrice),
				PricePerMonth: clouds.Monthly(item.RetailPrice * hoursPerMonth),
				Description:   item.ProductName,
			})
		case "1 GB/Month":
			tiers = append(tiers, clouds.ManagedServicePrice{
				Service:       service,
				TierName:      tierName,
				PricePerMonth: clouds.Monthly(item.RetailPrice),
				Description:   item.ProductName,
				Notes: map[string]interface{}{
					"per_gb_month":   item.RetailPrice,
					"storage_per_gb": item.RetailPrice,
				},
			})
		case "1/Month":
			tiers = append(tiers, clouds.ManagedServicePrice{
				Service:       service,
				TierName:      tierName,
				PricePerMonth: clouds.Monthly(item.RetailPrice),
				Description:   item.ProductName,
			})
		}
	}
	return tiers, nil
}

func init() {
	if err := clouds.RegisterAdapter(New()); err != nil {
		panic(err)
	}
}
