// Package gcp fetches GCP pricing from the Cloud Billing Catalog API.
// Auth is an API key read from the environment (variable name set in
// config). A missing key, or a 401/403 from the API, degrades to empty
// results so refresh runs proceed without GCP credentials.
package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cloudwright/clouds"
	"cloudwright/core/spec"
	"cloudwright/internal/config"
	"cloudwright/internal/errors"
	"cloudwright/internal/logging"
)

// DefaultBaseURL is the Cloud Billing Catalog endpoint
const DefaultBaseURL = "https://cloudbilling.googleapis.com/v1"

// Billing catalog service identifiers. These are stable public IDs,
// not credentials.
const (
	computeServiceID   = "6F81-5844-456A"
	cloudSQLServiceID  = "9662-B51E-5089"
	storageServiceID   = "95FF-2EF5-5EA1"
	functionsServiceID = "29E7-DA93-CA13"
)

// maxPages bounds catalog pagination
const maxPages = 50

const hoursPerMonth = 730

// Adapter implements clouds.Adapter for GCP
type Adapter struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

// New creates a GCP pricing adapter with production defaults
func New() *Adapter {
	return &Adapter{
		client:  clouds.NewHTTPClient(),
		baseURL: DefaultBaseURL,
		log:     logging.Named("clouds.gcp"),
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
	return spec.ProviderGCP
}

// apiKey reads the key from the configured environment variable
func (a *Adapter) apiKey() string {
	return os.Getenv(config.Get().Refresh.GCPAPIKeyEnv)
}

// ----------------------------------------------------------------------------
// Billing catalog wire types
// ----------------------------------------------------------------------------

type catalogResponse struct {
	Skus          []catalogSKU `json:"skus"`
	NextPageToken string       `json:"nextPageToken"`
}

type catalogSKU struct {
	SkuID          string           `json:"skuId"`
	Description    string           `json:"description"`
	Category       skuCategory      `json:"category"`
	ServiceRegions []string         `json:"serviceRegions"`
	PricingInfo    []skuPricingInfo `json:"pricingInfo"`
}

type skuCategory struct {
	ResourceFamily string `json:"resourceFamily"`
	ResourceGroup  string `json:"resourceGroup"`
	UsageType      string `json:"usageType"`
}

type skuPricingInfo struct {
	PricingExpression skuPricingExpression `json:"pricingExpression"`
}

type skuPricingExpression struct {
	UsageUnit   string          `json:"usageUnit"`
	TieredRates []skuTieredRate `json:"tieredRates"`
}

type skuTieredRate struct {
	StartUsageAmount float64      `json:"startUsageAmount"`
	UnitPrice        skuUnitPrice `json:"unitPrice"`
}

type skuUnitPrice struct {
	CurrencyCode string `json:"currencyCode"`
	Units        string `json:"units"`
	Nanos        int64  `json:"nanos"`
}

// skuRate extracts the base unit price and usage unit of an SKU. The
// first tiered rate is the base rate; later entries are volume tiers.
func skuRate(sku catalogSKU) (float64, string) {
	if len(sku.PricingInfo) == 0 {
		return 0, ""
	}
	expr := sku.PricingInfo[0].PricingExpression
	if len(expr.TieredRates) == 0 {
		return 0, ""
	}
	up := expr.TieredRates[0].UnitPrice
	units := 0.0
	if up.Units != "" {
		if v, err := strconv.ParseFloat(up.Units, 64); err == nil {
			units = v
		}
	}
	return units + float64(up.Nanos)/1e9, expr.UsageUnit
}

// regionMatches reports whether an SKU's service regions cover region:
// "global", an exact match, or a parent region ("us" covers "us-east1")
func regionMatches(serviceRegions []string, region string) bool {
	for _, r := range serviceRegions {
		if r == "global" || r == region {
			return true
		}
		if strings.HasPrefix(region, r+"-") {
			return true
		}
	}
	return false
}

// fetchSKUs pages through a billing catalog service and returns the
// SKUs covering the region
func (a *Adapter) fetchSKUs(ctx context.Context, serviceID, region, key string) ([]catalogSKU, error) {
	var matched []catalogSKU
	pageToken := ""

	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("key", key)
		query.Set("currencyCode", "USD")
		query.Set("pageSize", "500")
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		endpoint := fmt.Sprintf("%s/services/%s/skus?%s", a.baseURL, serviceID, query.Encode())

		var resp catalogResponse
		if err := a.getJSON(ctx, endpoint, &resp); err != nil {
			return nil, err
		}

		for _, sku := range resp.Skus {
			if regionMatches(sku.ServiceRegions, region) {
				matched = append(matched, sku)
			}
		}

		if resp.NextPageToken == "" {
			return matched, nil
		}
		pageToken = resp.NextPageToken
	}
	a.log.Warn("billing catalog pagination hit the page cap",
		zap.String("service", serviceID),
		zap.Int("max_pages", maxPages))
	return matched, nil
}

// getJSON performs one catalog request. The API key rides in the query
// string, so errors carry a redacted copy of the URL.
func (a *Adapter) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	safe := redactKey(endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.AdapterHTTP("gcp", safe, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.AdapterHTTP("gcp", safe, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.AdapterAuth("gcp", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.AdapterHTTP("gcp", safe, fmt.Errorf("status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Parsing("decoding billing catalog response", err)
	}
	return nil
}

func redactKey(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func init() {
	if err := clouds.RegisterAdapter(New()); err != nil {
		panic(err)
	}
}
