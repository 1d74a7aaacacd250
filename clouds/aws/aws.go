// Package aws fetches AWS pricing from the public bulk offer files.
// EC2 prices stream from the region-scoped CSV offer; managed services
// (Lambda, S3, RDS, DynamoDB) parse the per-service JSON offers. The
// endpoints are unauthenticated.
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"cloudwright/clouds"
	"cloudwright/core/spec"
	"cloudwright/internal/errors"
	"cloudwright/internal/logging"
)

// DefaultBaseURL serves the AWS bulk pricing offer files
const DefaultBaseURL = "https://pricing.us-east-1.amazonaws.com"

// hoursPerMonth matches the 730-hour month the catalog uses
const hoursPerMonth = 730

// Adapter implements clouds.Adapter for AWS
type Adapter struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

// New creates an AWS pricing adapter with production defaults
func New() *Adapter {
	return &Adapter{
		client:  clouds.NewHTTPClient(),
		baseURL: DefaultBaseURL,
		log:     logging.Named("clouds.aws"),
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
	return spec.ProviderAWS
}

// SupportedManagedServices returns the service keys this adapter fetches
func (a *Adapter) SupportedManagedServices() []string {
	return []string{"dynamodb", "lambda", "rds", "s3"}
}

// FetchManagedServicePricing dispatches to the per-service offer parser
func (a *Adapter) FetchManagedServicePricing(ctx context.Context, service, region string) ([]clouds.ManagedServicePrice, error) {
	switch service {
	case "lambda":
		return a.fetchLambda(ctx, region)
	case "s3":
		return a.fetchS3(ctx, region)
	case "rds":
		return a.fetchRDS(ctx, region)
	case "dynamodb":
		return a.fetchDynamoDB(ctx, region)
	default:
		return nil, errors.PricingUnavailable(service, "aws")
	}
}

// ----------------------------------------------------------------------------
// Offer file decoding
// ----------------------------------------------------------------------------

// The JSON offers for every AWS service share one shape: a products map
// keyed by SKU plus on-demand terms keyed by SKU.

type offerFile struct {
	Products map[string]offerProduct `json:"products"`
	Terms    offerTerms              `json:"terms"`
}

type offerProduct struct {
	SKU           string            `json:"sku"`
	ProductFamily string            `json:"productFamily"`
	Attributes    map[string]string `json:"attributes"`
}

type offerTerms struct {
	OnDemand map[string]map[string]offerTerm `json:"OnDemand"`
}

type offerTerm struct {
	PriceDimensions map[string]offerDimension `json:"priceDimensions"`
}

type offerDimension struct {
	Description  string            `json:"description"`
	BeginRange   string            `json:"beginRange"`
	Unit         string            `json:"unit"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

// onDemandUSD returns the base-tier on-demand USD rate for a SKU.
// Offers express volume tiers as separate price dimensions; the
// dimension with the lowest starting range is the base rate.
func (f *offerFile) onDemandUSD(sku string) (float64, bool) {
	best := 0.0
	bestRange := math.MaxFloat64
	for _, term := range f.Terms.OnDemand[sku] {
		for _, dim := range term.PriceDimensions {
			raw, ok := dim.PricePerUnit["USD"]
			if !ok {
				continue
			}
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil || price <= 0 {
				continue
			}
			begin := 0.0
			if dim.BeginRange != "" && dim.BeginRange != "Inf" {
				if v, err := strconv.ParseFloat(dim.BeginRange, 64); err == nil {
					begin = v
				}
			}
			if begin < bestRange || (begin == bestRange && price < best) {
				best = price
				bestRange = begin
			}
		}
	}
	if best <= 0 {
		return 0, false
	}
	return best, true
}

// fetchOffer downloads and decodes a JSON offer file
func (a *Adapter) fetchOffer(ctx context.Context, path string) (*offerFile, error) {
	url := a.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.AdapterHTTP("aws", url, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.AdapterHTTP("aws", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.AdapterHTTP("aws", url, fmt.Errorf("status %d", resp.StatusCode))
	}
	var offer offerFile
	if err := json.NewDecoder(resp.Body).Decode(&offer); err != nil {
		return nil, errors.Parsing("decoding aws offer file", err)
	}
	return &offer, nil
}

// sortedSKUs returns product SKUs in a stable order so repeated fetches
// emit tiers identically
func sortedSKUs(products map[string]offerProduct) []string {
	skus := make([]string, 0, len(products))
	for sku := range products {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

// awsLocation maps a region code to the location name global offer
// files use in product attributes
func awsLocation(region string) string {
	locations := map[string]string{
		"us-east-1":      "US East (N. Virginia)",
		"us-east-2":      "US East (Ohio)",
		"us-west-1":      "US West (N. California)",
		"us-west-2":      "US West (Oregon)",
		"eu-west-1":      "EU (Ireland)",
		"eu-west-2":      "EU (London)",
		"eu-west-3":      "EU (Paris)",
		"eu-central-1":   "EU (Frankfurt)",
		"eu-north-1":     "EU (Stockholm)",
		"ap-northeast-1": "Asia Pacific (Tokyo)",
		"ap-northeast-2": "Asia Pacific (Seoul)",
		"ap-southeast-1": "Asia Pacific (Singapore)",
		"ap-southeast-2": "Asia Pacific (Sydney)",
		"ap-south-1":     "Asia Pacific (Mumbai)",
		"sa-east-1":      "South America (Sao Paulo)",
		"ca-central-1":   "Canada (Central)",
	}
	if loc, ok := locations[region]; ok {
		return loc
	}
	return region
}

func init() {
	if err := clouds.RegisterAdapter(New()); err != nil {
		panic(err)
	}
}
