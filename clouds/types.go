// Package clouds - Common pricing adapter interfaces and types
// This package defines the contract that all provider adapters must
// implement. Adapters fetch raw prices from provider APIs - they NEVER
// write to the catalog.
package clouds

import (
	"context"
	"net/http"
	"time"

	"cloudwright/core/spec"
)

// InstancePrice is one priced VM shape for a region
type InstancePrice struct {
	// InstanceType is the provider's name (e.g., "m5.large")
	InstanceType string

	// Region is the provider region code
	Region string

	// VCPUs and MemoryGB describe the shape when the API exposes them
	VCPUs    int
	MemoryGB float64

	// PricePerHour is the linux on-demand hourly USD price
	PricePerHour float64

	// PriceType is the purchase model ("on_demand")
	PriceType string

	// OS is the operating system ("linux")
	OS string

	// StorageDesc describes attached storage (e.g., "EBS only")
	StorageDesc string

	// NetworkBandwidth describes network performance
	NetworkBandwidth string
}

// ManagedServicePrice is one priced managed service tier
type ManagedServicePrice struct {
	// Service is the registry service key (e.g., "rds")
	Service string

	// TierName identifies the tier (e.g., "db.t3.medium", "per_request")
	TierName string

	// PricePerHour and PricePerMonth are nil when the tier has no
	// price in that unit
	PricePerHour  *float64
	PricePerMonth *float64

	VCPUs    int
	MemoryGB float64

	// Description is the provider's human-readable tier description
	Description string

	// Notes carries per-unit rates the catalog stores alongside the
	// tier (storage_per_gb, per_gb_month, price_per_million)
	Notes map[string]interface{}
}

// Adapter is the capability set each provider pricing adapter implements
type Adapter interface {
	// Provider returns the provider this adapter fetches for
	Provider() spec.Provider

	// FetchInstancePricing streams instance prices for a region,
	// invoking yield per price. A yield error stops the stream and is
	// returned unchanged.
	FetchInstancePricing(ctx context.Context, region string, yield func(InstancePrice) error) error

	// FetchManagedServicePricing fetches the priced tiers of one
	// managed service in a region
	FetchManagedServicePricing(ctx context.Context, service, region string) ([]ManagedServicePrice, error)

	// SupportedManagedServices returns the registry service keys the
	// adapter can fetch
	SupportedManagedServices() []string
}

// DefaultHTTPTimeout bounds every adapter API call. Adapters do not
// retry; transport errors propagate to the refresh pipeline.
const DefaultHTTPTimeout = 30 * time.Second

// NewHTTPClient returns the client adapters share
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

// Hourly wraps an hourly price for ManagedServicePrice literals
func Hourly(price float64) *float64 {
	return &price
}

// Monthly wraps a monthly price for ManagedServicePrice literals
func Monthly(price float64) *float64 {
	return &price
}
