package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cloudwright/core/registry"
	"cloudwright/data"
	"cloudwright/internal/errors"
)

// InstanceImport is one instance type plus its price, as produced by a
// pricing adapter for a single region
type InstanceImport struct {
	Name             string
	Family           string
	VCPUs            int
	MemoryGB         float64
	StorageDesc      string
	NetworkBandwidth string
	OS               string
	PriceType        string
	PricePerHour     float64
}

// ManagedImport is one managed service tier from a pricing adapter
type ManagedImport struct {
	Service       string
	Tier          string
	PricePerHour  *float64
	PricePerMonth *float64
	VCPUs         int
	MemoryGB      float64
	Description   string
	Notes         map[string]interface{}
}

// ImportInstancePrices upserts instance types and their prices for one
// provider and region in a single transaction
func (s *Store) ImportInstancePrices(ctx context.Context, provider, region string, imports []InstanceImport) error {
	if len(imports) == 0 {
		return nil
	}
	normalized := ""
	if table, err := data.LoadRegions(); err == nil {
		normalized = table.Normalize(region)
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO providers (id, name) VALUES (?, ?)`,
			provider, provider); err != nil {
			return fmt.Errorf("upsert provider %s: %w", provider, err)
		}
		regionID := provider + ":" + region
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO regions (id, provider, code, name, normalized) VALUES (?, ?, ?, ?, ?)`,
			regionID, provider, region, region, normalized); err != nil {
			return fmt.Errorf("upsert region %s: %w", region, err)
		}
		for _, imp := range imports {
			id := provider + ":" + imp.Name
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO instance_types (id, provider, name, family, vcpus, memory_gb, storage_desc, network_bandwidth)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					family = excluded.family,
					vcpus = excluded.vcpus,
					memory_gb = excluded.memory_gb,
					storage_desc = excluded.storage_desc,
					network_bandwidth = excluded.network_bandwidth
			`, id, provider, imp.Name, imp.Family, imp.VCPUs, imp.MemoryGB,
				imp.StorageDesc, imp.NetworkBandwidth); err != nil {
				return fmt.Errorf("upsert instance %s: %w", id, err)
			}
			os := imp.OS
			if os == "" {
				os = "linux"
			}
			priceType := imp.PriceType
			if priceType == "" {
				priceType = "on_demand"
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO pricing (instance_type_id, region_id, os, price_type, price_per_hour) VALUES (?, ?, ?, ?, ?)`,
				id, regionID, os, priceType, imp.PricePerHour); err != nil {
				return fmt.Errorf("upsert price %s: %w", id, err)
			}
		}
		return nil
	})
}

// ImportManagedServices upserts managed service tiers for one provider
// in a single transaction
func (s *Store) ImportManagedServices(ctx context.Context, provider string, imports []ManagedImport) error {
	if len(imports) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, imp := range imports {
			notes := "{}"
			if len(imp.Notes) > 0 {
				raw, err := json.Marshal(imp.Notes)
				if err != nil {
					return fmt.Errorf("encode notes for %s/%s: %w", imp.Service, imp.Tier, err)
				}
				notes = string(raw)
			}
			var hourly, monthly sql.NullFloat64
			if imp.PricePerHour != nil {
				hourly = sql.NullFloat64{Float64: *imp.PricePerHour, Valid: true}
			}
			if imp.PricePerMonth != nil {
				monthly = sql.NullFloat64{Float64: *imp.PricePerMonth, Valid: true}
			} else if imp.PricePerHour != nil {
				monthly = sql.NullFloat64{Float64: *imp.PricePerHour * hoursPerMonth, Valid: true}
			}
			id := provider + ":" + imp.Service + ":" + imp.Tier
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO managed_services (id, provider, service, tier, price_per_hour, price_per_month, vcpus, memory_gb, notes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, id, provider, imp.Service, imp.Tier, hourly, monthly,
				imp.VCPUs, imp.MemoryGB, notes); err != nil {
				return fmt.Errorf("upsert managed service %s: %w", id, err)
			}
		}
		return nil
	})
}

// SyncFromRegistry mirrors the service registry's definitions and
// equivalence groups into the catalog. Idempotent; runs in one
// transaction.
func (s *Store) SyncFromRegistry(ctx context.Context, reg *registry.Registry) error {
	if reg == nil {
		return errors.Internal("sync from nil registry", nil)
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, def := range reg.All() {
			cfg, err := json.Marshal(def.DefaultConfig)
			if err != nil {
				return fmt.Errorf("encode default config for %s: %w", def.Key, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO service_definitions (provider, service_key, category, name, pricing_formula, default_config)
				VALUES (?, ?, ?, ?, ?, ?)
			`, string(def.Provider), def.Key, def.Category, def.Name,
				def.PricingFormula, string(cfg)); err != nil {
				return fmt.Errorf("upsert service definition %s/%s: %w", def.Provider, def.Key, err)
			}
		}
		for _, group := range reg.Groups() {
			for providerA, serviceA := range group.Members {
				for providerB, serviceB := range group.Members {
					if providerA == providerB {
						continue
					}
					if _, err := tx.ExecContext(ctx, `
						INSERT OR REPLACE INTO service_equivalences (service_a, provider_a, service_b, provider_b)
						VALUES (?, ?, ?, ?)
					`, serviceA, string(providerA), serviceB, string(providerB)); err != nil {
						return fmt.Errorf("upsert service equivalence %s -> %s: %w", serviceA, serviceB, err)
					}
				}
			}
		}
		return nil
	})
}
