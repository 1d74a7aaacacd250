package catalog

import (
	"context"
	"database/sql"
	"encoding/json"

	"cloudwright/core/spec"
	"cloudwright/data"
	"cloudwright/internal/errors"
)

const hoursPerMonth = 730

// Per-month fallbacks when a load balancer has no catalog row.
var lbFallbackMonthly = map[string]float64{
	"alb":                  16.43,
	"nlb":                  16.43,
	"elb":                  18.25,
	"cloud_load_balancing": 18.25,
	"load_balancer":        18.25,
	"application_gateway":  140.0,
}

// ServicePricing resolves a component's monthly USD price from catalog
// data, branching by service family. Returns ok=false when the catalog
// cannot price the service, leaving resolution to the formula and
// fallback layers. The pricing tier discount is applied here; callers
// must not apply it again.
func (s *Store) ServicePricing(ctx context.Context, service string, provider spec.Provider, region string, cfg spec.Config, tier spec.PricingTier) (float64, bool, error) {
	classes, err := data.LoadServiceClasses()
	if err != nil {
		return 0, false, errors.Internal("load service classes", err)
	}
	monthly, ok, err := s.resolveFromCatalog(ctx, service, string(provider), region, cfg, classes)
	if err != nil || !ok {
		return 0, false, err
	}
	return monthly * tier.Discount(), true, nil
}

func (s *Store) resolveFromCatalog(ctx context.Context, service, provider, region string, cfg spec.Config, classes *data.ServiceClasses) (float64, bool, error) {
	switch {
	case service == "ec2" || service == "compute_engine" || service == "virtual_machines":
		name := firstString(cfg, "instance_type", "machine_type", "vm_size")
		if name == "" {
			return 0, false, nil
		}
		hourly, found, err := s.instancePrice(ctx, provider, name, region)
		if err != nil || !found {
			return 0, false, err
		}
		count := cfg.FloatOr("count", 1)
		return hourly * hoursPerMonth * count, true, nil

	case service == "rds" || service == "aurora" || service == "cloud_sql" || service == "azure_sql":
		class := firstString(cfg, "instance_class")
		if class == "" {
			return 0, false, nil
		}
		row, err := s.managedByTier(ctx, provider, service, class)
		if err != nil {
			return 0, false, err
		}
		if row == nil || !row.PricePerHour.Valid {
			return 0, false, nil
		}
		compute := row.PricePerHour.Float64 * hoursPerMonth
		if cfg.FlagOr("multi_az", false) {
			compute *= 2
		}
		storage := cfg.FloatOr("storage_gb", 0) * noteRate(row.Notes, "storage_per_gb", 0.115)
		return compute + storage, true, nil

	case service == "s3" || service == "cloud_storage" || service == "blob_storage":
		gb, ok := cfg.Float("storage_gb")
		if !ok {
			return 0, false, nil
		}
		rate, err := s.managedNoteRate(ctx, provider, service, "per_gb_month", 0.023)
		if err != nil {
			return 0, false, err
		}
		return gb * rate, true, nil

	case classes.IsCDN(service):
		gb, ok := cfg.Float("estimated_gb")
		if !ok {
			return 0, false, nil
		}
		rate, err := s.managedNoteRate(ctx, provider, service, "per_gb", 0.085)
		if err != nil {
			return 0, false, err
		}
		return gb * rate, true, nil

	case classes.IsLoadBalancer(service):
		row, err := s.managedAny(ctx, provider, service)
		if err != nil {
			return 0, false, err
		}
		if row != nil && row.PricePerMonth.Valid {
			return row.PricePerMonth.Float64, true, nil
		}
		if monthly, ok := lbFallbackMonthly[service]; ok {
			return monthly, true, nil
		}
		return 0, false, nil

	case classes.IsCache(service):
		node := firstString(cfg, "node_type")
		if node == "" {
			return 0, false, nil
		}
		row, err := s.managedByTier(ctx, provider, service, node)
		if err != nil {
			return 0, false, err
		}
		if row == nil || !row.PricePerHour.Valid {
			return 0, false, nil
		}
		return row.PricePerHour.Float64 * hoursPerMonth, true, nil

	case service == "lambda" || service == "cloud_functions" || service == "azure_functions":
		requests := cfg.FloatOr("requests", 1_000_000)
		durationMS := cfg.FloatOr("duration_ms", 200)
		memoryMB := cfg.FloatOr("memory_mb", 512)
		requestCost := requests / 1e6 * 0.20
		gbSeconds := requests * durationMS / 1000 * memoryMB / 1024
		return requestCost + gbSeconds*0.0000166667, true, nil

	case service == "sqs" || service == "pub_sub" || service == "service_bus":
		requests := cfg.FloatOr("requests", 10_000_000)
		perMillion := 0.60
		if service == "sqs" {
			perMillion = 0.40
		}
		return requests / 1e6 * perMillion, true, nil

	case service == "dynamodb":
		if cfg.StrOr("billing_mode", "") == "provisioned" {
			wcu := firstFloat(cfg, 0, "wcu", "write_capacity")
			rcu := firstFloat(cfg, 0, "rcu", "read_capacity")
			return wcu*0.00065*hoursPerMonth + rcu*0.00013*hoursPerMonth, true, nil
		}
		return 25, true, nil
	}
	return 0, false, nil
}

// managedRow is a managed_services lookup result
type managedRow struct {
	ID            string
	Tier          string
	PricePerHour  sql.NullFloat64
	PricePerMonth sql.NullFloat64
	Notes         string
}

func (s *Store) managedByTier(ctx context.Context, provider, service, tier string) (*managedRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tier, price_per_hour, price_per_month, COALESCE(notes, '{}')
		FROM managed_services
		WHERE provider = ? AND service = ? AND tier = ?
	`, provider, service, tier)
	return scanManaged(row)
}

func (s *Store) managedAny(ctx context.Context, provider, service string) (*managedRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tier, price_per_hour, price_per_month, COALESCE(notes, '{}')
		FROM managed_services
		WHERE provider = ? AND service = ?
		ORDER BY id ASC
		LIMIT 1
	`, provider, service)
	return scanManaged(row)
}

func scanManaged(row *sql.Row) (*managedRow, error) {
	var m managedRow
	err := row.Scan(&m.ID, &m.Tier, &m.PricePerHour, &m.PricePerMonth, &m.Notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.CatalogIO("managed service lookup", err)
	}
	return &m, nil
}

// managedNoteRate reads a per-unit rate from the notes of a service's
// first catalog row, or the fallback when no row or key exists
func (s *Store) managedNoteRate(ctx context.Context, provider, service, key string, fallback float64) (float64, error) {
	row, err := s.managedAny(ctx, provider, service)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return fallback, nil
	}
	return noteRate(row.Notes, key, fallback), nil
}

// noteRate extracts a numeric rate from a notes JSON blob
func noteRate(notes, key string, fallback float64) float64 {
	if notes == "" {
		return fallback
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(notes), &parsed); err != nil {
		return fallback
	}
	if v, ok := parsed[key].(float64); ok {
		return v
	}
	return fallback
}

func firstString(cfg spec.Config, keys ...string) string {
	for _, key := range keys {
		if v, ok := cfg.Str(key); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(cfg spec.Config, def float64, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := cfg.Float(key); ok {
			return v
		}
	}
	return def
}
