package cost

import (
	"errors"

	"github.com/shopspring/decimal"

	"cloudwright/core/spec"
)

// ErrFormula marks a formula evaluation that produced no usable price.
// It is logged, never returned: pricing falls through to the fallback
// table instead of failing the estimate.
var ErrFormula = errors.New("pricing formula produced no price")

// formulaFunc evaluates one named pricing formula over a component's
// default-merged config. Rates and quantities both come from the
// config; there is no expression evaluation.
type formulaFunc func(cfg spec.Config) decimal.Decimal

var formulas = map[string]formulaFunc{
	"per_hour":           perHour,
	"per_request":        perRequest,
	"per_gb":             perGB,
	"per_gb_hour":        perGBHour,
	"per_zone":           perZone,
	"fixed_plus_request": fixedPlusRequest,
	"per_mau":            perMAU,
	"per_shard_hour":     perShardHour,
	"per_tb_query":       perTBQuery,
	"per_node_hour":      perNodeHour,
}

var (
	million = decimal.NewFromInt(1_000_000)
	hours   = decimal.NewFromInt(hoursPerMonth)
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// perHour: price_per_hour x 730 x count
func perHour(cfg spec.Config) decimal.Decimal {
	rate := cfg.FloatOr("price_per_hour", 0)
	count := cfg.FloatOr("count", 1)
	return dec(rate).Mul(hours).Mul(dec(count))
}

// perRequest: requests / 1M x price_per_million
func perRequest(cfg spec.Config) decimal.Decimal {
	requests := cfg.FloatOr("requests", 0)
	rate := cfg.FloatOr("price_per_million", 0)
	return dec(requests).Div(million).Mul(dec(rate))
}

// perGB: quantity x price_per_gb, quantity being whichever GB key the
// service vocabulary uses
func perGB(cfg spec.Config) decimal.Decimal {
	gb, _ := firstFloat(cfg, "storage_gb", "monthly_gb", "estimated_gb", "capacity_gb")
	rate := cfg.FloatOr("price_per_gb", 0)
	return dec(gb).Mul(dec(rate))
}

// perGBHour: capacity_gb x price_per_gb_hour x 730
func perGBHour(cfg spec.Config) decimal.Decimal {
	gb, _ := firstFloat(cfg, "capacity_gb", "storage_gb")
	rate := cfg.FloatOr("price_per_gb_hour", 0)
	return dec(gb).Mul(dec(rate)).Mul(hours)
}

// perZone: zones x price_per_zone per month
func perZone(cfg spec.Config) decimal.Decimal {
	zones := cfg.FloatOr("zones", 1)
	rate := cfg.FloatOr("price_per_zone", 0)
	return dec(zones).Mul(dec(rate))
}

// fixedPlusRequest: fixed_monthly + requests / 1M x price_per_million
func fixedPlusRequest(cfg spec.Config) decimal.Decimal {
	fixed := cfg.FloatOr("fixed_monthly", 0)
	return dec(fixed).Add(perRequest(cfg))
}

// perMAU: monthly active users beyond the free allowance x price_per_mau
func perMAU(cfg spec.Config) decimal.Decimal {
	mau := cfg.FloatOr("mau", 0)
	free := cfg.FloatOr("free_mau", 0)
	billable := dec(mau).Sub(dec(free))
	if billable.IsNegative() {
		return decimal.Zero
	}
	return billable.Mul(dec(cfg.FloatOr("price_per_mau", 0)))
}

// perShardHour: shards x price_per_shard_hour x 730
func perShardHour(cfg spec.Config) decimal.Decimal {
	shards := cfg.FloatOr("shards", 1)
	rate := cfg.FloatOr("price_per_shard_hour", 0)
	return dec(shards).Mul(dec(rate)).Mul(hours)
}

// perTBQuery: tb_scanned x price_per_tb
func perTBQuery(cfg spec.Config) decimal.Decimal {
	tb := cfg.FloatOr("tb_scanned", 0)
	rate := cfg.FloatOr("price_per_tb", 0)
	return dec(tb).Mul(dec(rate))
}

// perNodeHour: nodes x price_per_node_hour x 730
func perNodeHour(cfg spec.Config) decimal.Decimal {
	nodes, ok := firstFloat(cfg, "nodes", "node_count")
	if !ok {
		nodes = 1
	}
	rate := cfg.FloatOr("price_per_node_hour", 0)
	return dec(nodes).Mul(dec(rate)).Mul(hours)
}
