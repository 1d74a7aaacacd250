package catalog

import (
	"context"
	"database/sql"
	"strings"

	"cloudwright/internal/errors"
)

// InstanceRow is one instance type with its best known on-demand price
type InstanceRow struct {
	ID           string   `json:"id"`
	Provider     string   `json:"provider"`
	Name         string   `json:"name"`
	Family       string   `json:"family,omitempty"`
	VCPUs        int      `json:"vcpus"`
	MemoryGB     float64  `json:"memory_gb"`
	StorageDesc  string   `json:"storage_desc,omitempty"`
	PricePerHour *float64 `json:"price_per_hour,omitempty"`
}

// SearchQuery filters instance search. Zero values disable a predicate.
type SearchQuery struct {
	Query           string  `json:"query,omitempty"`
	MinVCPUs        int     `json:"vcpus,omitempty"`
	MinMemoryGB     float64 `json:"memory_gb,omitempty"`
	Provider        string  `json:"provider,omitempty"`
	MaxPricePerHour float64 `json:"max_price_per_hour,omitempty"`
	Limit           int     `json:"limit,omitempty"`
}

const searchLimitDefault = 20

// Search finds instance types matching the query, cheapest first with
// unpriced rows last. The WHERE clause is assembled only from the fixed
// fragments below; every caller value is bound as a parameter.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]InstanceRow, error) {
	query := `
		SELECT it.id, it.provider, it.name, COALESCE(it.family, ''),
			   COALESCE(it.vcpus, 0), COALESCE(it.memory_gb, 0),
			   COALESCE(it.storage_desc, ''),
			   MIN(p.price_per_hour) AS price
		FROM instance_types it
		LEFT JOIN pricing p
			ON p.instance_type_id = it.id
			AND p.os = 'linux' AND p.price_type = 'on_demand'
		WHERE 1=1
	`
	var args []interface{}
	if q.Query != "" {
		query += ` AND (it.name LIKE ? OR it.family LIKE ?)`
		pattern := "%" + q.Query + "%"
		args = append(args, pattern, pattern)
	}
	if q.MinVCPUs > 0 {
		query += ` AND it.vcpus >= ?`
		args = append(args, q.MinVCPUs)
	}
	if q.MinMemoryGB > 0 {
		query += ` AND it.memory_gb >= ?`
		args = append(args, q.MinMemoryGB)
	}
	if q.Provider != "" {
		query += ` AND it.provider = ?`
		args = append(args, q.Provider)
	}
	query += ` GROUP BY it.id`
	if q.MaxPricePerHour > 0 {
		query += ` HAVING price <= ?`
		args = append(args, q.MaxPricePerHour)
	}
	query += ` ORDER BY price IS NULL, price ASC, it.id ASC LIMIT ?`
	limit := q.Limit
	if limit <= 0 {
		limit = searchLimitDefault
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.CatalogIO("search instances", err)
	}
	defer rows.Close()

	var results []InstanceRow
	for rows.Next() {
		var row InstanceRow
		var price sql.NullFloat64
		if err := rows.Scan(&row.ID, &row.Provider, &row.Name, &row.Family,
			&row.VCPUs, &row.MemoryGB, &row.StorageDesc, &price); err != nil {
			return nil, errors.CatalogIO("scan instance row", err)
		}
		if price.Valid {
			v := price.Float64
			row.PricePerHour = &v
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// comparePrefixes is the order names are qualified when a bare name is
// given to Compare or FindInstance.
var comparePrefixes = []string{"aws", "gcp", "azure"}

// FindInstance resolves a name to an instance row. Qualified names
// (provider:name) match directly; bare names try each provider in a
// fixed order. Unknown names return nil.
func (s *Store) FindInstance(ctx context.Context, name string) (*InstanceRow, error) {
	if strings.Contains(name, ":") {
		return s.instanceByID(ctx, name)
	}
	for _, provider := range comparePrefixes {
		row, err := s.instanceByID(ctx, provider+":"+name)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return row, nil
		}
	}
	return nil, nil
}

// Compare resolves each name via FindInstance and returns the rows that
// matched, preserving input order
func (s *Store) Compare(ctx context.Context, names ...string) ([]InstanceRow, error) {
	var results []InstanceRow
	for _, name := range names {
		row, err := s.FindInstance(ctx, name)
		if err != nil {
			return nil, err
		}
		if row != nil {
			results = append(results, *row)
		}
	}
	return results, nil
}

func (s *Store) instanceByID(ctx context.Context, id string) (*InstanceRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT it.id, it.provider, it.name, COALESCE(it.family, ''),
			   COALESCE(it.vcpus, 0), COALESCE(it.memory_gb, 0),
			   COALESCE(it.storage_desc, ''),
			   MIN(p.price_per_hour)
		FROM instance_types it
		LEFT JOIN pricing p
			ON p.instance_type_id = it.id
			AND p.os = 'linux' AND p.price_type = 'on_demand'
		WHERE it.id = ?
		GROUP BY it.id
	`, id)
	var result InstanceRow
	var price sql.NullFloat64
	err := row.Scan(&result.ID, &result.Provider, &result.Name, &result.Family,
		&result.VCPUs, &result.MemoryGB, &result.StorageDesc, &price)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.CatalogIO("find instance", err)
	}
	if price.Valid {
		v := price.Float64
		result.PricePerHour = &v
	}
	return &result, nil
}

// instancePrice returns the hourly linux on-demand price for an instance,
// preferring an exact region match and falling back to the cheapest row.
func (s *Store) instancePrice(ctx context.Context, provider, name, region string) (float64, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.price_per_hour
		FROM pricing p
		JOIN regions r ON r.id = p.region_id
		WHERE p.instance_type_id = ? AND p.os = 'linux' AND p.price_type = 'on_demand'
		ORDER BY (r.code = ?) DESC, p.price_per_hour ASC
		LIMIT 1
	`, provider+":"+name, region)
	var price sql.NullFloat64
	err := row.Scan(&price)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.CatalogIO("instance price", err)
	}
	if !price.Valid {
		return 0, false, nil
	}
	return price.Float64, true, nil
}

// EquivalentInstance maps an instance name onto another provider using
// the equivalence table. Returns empty when no mapping exists.
func (s *Store) EquivalentInstance(ctx context.Context, name, fromProvider, toProvider string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT instance_b_id FROM equivalences
		WHERE instance_a_id = ? AND instance_b_id LIKE ?
		ORDER BY confidence DESC
		LIMIT 1
	`, fromProvider+":"+name, toProvider+":%")
	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.CatalogIO("equivalent instance", err)
	}
	return strings.TrimPrefix(id, toProvider+":"), nil
}
