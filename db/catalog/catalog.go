// Package catalog provides the persistent instance and service pricing
// store backing cost estimation. SQLite with WAL journaling; readers run
// concurrently while writes serialize behind a single writer lock.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"cloudwright/data"
	"cloudwright/internal/config"
	"cloudwright/internal/errors"
	"cloudwright/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS providers (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS regions (
	id         TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	code       TEXT NOT NULL,
	name       TEXT,
	normalized TEXT
);

CREATE TABLE IF NOT EXISTS instance_types (
	id                TEXT PRIMARY KEY,
	provider          TEXT NOT NULL,
	name              TEXT NOT NULL,
	family            TEXT,
	vcpus             INTEGER,
	memory_gb         REAL,
	storage_desc      TEXT,
	gpu_count         INTEGER DEFAULT 0,
	network_bandwidth TEXT,
	arch              TEXT,
	generation        TEXT
);

CREATE TABLE IF NOT EXISTS pricing (
	instance_type_id TEXT NOT NULL,
	region_id        TEXT NOT NULL,
	os               TEXT NOT NULL DEFAULT 'linux',
	price_type       TEXT NOT NULL DEFAULT 'on_demand',
	price_per_hour   REAL,
	PRIMARY KEY (instance_type_id, region_id, os, price_type)
);

CREATE TABLE IF NOT EXISTS equivalences (
	instance_a_id TEXT NOT NULL,
	instance_b_id TEXT NOT NULL,
	confidence    REAL,
	match_type    TEXT,
	PRIMARY KEY (instance_a_id, instance_b_id)
);

CREATE TABLE IF NOT EXISTS managed_services (
	id              TEXT PRIMARY KEY,
	provider        TEXT NOT NULL,
	service         TEXT NOT NULL,
	tier            TEXT NOT NULL,
	price_per_hour  REAL,
	price_per_month REAL,
	vcpus           INTEGER,
	memory_gb       REAL,
	notes           TEXT
);

CREATE TABLE IF NOT EXISTS service_definitions (
	provider        TEXT NOT NULL,
	service_key     TEXT NOT NULL,
	category        TEXT,
	name            TEXT,
	pricing_formula TEXT,
	default_config  TEXT,
	PRIMARY KEY (provider, service_key)
);

CREATE TABLE IF NOT EXISTS service_equivalences (
	service_a  TEXT NOT NULL,
	provider_a TEXT NOT NULL,
	service_b  TEXT NOT NULL,
	provider_b TEXT NOT NULL,
	PRIMARY KEY (service_a, provider_a, service_b, provider_b)
);

CREATE TABLE IF NOT EXISTS catalog_metadata (
	key        TEXT PRIMARY KEY,
	value      TEXT,
	updated_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_instance_types_provider ON instance_types(provider, name);
CREATE INDEX IF NOT EXISTS idx_pricing_region ON pricing(region_id);
CREATE INDEX IF NOT EXISTS idx_managed_provider_service ON managed_services(provider, service);
`

// Store is the catalog database handle
type Store struct {
	db  *sql.DB
	mu  sync.Mutex // serializes writers; readers go straight to the pool
	log *zap.Logger
}

// Open opens (creating and seeding if needed) the catalog at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.CatalogIO("create catalog directory", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_fk=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.CatalogIO("open catalog", err)
	}
	s := &Store{db: db, log: logging.Named("catalog")}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.CatalogIO("apply schema", err)
	}
	if err := s.seedIfEmpty(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a single write transaction
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.CatalogIO("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.CatalogIO("commit transaction", err)
	}
	return nil
}

// =============================================================================
// SEEDING
// =============================================================================

type seedRegion struct {
	Provider   string `json:"provider"`
	Code       string `json:"code"`
	Normalized string `json:"normalized"`
}

type seedInstance struct {
	Provider     string  `json:"provider"`
	Region       string  `json:"region"`
	InstanceType string  `json:"instance_type"`
	Family       string  `json:"family"`
	VCPUs        int     `json:"vcpus"`
	MemoryGB     float64 `json:"memory_gb"`
	PricePerHour float64 `json:"price_per_hour"`
}

type seedInstanceFile struct {
	Regions       []seedRegion   `json:"regions"`
	InstanceTypes []seedInstance `json:"instance_types"`
}

type seedManaged struct {
	Provider string          `json:"provider"`
	Service  string          `json:"service"`
	Tier     string          `json:"tier"`
	Unit     string          `json:"unit"`
	Price    float64         `json:"price"`
	Notes    json.RawMessage `json:"notes"`
}

type seedManagedFile struct {
	ManagedServices []seedManaged `json:"managed_services"`
}

type seedEquivalence struct {
	Kind       string  `json:"kind"`
	AWS        string  `json:"aws"`
	GCP        string  `json:"gcp"`
	Azure      string  `json:"azure"`
	Confidence float64 `json:"confidence"`
	MatchType  string  `json:"match_type"`
}

type seedEquivalenceFile struct {
	Equivalences []seedEquivalence `json:"equivalences"`
}

// seedFile reads a named seed file, preferring the configured override
// directory over the bundled data.
func seedFile(name string) ([]byte, error) {
	if dir := config.Get().Catalog.SeedDir; dir != "" {
		return os.ReadFile(filepath.Join(dir, name))
	}
	return data.Seed(name)
}

// seedSource names where seed data came from, for the metadata record
func seedSource() string {
	if dir := config.Get().Catalog.SeedDir; dir != "" {
		return dir
	}
	return "bundled"
}

// seedIfEmpty populates the catalog from the bundled seed files when the
// instance_types table holds no rows. The whole seed runs in one
// transaction; any failure rolls back to the empty state.
func (s *Store) seedIfEmpty(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instance_types`).Scan(&count); err != nil {
		return errors.CatalogIO("count instance types", err)
	}
	if count > 0 {
		return nil
	}

	instRaw, err := seedFile("instances.json")
	if err != nil {
		return errors.CatalogIO("read instance seed", err)
	}
	var instances seedInstanceFile
	if err := json.Unmarshal(instRaw, &instances); err != nil {
		return errors.Parsing("instance seed", err)
	}

	managedRaw, err := seedFile("managed_services.json")
	if err != nil {
		return errors.CatalogIO("read managed service seed", err)
	}
	var managed seedManagedFile
	if err := json.Unmarshal(managedRaw, &managed); err != nil {
		return errors.Parsing("managed service seed", err)
	}

	equivRaw, err := seedFile("equivalences.json")
	if err != nil {
		return errors.CatalogIO("read equivalence seed", err)
	}
	var equivalences seedEquivalenceFile
	if err := json.Unmarshal(equivRaw, &equivalences); err != nil {
		return errors.Parsing("equivalence seed", err)
	}

	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, r := range instances.Regions {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO providers (id, name) VALUES (?, ?)`,
				r.Provider, r.Provider); err != nil {
				return fmt.Errorf("seed provider %s: %w", r.Provider, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO regions (id, provider, code, name, normalized) VALUES (?, ?, ?, ?, ?)`,
				r.Provider+":"+r.Code, r.Provider, r.Code, r.Code, r.Normalized); err != nil {
				return fmt.Errorf("seed region %s: %w", r.Code, err)
			}
		}
		for _, it := range instances.InstanceTypes {
			id := it.Provider + ":" + it.InstanceType
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO instance_types (id, provider, name, family, vcpus, memory_gb) VALUES (?, ?, ?, ?, ?, ?)`,
				id, it.Provider, it.InstanceType, it.Family, it.VCPUs, it.MemoryGB); err != nil {
				return fmt.Errorf("seed instance %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO pricing (instance_type_id, region_id, os, price_type, price_per_hour) VALUES (?, ?, 'linux', 'on_demand', ?)`,
				id, it.Provider+":"+it.Region, it.PricePerHour); err != nil {
				return fmt.Errorf("seed price %s: %w", id, err)
			}
		}
		for _, m := range managed.ManagedServices {
			var hourly, monthly sql.NullFloat64
			switch m.Unit {
			case "hour":
				hourly = sql.NullFloat64{Float64: m.Price, Valid: true}
				monthly = sql.NullFloat64{Float64: m.Price * 730, Valid: true}
			case "month":
				monthly = sql.NullFloat64{Float64: m.Price, Valid: true}
			}
			notes := "{}"
			if len(m.Notes) > 0 {
				notes = string(m.Notes)
			}
			id := m.Provider + ":" + m.Service + ":" + m.Tier
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO managed_services (id, provider, service, tier, price_per_hour, price_per_month, notes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, m.Provider, m.Service, m.Tier, hourly, monthly, notes); err != nil {
				return fmt.Errorf("seed managed service %s: %w", id, err)
			}
		}
		for _, eq := range equivalences.Equivalences {
			ids := make([]string, 0, 3)
			if eq.AWS != "" {
				ids = append(ids, "aws:"+eq.AWS)
			}
			if eq.GCP != "" {
				ids = append(ids, "gcp:"+eq.GCP)
			}
			if eq.Azure != "" {
				ids = append(ids, "azure:"+eq.Azure)
			}
			for _, a := range ids {
				for _, b := range ids {
					if a == b {
						continue
					}
					if _, err := tx.ExecContext(ctx,
						`INSERT OR IGNORE INTO equivalences (instance_a_id, instance_b_id, confidence, match_type) VALUES (?, ?, ?, ?)`,
						a, b, eq.Confidence, eq.MatchType); err != nil {
						return fmt.Errorf("seed equivalence %s -> %s: %w", a, b, err)
					}
				}
			}
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO catalog_metadata (key, value, updated_at) VALUES ('seeded', ?, ?)`,
			seedSource(), now); err != nil {
			return fmt.Errorf("record seed metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("seeded catalog",
		zap.String("source", seedSource()),
		zap.Int("instance_types", len(instances.InstanceTypes)),
		zap.Int("managed_services", len(managed.ManagedServices)))
	return nil
}

// =============================================================================
// METADATA
// =============================================================================

// SetMetadata writes a metadata key with the current UTC timestamp
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO catalog_metadata (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errors.CatalogIO("set metadata", err)
	}
	return nil
}

// Metadata reads a metadata key. Missing keys return empty strings.
func (s *Store) Metadata(ctx context.Context, key string) (value, updatedAt string, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM catalog_metadata WHERE key = ?`, key)
	err = row.Scan(&value, &updatedAt)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", errors.CatalogIO("read metadata", err)
	}
	return value, updatedAt, nil
}

// Stats summarizes catalog row counts
type Stats struct {
	Providers           int `json:"providers"`
	Regions             int `json:"regions"`
	InstanceTypes       int `json:"instance_types"`
	Prices              int `json:"prices"`
	ManagedServices     int `json:"managed_services"`
	ServiceDefs         int `json:"service_definitions"`
	ServiceEquivalences int `json:"service_equivalences"`
	Equivalences        int `json:"equivalences"`
}

// Stats returns row counts for the main tables
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM providers`, &stats.Providers},
		{`SELECT COUNT(*) FROM regions`, &stats.Regions},
		{`SELECT COUNT(*) FROM instance_types`, &stats.InstanceTypes},
		{`SELECT COUNT(*) FROM pricing`, &stats.Prices},
		{`SELECT COUNT(*) FROM managed_services`, &stats.ManagedServices},
		{`SELECT COUNT(*) FROM service_definitions`, &stats.ServiceDefs},
		{`SELECT COUNT(*) FROM service_equivalences`, &stats.ServiceEquivalences},
		{`SELECT COUNT(*) FROM equivalences`, &stats.Equivalences},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, errors.CatalogIO("count rows", err)
		}
	}
	return stats, nil
}
