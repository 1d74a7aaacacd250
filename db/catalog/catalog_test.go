package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloudwright/core/registry"
	"cloudwright/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsBundledData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Providers != 3 {
		t.Errorf("providers = %d, want 3", stats.Providers)
	}
	if stats.InstanceTypes == 0 || stats.Prices == 0 || stats.ManagedServices == 0 {
		t.Errorf("seed left tables empty: %+v", stats)
	}
	if stats.Equivalences == 0 {
		t.Errorf("equivalences not seeded: %+v", stats)
	}
	s.Close()

	// Reopening must not duplicate the seed.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	stats2, err := s2.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats after reopen failed: %v", err)
	}
	if *stats2 != *stats {
		t.Errorf("reopen changed row counts: %+v -> %+v", stats, stats2)
	}
}

func TestSeedDirOverride(t *testing.T) {
	seedDir := t.TempDir()
	files := map[string]string{
		"instances.json": `{
			"regions": [{"provider": "aws", "code": "us-east-1", "normalized": "us_east"}],
			"instance_types": [{"provider": "aws", "region": "us-east-1", "instance_type": "lab.small", "family": "general", "vcpus": 2, "memory_gb": 4, "price_per_hour": 0.05}]
		}`,
		"managed_services.json": `{"managed_services": [{"provider": "aws", "service": "rds", "tier": "db.lab", "unit": "hour", "price": 0.1, "notes": {"storage_per_gb": 0.115}}]}`,
		"equivalences.json":     `{"equivalences": []}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(seedDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write seed %s: %v", name, err)
		}
	}

	old := config.Get()
	override := *old
	override.Catalog.SeedDir = seedDir
	config.Set(&override)
	t.Cleanup(func() { config.Set(old) })

	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open with seed override failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	row, err := s.FindInstance(ctx, "lab.small")
	if err != nil {
		t.Fatalf("FindInstance failed: %v", err)
	}
	if row == nil {
		t.Fatal("override seed instance not found")
	}
	row, err = s.FindInstance(ctx, "m5.large")
	if err != nil {
		t.Fatalf("FindInstance failed: %v", err)
	}
	if row != nil {
		t.Errorf("bundled instance seeded despite override: %+v", row)
	}
}

func TestSearchFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows, err := s.Search(ctx, SearchQuery{Provider: "aws", MinVCPUs: 4})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("no rows for aws vcpus>=4")
	}
	for _, row := range rows {
		if row.Provider != "aws" {
			t.Errorf("row %s has provider %s, want aws", row.ID, row.Provider)
		}
		if row.VCPUs < 4 {
			t.Errorf("row %s has %d vcpus, want >= 4", row.ID, row.VCPUs)
		}
	}

	// Sorted by price ascending.
	var last float64
	for i, row := range rows {
		if row.PricePerHour == nil {
			continue
		}
		if i > 0 && *row.PricePerHour < last {
			t.Errorf("rows not sorted by price: %f after %f", *row.PricePerHour, last)
		}
		last = *row.PricePerHour
	}

	rows, err = s.Search(ctx, SearchQuery{Query: "m5", MaxPricePerHour: 0.20})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, row := range rows {
		if row.PricePerHour == nil || *row.PricePerHour > 0.20 {
			t.Errorf("row %s violates max price filter: %+v", row.ID, row.PricePerHour)
		}
	}

	rows, err = s.Search(ctx, SearchQuery{MinMemoryGB: 16, Limit: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(rows) > 5 {
		t.Errorf("limit ignored: got %d rows", len(rows))
	}
	for _, row := range rows {
		if row.MemoryGB < 16 {
			t.Errorf("row %s has %.1f GB, want >= 16", row.ID, row.MemoryGB)
		}
	}
}

func TestFindInstance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	row, err := s.FindInstance(ctx, "m5.large")
	if err != nil {
		t.Fatalf("FindInstance failed: %v", err)
	}
	if row == nil {
		t.Fatal("m5.large not found")
	}
	if row.Provider != "aws" || row.VCPUs != 2 || row.MemoryGB != 8 {
		t.Errorf("m5.large = %+v, want aws 2 vcpu 8 GB", row)
	}
	if row.PricePerHour == nil {
		t.Fatal("m5.large has no price")
	}

	row, err = s.FindInstance(ctx, "gcp:n2-standard-2")
	if err != nil {
		t.Fatalf("FindInstance failed: %v", err)
	}
	if row == nil || row.Provider != "gcp" {
		t.Errorf("gcp:n2-standard-2 = %+v", row)
	}

	// Bare azure-only name resolves through the provider prefix order.
	row, err = s.FindInstance(ctx, "D2s_v3")
	if err != nil {
		t.Fatalf("FindInstance failed: %v", err)
	}
	if row == nil || row.Provider != "azure" {
		t.Errorf("D2s_v3 = %+v, want azure row", row)
	}

	row, err = s.FindInstance(ctx, "z9.mega")
	if err != nil {
		t.Fatalf("FindInstance failed: %v", err)
	}
	if row != nil {
		t.Errorf("unknown instance returned %+v, want nil", row)
	}
}

func TestCompare(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows, err := s.Compare(ctx, "m5.large", "n2-standard-2", "D2s_v3", "nonexistent")
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Compare returned %d rows, want 3", len(rows))
	}
	want := []string{"aws:m5.large", "gcp:n2-standard-2", "azure:D2s_v3"}
	for i, id := range want {
		if rows[i].ID != id {
			t.Errorf("rows[%d].ID = %s, want %s", i, rows[i].ID, id)
		}
	}
}

func TestEquivalentInstance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		from string
		to   string
		want string
	}{
		{"m5.large", "aws", "gcp", "n2-standard-2"},
		{"m5.large", "aws", "azure", "D2s_v3"},
		{"n2-standard-2", "gcp", "aws", "m5.large"},
		{"D4s_v3", "azure", "gcp", "n2-standard-4"},
		{"db.t3.medium", "aws", "gcp", "db-standard-1"},
		{"z9.mega", "aws", "gcp", ""},
	}
	for _, tt := range tests {
		got, err := s.EquivalentInstance(ctx, tt.name, tt.from, tt.to)
		if err != nil {
			t.Fatalf("EquivalentInstance(%s) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("EquivalentInstance(%s, %s, %s) = %q, want %q", tt.name, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSyncFromRegistryIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry load failed: %v", err)
	}
	if err := s.SyncFromRegistry(ctx, reg); err != nil {
		t.Fatalf("SyncFromRegistry failed: %v", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ServiceDefs != reg.Len() {
		t.Errorf("service_definitions = %d, want %d", stats.ServiceDefs, reg.Len())
	}
	if stats.ServiceEquivalences == 0 {
		t.Error("service equivalences not mirrored")
	}

	if err := s.SyncFromRegistry(ctx, reg); err != nil {
		t.Fatalf("second SyncFromRegistry failed: %v", err)
	}
	stats2, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats2.ServiceDefs != stats.ServiceDefs {
		t.Errorf("resync changed definition count: %d -> %d", stats.ServiceDefs, stats2.ServiceDefs)
	}
}

func TestImportInstancePrices(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	imports := []InstanceImport{
		{Name: "m7g.large", Family: "general", VCPUs: 2, MemoryGB: 8, PricePerHour: 0.0816},
	}
	if err := s.ImportInstancePrices(ctx, "aws", "us-west-2", imports); err != nil {
		t.Fatalf("ImportInstancePrices failed: %v", err)
	}
	row, err := s.FindInstance(ctx, "m7g.large")
	if err != nil {
		t.Fatalf("FindInstance failed: %v", err)
	}
	if row == nil {
		t.Fatal("imported instance not found")
	}
	if row.PricePerHour == nil || *row.PricePerHour != 0.0816 {
		t.Errorf("imported price = %+v, want 0.0816", row.PricePerHour)
	}

	// Re-import with a new price replaces the old row.
	imports[0].PricePerHour = 0.09
	if err := s.ImportInstancePrices(ctx, "aws", "us-west-2", imports); err != nil {
		t.Fatalf("re-import failed: %v", err)
	}
	price, found, err := s.instancePrice(ctx, "aws", "m7g.large", "us-west-2")
	if err != nil || !found {
		t.Fatalf("instancePrice failed: %v found=%v", err, found)
	}
	if price != 0.09 {
		t.Errorf("updated price = %f, want 0.09", price)
	}
}

func TestImportManagedServices(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hourly := 0.12
	imports := []ManagedImport{
		{Service: "rds", Tier: "db.m6g.large", PricePerHour: &hourly, Notes: map[string]interface{}{"storage_per_gb": 0.115}},
	}
	if err := s.ImportManagedServices(ctx, "aws", imports); err != nil {
		t.Fatalf("ImportManagedServices failed: %v", err)
	}
	row, err := s.managedByTier(ctx, "aws", "rds", "db.m6g.large")
	if err != nil {
		t.Fatalf("managedByTier failed: %v", err)
	}
	if row == nil {
		t.Fatal("imported managed service not found")
	}
	if !row.PricePerHour.Valid || row.PricePerHour.Float64 != 0.12 {
		t.Errorf("price_per_hour = %+v, want 0.12", row.PricePerHour)
	}
	if !row.PricePerMonth.Valid || row.PricePerMonth.Float64 != 0.12*730 {
		t.Errorf("derived price_per_month = %+v, want %f", row.PricePerMonth, 0.12*730)
	}
}

func TestMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetMetadata(ctx, "refresh:aws:compute", "ok"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	value, updatedAt, err := s.Metadata(ctx, "refresh:aws:compute")
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if value != "ok" || updatedAt == "" {
		t.Errorf("Metadata = (%q, %q), want (ok, timestamp)", value, updatedAt)
	}

	value, _, err = s.Metadata(ctx, "missing")
	if err != nil {
		t.Fatalf("Metadata on missing key failed: %v", err)
	}
	if value != "" {
		t.Errorf("missing key value = %q, want empty", value)
	}
}
