package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "cloudwright/clouds/gcp"
	"cloudwright/core/engine"
	"cloudwright/core/spec"
	"cloudwright/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "catalog.db")
	eng, err := engine.Open(cfg)
	if err != nil {
		t.Fatalf("engine.Open() error: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return NewServer(eng, "test")
}

func testSpec() *spec.ArchSpec {
	return &spec.ArchSpec{
		Name:     "orders",
		Version:  1,
		Provider: spec.ProviderAWS,
		Region:   "us-east-1",
		Components: []*spec.Component{
			{
				ID: "web", Service: "ec2", Tier: spec.TierCompute,
				Config: spec.Config{
					"instance_type": spec.String("m5.large"),
					"count":         spec.Int(2),
				},
			},
			{
				ID: "db", Service: "rds", Tier: spec.TierData,
				Config: spec.Config{
					"instance_class": spec.String("db.r5.large"),
					"engine":         spec.String("postgres"),
				},
			},
		},
		Connections: []*spec.Connection{
			{Source: "web", Target: "db", EstimatedMonthlyGB: 50},
		},
	}
}

// do posts a JSON body and decodes the JSON response into out
func do(t *testing.T, srv *Server, method, path string, body, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestEstimateEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var result engine.Result
	rec := do(t, srv, http.MethodPost, "/api/v1/estimate", EstimateRequest{Spec: testSpec()}, &result)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if result.Spec == nil || result.Spec.CostEstimate == nil {
		t.Fatal("response has no cost estimate")
	}
	if result.Spec.CostEstimate.MonthlyTotal <= 0 {
		t.Errorf("MonthlyTotal = %v, want > 0", result.Spec.CostEstimate.MonthlyTotal)
	}
	if len(result.Spec.CostEstimate.Breakdown) != 2 {
		t.Errorf("len(Breakdown) = %d, want 2", len(result.Spec.CostEstimate.Breakdown))
	}
	if result.Scorecard == nil || result.Scorecard.Grade == "" {
		t.Error("response has no scorecard grade")
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestEstimateRejectsInvalidSpec(t *testing.T) {
	srv := newTestServer(t)

	s := testSpec()
	s.Components[1].ID = "web" // duplicate
	rec := do(t, srv, http.MethodPost, "/api/v1/estimate", EstimateRequest{Spec: s}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "INVALID_SPEC" {
		t.Errorf("error code = %q, want INVALID_SPEC", e.Code)
	}
}

func TestEstimateRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "PARSING_ERROR" {
		t.Errorf("error code = %q, want PARSING_ERROR", e.Code)
	}
}

func TestEstimateRejectsMissingSpec(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/estimate", EstimateRequest{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var resp ValidateResponse
	rec := do(t, srv, http.MethodPost, "/api/v1/validate", ValidateRequest{
		Spec:       testSpec(),
		Frameworks: []string{"hipaa"},
	}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(resp.Validations) != 1 {
		t.Fatalf("len(Validations) = %d, want 1", len(resp.Validations))
	}
	if resp.Validations[0].Framework != "HIPAA" {
		t.Errorf("Framework = %q, want HIPAA", resp.Validations[0].Framework)
	}
	// raw spec has no encryption config, so hipaa cannot pass
	if resp.Passed {
		t.Error("Passed = true for an unhardened spec")
	}
}

func TestValidateFallsBackToConstraints(t *testing.T) {
	srv := newTestServer(t)

	s := testSpec()
	s.Constraints = &spec.Constraints{Compliance: []string{"soc2"}}
	var resp ValidateResponse
	rec := do(t, srv, http.MethodPost, "/api/v1/validate", ValidateRequest{Spec: s}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(resp.Validations) != 1 || resp.Validations[0].Framework != "SOC 2" {
		t.Errorf("validations = %+v, want SOC 2 from constraints", resp.Validations)
	}
}

func TestValidateRequiresFrameworks(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/validate", ValidateRequest{Spec: testSpec()}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDiffEndpoint(t *testing.T) {
	srv := newTestServer(t)

	before := testSpec()
	after := testSpec()
	after.Components = append(after.Components, &spec.Component{
		ID: "cache", Service: "elasticache", Tier: spec.TierData,
	})

	var result spec.DiffResult
	rec := do(t, srv, http.MethodPost, "/api/v1/diff", DiffRequest{Before: before, After: after}, &result)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(result.Added) != 1 || result.Added[0].ID != "cache" {
		t.Errorf("Added = %+v, want [cache]", result.Added)
	}
	if len(result.Removed) != 0 {
		t.Errorf("Removed = %v, want none", result.Removed)
	}
}

func TestCompareEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var resp CompareResponse
	rec := do(t, srv, http.MethodPost, "/api/v1/compare", CompareRequest{
		Spec:    testSpec(),
		Targets: []spec.Provider{spec.ProviderGCP},
	}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(resp.Alternatives) != 1 {
		t.Fatalf("len(Alternatives) = %d, want 1", len(resp.Alternatives))
	}
	alt := resp.Alternatives[0]
	if alt.Provider != spec.ProviderGCP {
		t.Errorf("Provider = %q, want gcp", alt.Provider)
	}
	if alt.MonthlyTotal <= 0 {
		t.Errorf("MonthlyTotal = %v, want > 0", alt.MonthlyTotal)
	}
}

func TestCompareRejectsBadTargets(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/compare", CompareRequest{Spec: testSpec()}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty targets: status = %d, want 400", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/compare", CompareRequest{
		Spec:    testSpec(),
		Targets: []spec.Provider{"oraclecloud"},
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown target: status = %d, want 400", rec.Code)
	}
}

func TestScoreEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var card struct {
		Total float64 `json:"total"`
		Grade string  `json:"grade"`
	}
	rec := do(t, srv, http.MethodPost, "/api/v1/score", ScoreRequest{Spec: testSpec()}, &card)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if card.Grade == "" {
		t.Error("scorecard has no grade")
	}
	if card.Total < 0 || card.Total > 100 {
		t.Errorf("Total = %v, want within [0,100]", card.Total)
	}
}

func TestHardenEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var hardened spec.ArchSpec
	rec := do(t, srv, http.MethodPost, "/api/v1/harden", HardenRequest{Spec: testSpec()}, &hardened)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	for _, c := range hardened.Components {
		if c.ID == "db" && !c.Config.FlagOr("encryption", false) {
			t.Error("hardened db has no encryption flag")
		}
	}
}

func TestIngestEndpoint(t *testing.T) {
	srv := newTestServer(t)

	raw := "Here is the architecture:\n```json\n" +
		`{"name":"orders","components":[{"id":"web","service":"ec2"}]}` +
		"\n```\nLet me know if you need changes."
	var s spec.ArchSpec
	rec := do(t, srv, http.MethodPost, "/api/v1/ingest", IngestRequest{Raw: raw}, &s)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if s.Name != "orders" || len(s.Components) != 1 {
		t.Errorf("spec = %+v, want orders with one component", s)
	}
	if s.Provider != spec.DefaultProvider {
		t.Errorf("Provider = %q, want default applied", s.Provider)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/ingest", IngestRequest{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty raw: status = %d, want 400", rec.Code)
	}
}

func TestCatalogSearchEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var resp SearchResponse
	rec := do(t, srv, http.MethodGet, "/api/v1/catalog/search?q=m5&provider=aws", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Count == 0 {
		t.Fatal("search found nothing for q=m5")
	}
	for _, row := range resp.Instances {
		if row.Provider != "aws" {
			t.Errorf("row %s has provider %q, want aws", row.Name, row.Provider)
		}
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/catalog/search?vcpus=two", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad vcpus: status = %d, want 400", rec.Code)
	}
}

func TestCatalogInstanceEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var row struct {
		Name     string `json:"name"`
		Provider string `json:"provider"`
		VCPUs    int    `json:"vcpus"`
	}
	rec := do(t, srv, http.MethodGet, "/api/v1/catalog/instances/m5.large", nil, &row)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if row.Name != "m5.large" || row.Provider != "aws" {
		t.Errorf("row = %+v, want aws m5.large", row)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/catalog/instances/z99.mega", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown instance: status = %d, want 404", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", e.Code)
	}
}

func TestCatalogRefreshEndpoint(t *testing.T) {
	t.Setenv("GCP_API_KEY", "")
	srv := newTestServer(t)

	var resp RefreshResponse
	rec := do(t, srv, http.MethodPost, "/api/v1/catalog/refresh", RefreshRequest{
		Providers: []spec.Provider{spec.ProviderGCP},
		DryRun:    true,
	}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Summary == nil {
		t.Fatal("no summary in response")
	}
	if resp.Errors != 0 {
		t.Errorf("Errors = %d, want 0 without an API key", resp.Errors)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/catalog/refresh", RefreshRequest{
		Providers: []spec.Provider{"digitalocean"},
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown provider: status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	rec := do(t, srv, http.MethodGet, "/healthz", nil, &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/estimate", nil, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRequestIDEcho(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
}
