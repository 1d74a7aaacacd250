package api

import (
	"net/http"
	"strconv"

	"cloudwright/core/engine"
	"cloudwright/core/ingest"
	"cloudwright/core/spec"
	"cloudwright/db/catalog"
	"cloudwright/db/refresh"
	"cloudwright/internal/errors"
)

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sp, err := readSpec(req.Spec)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.engine.Process(r.Context(), sp, engine.Options{
		Frameworks:     req.Frameworks,
		CompareTargets: req.Compare,
		PricingTier:    req.PricingTier,
		SkipHarden:     req.SkipHarden,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sp, err := readSpec(req.Spec)
	if err != nil {
		writeError(w, err)
		return
	}
	frameworks := req.Frameworks
	if len(frameworks) == 0 && sp.Constraints != nil {
		frameworks = sp.Constraints.Compliance
	}
	if len(frameworks) == 0 {
		writeError(w, errors.InvalidSpec("no compliance frameworks requested"))
		return
	}
	results := s.engine.Validate(sp, frameworks)
	resp := ValidateResponse{Validations: results, Passed: true}
	for _, v := range results {
		if !v.Passed {
			resp.Passed = false
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	before, err := readSpec(req.Before)
	if err != nil {
		writeError(w, err)
		return
	}
	after, err := readSpec(req.After)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Diff(before, after))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sp, err := readSpec(req.Spec)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(req.Targets) == 0 {
		writeError(w, errors.InvalidSpec("no target providers requested"))
		return
	}
	for _, target := range req.Targets {
		if !spec.ValidProvider(target) {
			writeError(w, errors.Newf(errors.TypeConfig, "unknown provider %q", target))
			return
		}
	}
	alts, err := s.engine.CompareProviders(r.Context(), sp, req.Targets)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompareResponse{Alternatives: alts})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sp, err := readSpec(req.Spec)
	if err != nil {
		writeError(w, err)
		return
	}
	card, err := s.engine.Score(sp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleHarden(w http.ResponseWriter, r *http.Request) {
	var req HardenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sp, err := readSpec(req.Spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Harden(sp))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Raw == "" {
		writeError(w, errors.InvalidSpec("empty raw payload"))
		return
	}
	sp, err := ingest.ParseArchSpec(req.Raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	q, err := searchQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.engine.Catalog().Search(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Instances: rows, Count: len(rows)})
}

// searchQuery reads search predicates from the URL. Absent parameters
// leave their predicate disabled.
func searchQuery(r *http.Request) (catalog.SearchQuery, error) {
	values := r.URL.Query()
	q := catalog.SearchQuery{
		Query:    values.Get("q"),
		Provider: values.Get("provider"),
	}
	var err error
	if q.MinVCPUs, err = intParam(values.Get("vcpus")); err != nil {
		return q, errors.Newf(errors.TypeConfig, "invalid vcpus parameter %q", values.Get("vcpus"))
	}
	if q.Limit, err = intParam(values.Get("limit")); err != nil {
		return q, errors.Newf(errors.TypeConfig, "invalid limit parameter %q", values.Get("limit"))
	}
	if q.MinMemoryGB, err = floatParam(values.Get("memory_gb")); err != nil {
		return q, errors.Newf(errors.TypeConfig, "invalid memory_gb parameter %q", values.Get("memory_gb"))
	}
	if q.MaxPricePerHour, err = floatParam(values.Get("max_price_per_hour")); err != nil {
		return q, errors.Newf(errors.TypeConfig, "invalid max_price_per_hour parameter %q", values.Get("max_price_per_hour"))
	}
	return q, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func floatParam(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func (s *Server) handleCatalogInstance(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	row, err := s.engine.Catalog().FindInstance(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if row == nil {
		writeError(w, errors.NotFound("instance type", name))
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for _, p := range req.Providers {
		if !spec.ValidProvider(p) {
			writeError(w, errors.Newf(errors.TypeConfig, "unknown provider %q", p))
			return
		}
	}
	summary := s.engine.Refresh(r.Context(), refresh.Options{
		Providers: req.Providers,
		Category:  req.Category,
		Region:    req.Region,
		DryRun:    req.DryRun,
	})
	writeJSON(w, http.StatusOK, RefreshResponse{
		Summary: summary,
		Errors:  summary.TotalErrors(),
	})
}
