package api

import (
	"encoding/json"
	"net/http"

	"cloudwright/core/spec"
	"cloudwright/db/catalog"
	"cloudwright/db/refresh"
	"cloudwright/internal/errors"
)

// EstimateRequest drives the full pipeline: harden, price, validate,
// compare, score
type EstimateRequest struct {
	Spec        *spec.ArchSpec   `json:"spec"`
	Frameworks  []string         `json:"frameworks,omitempty"`
	Compare     []spec.Provider  `json:"compare,omitempty"`
	PricingTier spec.PricingTier `json:"pricing_tier,omitempty"`
	SkipHarden  bool             `json:"skip_harden,omitempty"`
}

// ValidateRequest checks a spec against compliance frameworks. An
// empty framework list falls back to the spec's own constraints.
type ValidateRequest struct {
	Spec       *spec.ArchSpec `json:"spec"`
	Frameworks []string       `json:"frameworks,omitempty"`
}

// ValidateResponse reports per-framework results
type ValidateResponse struct {
	Validations []spec.ValidationResult `json:"validations"`
	Passed      bool                    `json:"passed"`
}

// DiffRequest compares two spec revisions
type DiffRequest struct {
	Before *spec.ArchSpec `json:"before"`
	After  *spec.ArchSpec `json:"after"`
}

// CompareRequest reprices a spec on other providers
type CompareRequest struct {
	Spec    *spec.ArchSpec  `json:"spec"`
	Targets []spec.Provider `json:"targets"`
}

// CompareResponse carries one alternative per reachable target
type CompareResponse struct {
	Alternatives []spec.Alternative `json:"alternatives"`
}

// ScoreRequest grades a spec as written
type ScoreRequest struct {
	Spec *spec.ArchSpec `json:"spec"`
}

// HardenRequest applies baseline hardening defaults
type HardenRequest struct {
	Spec *spec.ArchSpec `json:"spec"`
}

// IngestRequest carries raw model output to extract a spec from
type IngestRequest struct {
	Raw string `json:"raw"`
}

// RefreshRequest triggers a live pricing refresh
type RefreshRequest struct {
	Providers []spec.Provider `json:"providers,omitempty"`
	Category  string          `json:"category,omitempty"`
	Region    string          `json:"region,omitempty"`
	DryRun    bool            `json:"dry_run,omitempty"`
}

// RefreshResponse wraps a refresh run summary
type RefreshResponse struct {
	Summary *refresh.Summary `json:"summary"`
	Errors  int              `json:"errors"`
}

// SearchResponse lists catalog instances matching a search
type SearchResponse struct {
	Instances []catalog.InstanceRow `json:"instances"`
	Count     int                   `json:"count"`
}

// ErrorResponse is the error envelope on non-2xx responses
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine code and human message
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	t := errors.GetType(err)
	writeJSON(w, statusForType(t), ErrorResponse{
		Error: ErrorBody{Code: string(t), Message: err.Error()},
	})
}

// statusForType maps the error taxonomy onto HTTP statuses. Caller
// mistakes are 4xx, vendor trouble is 502, everything else is 500.
func statusForType(t errors.Type) int {
	switch t {
	case errors.TypeInvalidSpec, errors.TypeParsing, errors.TypeConfig,
		errors.TypeUnknownService, errors.TypeFormula:
		return http.StatusBadRequest
	case errors.TypeNotFound:
		return http.StatusNotFound
	case errors.TypePricingUnavailable:
		return http.StatusUnprocessableEntity
	case errors.TypeAdapterAuth, errors.TypeAdapterHTTP:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON request body
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Parsing("invalid request body", err)
	}
	return nil
}

// readSpec normalizes and validates a decoded spec
func readSpec(s *spec.ArchSpec) (*spec.ArchSpec, error) {
	if s == nil {
		return nil, errors.InvalidSpec("missing spec")
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
