// Package errors provides error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeInvalidSpec indicates an architecture spec that fails invariants
	TypeInvalidSpec Type = "INVALID_SPEC"

	// TypeUnknownService indicates a service key absent from the registry
	TypeUnknownService Type = "UNKNOWN_SERVICE"

	// TypePricingUnavailable indicates no catalog or formula price exists
	TypePricingUnavailable Type = "PRICING_UNAVAILABLE"

	// TypeAdapterAuth indicates a pricing adapter auth failure
	TypeAdapterAuth Type = "ADAPTER_AUTH_ERROR"

	// TypeAdapterHTTP indicates a pricing adapter transport failure
	TypeAdapterHTTP Type = "ADAPTER_HTTP_ERROR"

	// TypeCatalogIO indicates a catalog store open/seed/query failure
	TypeCatalogIO Type = "CATALOG_IO_ERROR"

	// TypeFormula indicates a pricing formula that failed to resolve
	TypeFormula Type = "FORMULA_ERROR"

	// TypeParsing indicates a parsing error
	TypeParsing Type = "PARSING_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeNotFound indicates a resource not found error
	TypeNotFound Type = "NOT_FOUND"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsType checks if an error (or any error it wraps) is of a specific type
func IsType(err error, t Type) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// GetType returns the type of an error, or TypeInternal for foreign errors
func GetType(err error) Type {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// InvalidSpec creates an invalid spec error
func InvalidSpec(message string) *Error {
	return New(TypeInvalidSpec, message)
}

// InvalidSpecf creates a formatted invalid spec error
func InvalidSpecf(format string, args ...interface{}) *Error {
	return Newf(TypeInvalidSpec, format, args...)
}

// UnknownService creates an unknown service error
func UnknownService(serviceKey string) *Error {
	return Newf(TypeUnknownService, "unknown service: %s", serviceKey).
		WithContext("service", serviceKey)
}

// PricingUnavailable creates a pricing unavailable error
func PricingUnavailable(service, provider string) *Error {
	return Newf(TypePricingUnavailable, "no pricing for %s on %s", service, provider).
		WithContext("service", service).
		WithContext("provider", provider)
}

// AdapterAuth creates an adapter auth error
func AdapterAuth(provider string, status int) *Error {
	return Newf(TypeAdapterAuth, "%s pricing API rejected credentials (HTTP %d)", provider, status).
		WithContext("provider", provider).
		WithContext("status", status)
}

// AdapterHTTP creates an adapter transport error
func AdapterHTTP(provider, url string, cause error) *Error {
	return Wrapf(TypeAdapterHTTP, cause, "%s pricing request failed: %s", provider, url).
		WithContext("provider", provider).
		WithContext("url", url)
}

// CatalogIO creates a catalog store error
func CatalogIO(op string, cause error) *Error {
	return Wrapf(TypeCatalogIO, cause, "catalog %s failed", op).
		WithContext("op", op)
}

// Formula creates a formula resolution error
func Formula(name, service string) *Error {
	return Newf(TypeFormula, "formula %s returned no price for %s", name, service).
		WithContext("formula", name).
		WithContext("service", service)
}

// Parsing creates a parsing error
func Parsing(message string, cause error) *Error {
	return Wrap(TypeParsing, message, cause)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// NotFound creates a not found error
func NotFound(resourceType, identifier string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", resourceType, identifier)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
