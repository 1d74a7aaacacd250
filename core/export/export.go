// Package export renders architecture specs into external formats:
// Terraform HCL, a CloudFormation JSON template, and Mermaid diagram
// text. Renderers are mechanical: they emit what the spec says and
// mark what the format cannot express, without validating or
// enriching the spec.
package export

import (
	"cloudwright/core/registry"
	"cloudwright/core/spec"
	"cloudwright/internal/errors"
)

// Format identifies an export output format
type Format string

const (
	// FormatTerraform is HCL with one resource per component
	FormatTerraform Format = "terraform"

	// FormatCloudFormation is an AWS CloudFormation JSON template
	FormatCloudFormation Format = "cloudformation"

	// FormatMermaid is a Mermaid graph of components and connections
	FormatMermaid Format = "mermaid"
)

// KnownFormats lists the supported formats in canonical order
func KnownFormats() []Format {
	return []Format{FormatTerraform, FormatCloudFormation, FormatMermaid}
}

// ValidFormat reports whether f is a supported export format
func ValidFormat(f Format) bool {
	switch f {
	case FormatTerraform, FormatCloudFormation, FormatMermaid:
		return true
	}
	return false
}

// Renderer turns specs into external representations. Terraform output
// resolves resource types through the service registry.
type Renderer struct {
	reg *registry.Registry
}

// New creates a renderer over a service registry
func New(reg *registry.Registry) *Renderer {
	return &Renderer{reg: reg}
}

// Render produces the named format
func (r *Renderer) Render(s *spec.ArchSpec, format Format) (string, error) {
	switch format {
	case FormatTerraform:
		return r.Terraform(s)
	case FormatCloudFormation:
		return r.CloudFormation(s)
	case FormatMermaid:
		return Mermaid(s), nil
	default:
		return "", errors.Newf(errors.TypeConfig, "unknown export format %q", format)
	}
}
