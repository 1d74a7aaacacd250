package spec

// Clone returns a deep copy of the spec. Subsystems mutate copies only.
func (s *ArchSpec) Clone() *ArchSpec {
	if s == nil {
		return nil
	}
	out := &ArchSpec{
		Name:     s.Name,
		Version:  s.Version,
		Provider: s.Provider,
		Region:   s.Region,
		Metadata: s.Metadata.Clone(),
	}
	if s.Constraints != nil {
		out.Constraints = s.Constraints.Clone()
	}
	for _, c := range s.Components {
		out.Components = append(out.Components, c.Clone())
	}
	for _, conn := range s.Connections {
		copied := *conn
		out.Connections = append(out.Connections, &copied)
	}
	for _, b := range s.Boundaries {
		out.Boundaries = append(out.Boundaries, b.Clone())
	}
	if s.CostEstimate != nil {
		out.CostEstimate = s.CostEstimate.Clone()
	}
	return out
}

// Clone returns a deep copy of the component
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	out := *c
	out.Config = c.Config.Clone()
	return &out
}

// Clone returns a deep copy of the boundary
func (b *Boundary) Clone() *Boundary {
	if b == nil {
		return nil
	}
	out := *b
	if b.ComponentIDs != nil {
		out.ComponentIDs = append([]string(nil), b.ComponentIDs...)
	}
	out.Config = b.Config.Clone()
	return &out
}

// Clone returns a deep copy of the constraints
func (c *Constraints) Clone() *Constraints {
	if c == nil {
		return nil
	}
	out := *c
	if c.Compliance != nil {
		out.Compliance = append([]string(nil), c.Compliance...)
	}
	if c.Regions != nil {
		out.Regions = append([]string(nil), c.Regions...)
	}
	if c.DataResidency != nil {
		out.DataResidency = append([]string(nil), c.DataResidency...)
	}
	return &out
}

// Clone returns a deep copy of the estimate
func (e *CostEstimate) Clone() *CostEstimate {
	if e == nil {
		return nil
	}
	out := *e
	if e.Breakdown != nil {
		out.Breakdown = append([]ComponentCost(nil), e.Breakdown...)
	}
	return &out
}
