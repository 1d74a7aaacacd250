package export

import (
	"fmt"
	"sort"
	"strings"

	"cloudwright/core/spec"
)

// Mermaid renders the spec as a top-to-bottom Mermaid graph: boundary
// subgraphs, tier-ordered nodes, and labeled connection edges. Every
// component renders regardless of service key, so this needs no
// registry and cannot fail.
func Mermaid(s *spec.ArchSpec) string {
	var b strings.Builder
	b.WriteString("graph TB\n")

	inBoundary := make(map[string]bool)
	for _, bd := range s.Boundaries {
		for _, id := range bd.ComponentIDs {
			inBoundary[id] = true
		}
	}

	children := make(map[string][]*spec.Boundary)
	var roots []*spec.Boundary
	for _, bd := range s.Boundaries {
		if bd.Parent == "" {
			roots = append(roots, bd)
		} else {
			children[bd.Parent] = append(children[bd.Parent], bd)
		}
	}
	for _, bd := range roots {
		writeBoundary(&b, s, bd, children, 1)
	}

	for _, c := range tierOrdered(s.Components) {
		if !inBoundary[c.ID] {
			writeNode(&b, c, 1)
		}
	}

	for _, conn := range s.Connections {
		label := conn.Label
		if label == "" {
			label = conn.Protocol
		}
		if label != "" {
			fmt.Fprintf(&b, "  %s -->|%s| %s\n", conn.Source, mermaidQuote(label), conn.Target)
		} else {
			fmt.Fprintf(&b, "  %s --> %s\n", conn.Source, conn.Target)
		}
	}
	return b.String()
}

func writeBoundary(b *strings.Builder, s *spec.ArchSpec, bd *spec.Boundary, children map[string][]*spec.Boundary, depth int) {
	indent := strings.Repeat("  ", depth)
	label := bd.Label
	if label == "" {
		label = bd.ID
	}
	fmt.Fprintf(b, "%ssubgraph %s[%s]\n", indent, bd.ID, mermaidQuote(label))
	for _, child := range children[bd.ID] {
		writeBoundary(b, s, child, children, depth+1)
	}
	members := make([]*spec.Component, 0, len(bd.ComponentIDs))
	for _, id := range bd.ComponentIDs {
		if c := s.ComponentByID(id); c != nil {
			members = append(members, c)
		}
	}
	for _, c := range tierOrdered(members) {
		writeNode(b, c, depth+1)
	}
	fmt.Fprintf(b, "%send\n", indent)
}

func writeNode(b *strings.Builder, c *spec.Component, depth int) {
	label := c.Label
	if label == "" {
		label = c.ID
	}
	fmt.Fprintf(b, "%s%s[%s]\n", strings.Repeat("  ", depth), c.ID, mermaidQuote(label+" ("+c.Service+")"))
}

// tierOrdered sorts components by tier, stable on spec order, so edge
// layers render above data layers
func tierOrdered(components []*spec.Component) []*spec.Component {
	out := make([]*spec.Component, len(components))
	copy(out, components)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out
}

// mermaidQuote wraps a label, escaping quotes with the mermaid entity
func mermaidQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "#quot;") + `"`
}
