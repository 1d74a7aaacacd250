// Package diff computes the structural delta between two versions of an
// architecture spec: components added, removed, and changed field by
// field, connection changes, and the cost movement.
package diff

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cloudwright/core/spec"
)

// Diff compares two spec versions. Components match by id; shared
// components are compared over a fixed field list with config keys
// reported as "config.<key>". Output ordering is deterministic: added
// and removed sort by component id, changed by (component id, field).
func Diff(before, after *spec.ArchSpec) *spec.DiffResult {
	result := &spec.DiffResult{}

	beforeByID := indexComponents(before.Components)
	afterByID := indexComponents(after.Components)

	for id, c := range afterByID {
		if _, ok := beforeByID[id]; !ok {
			result.Added = append(result.Added, c)
		}
	}
	for id, c := range beforeByID {
		if _, ok := afterByID[id]; !ok {
			result.Removed = append(result.Removed, c)
		}
	}
	for id, b := range beforeByID {
		if a, ok := afterByID[id]; ok {
			result.Changed = append(result.Changed, compareComponents(b, a)...)
		}
	}

	sort.Slice(result.Added, func(i, j int) bool { return result.Added[i].ID < result.Added[j].ID })
	sort.Slice(result.Removed, func(i, j int) bool { return result.Removed[i].ID < result.Removed[j].ID })
	sort.Slice(result.Changed, func(i, j int) bool {
		if result.Changed[i].ComponentID != result.Changed[j].ComponentID {
			return result.Changed[i].ComponentID < result.Changed[j].ComponentID
		}
		return result.Changed[i].Field < result.Changed[j].Field
	})

	result.ConnectionChanges = compareConnections(before.Connections, after.Connections)
	result.CostDelta = costDelta(before.CostEstimate, after.CostEstimate)
	result.Summary = fmt.Sprintf("Added %d, Removed %d, Changed %d components",
		len(result.Added), len(result.Removed), changedComponents(result.Changed))
	return result
}

func indexComponents(components []*spec.Component) map[string]*spec.Component {
	byID := make(map[string]*spec.Component, len(components))
	for _, c := range components {
		byID[c.ID] = c
	}
	return byID
}

// compareComponents reports every differing field of one component.
func compareComponents(before, after *spec.Component) []spec.FieldChange {
	var changes []spec.FieldChange
	changed := func(field string, oldValue, newValue interface{}) {
		changes = append(changes, spec.FieldChange{
			ComponentID: after.ID,
			Field:       field,
			OldValue:    oldValue,
			NewValue:    newValue,
		})
	}

	if before.Service != after.Service {
		changed("service", before.Service, after.Service)
	}
	if before.Provider != after.Provider {
		changed("provider", string(before.Provider), string(after.Provider))
	}
	if before.Label != after.Label {
		changed("label", before.Label, after.Label)
	}
	if before.Description != after.Description {
		changed("description", before.Description, after.Description)
	}
	if before.Tier != after.Tier {
		changed("tier", before.Tier, after.Tier)
	}

	for _, key := range configKeys(before.Config, after.Config) {
		oldValue, inBefore := before.Config.Get(key)
		newValue, inAfter := after.Config.Get(key)
		switch {
		case inBefore && !inAfter:
			changed("config."+key, oldValue.Interface(), nil)
		case !inBefore && inAfter:
			changed("config."+key, nil, newValue.Interface())
		case !oldValue.Equal(newValue):
			changed("config."+key, oldValue.Interface(), newValue.Interface())
		}
	}
	return changes
}

// configKeys returns the union of both configs' keys, sorted.
func configKeys(before, after spec.Config) []string {
	seen := make(map[string]bool, len(before)+len(after))
	for key := range before {
		seen[key] = true
	}
	for key := range after {
		seen[key] = true
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type connKey struct {
	source, target string
}

// compareConnections matches connections by (source, target) and
// reports additions, removals, and changes to label, protocol, or port.
func compareConnections(before, after []*spec.Connection) []spec.ConnectionChange {
	beforeByKey := indexConnections(before)
	afterByKey := indexConnections(after)

	var changes []spec.ConnectionChange
	for key, a := range afterByKey {
		b, ok := beforeByKey[key]
		if !ok {
			changes = append(changes, spec.ConnectionChange{
				Kind: spec.ChangeAdded, Source: a.Source, Target: a.Target,
			})
			continue
		}
		changes = append(changes, compareConnection(b, a)...)
	}
	for key, b := range beforeByKey {
		if _, ok := afterByKey[key]; !ok {
			changes = append(changes, spec.ConnectionChange{
				Kind: spec.ChangeRemoved, Source: b.Source, Target: b.Target,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Source != changes[j].Source {
			return changes[i].Source < changes[j].Source
		}
		if changes[i].Target != changes[j].Target {
			return changes[i].Target < changes[j].Target
		}
		return changes[i].Field < changes[j].Field
	})
	return changes
}

func indexConnections(connections []*spec.Connection) map[connKey]*spec.Connection {
	byKey := make(map[connKey]*spec.Connection, len(connections))
	for _, c := range connections {
		byKey[connKey{c.Source, c.Target}] = c
	}
	return byKey
}

func compareConnection(before, after *spec.Connection) []spec.ConnectionChange {
	var changes []spec.ConnectionChange
	changed := func(field string, oldValue, newValue interface{}) {
		changes = append(changes, spec.ConnectionChange{
			Kind:     spec.ChangeChanged,
			Source:   after.Source,
			Target:   after.Target,
			Field:    field,
			OldValue: oldValue,
			NewValue: newValue,
		})
	}
	if before.Label != after.Label {
		changed("label", before.Label, after.Label)
	}
	if before.Protocol != after.Protocol {
		changed("protocol", before.Protocol, after.Protocol)
	}
	if before.Port != after.Port {
		changed("port", before.Port, after.Port)
	}
	return changes
}

// costDelta is zero unless both versions carry an estimate.
func costDelta(before, after *spec.CostEstimate) float64 {
	if before == nil || after == nil {
		return 0
	}
	return decimal.NewFromFloat(after.MonthlyTotal).
		Sub(decimal.NewFromFloat(before.MonthlyTotal)).
		InexactFloat64()
}

// changedComponents counts distinct components in a sorted change list.
func changedComponents(changes []spec.FieldChange) int {
	count := 0
	for i, change := range changes {
		if i == 0 || change.ComponentID != changes[i-1].ComponentID {
			count++
		}
	}
	return count
}
