// Package inventory collects the set of fields a report references:
// qualified Table.Field identifiers from projections and bare field names
// from visual filter expressions. It reads the lossy full-JSON view of
// the layout, so the result predicts matches but never drives a mutation.
package inventory

import (
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fieldshift/fieldshift/internal/layout"
)

const (
	filterFieldsPath = "sections.#.visualContainers.#.filters.#.expression.Measure.Property"
	projectionsPath  = "sections.#.visualContainers.#.config.singleVisual.projections"
)

// Inventory is the set of field references found in one report.
type Inventory struct {
	fields map[string]struct{}
}

// Collect builds the inventory from raw layout text.
func Collect(raw string) (*Inventory, error) {
	view, err := layout.FullJSONView(raw)
	if err != nil {
		return nil, err
	}

	inv := &Inventory{fields: make(map[string]struct{})}

	for _, s := range stringLeaves(gjson.Get(view, filterFieldsPath)) {
		inv.fields[s] = struct{}{}
	}
	for _, s := range keyedStrings(gjson.Get(view, projectionsPath), "queryRef") {
		inv.fields[s] = struct{}{}
	}
	return inv, nil
}

// Fields returns the sorted field set.
func (inv *Inventory) Fields() []string {
	out := make([]string, 0, len(inv.fields))
	for f := range inv.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether a qualifier appears in the inventory.
func (inv *Inventory) Contains(qualifier string) bool {
	_, ok := inv.fields[qualifier]
	return ok
}

// FindInstances reports which candidates the report references. A
// qualified candidate (Table.Field) matches whole qualifiers; a bare
// candidate matches the field part of any qualifier.
func (inv *Inventory) FindInstances(candidates []string) map[string]bool {
	matches := make(map[string]bool)
	for _, cand := range candidates {
		if strings.Contains(cand, ".") {
			if inv.Contains(cand) {
				matches[cand] = true
			}
			continue
		}
		for f := range inv.fields {
			parts := strings.Split(f, ".")
			if parts[len(parts)-1] == cand {
				matches[cand] = true
				break
			}
		}
	}
	return matches
}

// stringLeaves flattens a (possibly nested-array) result into its string
// leaves.
func stringLeaves(r gjson.Result) []string {
	var out []string
	var walk func(v gjson.Result)
	walk = func(v gjson.Result) {
		switch {
		case v.IsArray():
			v.ForEach(func(_, child gjson.Result) bool {
				walk(child)
				return true
			})
		case v.Type == gjson.String:
			out = append(out, v.Str)
		}
	}
	walk(r)
	return out
}

// keyedStrings gathers every string value stored under key anywhere in
// the result tree.
func keyedStrings(r gjson.Result, key string) []string {
	var out []string
	var walk func(v gjson.Result)
	walk = func(v gjson.Result) {
		if v.IsObject() {
			if c := v.Get(key); c.Type == gjson.String {
				out = append(out, c.Str)
			}
		}
		if v.IsObject() || v.IsArray() {
			v.ForEach(func(_, child gjson.Result) bool {
				walk(child)
				return true
			})
		}
	}
	walk(r)
	return out
}
