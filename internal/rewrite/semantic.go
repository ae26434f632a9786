package rewrite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fieldshift/fieldshift/internal/layout"
)

// fromEntry is one table alias declaration in a semantic query's From
// clause.
type fromEntry struct {
	Name   string `json:"Name"`
	Entity string `json:"Entity"`
	Type   int    `json:"Type"`
}

// rewriteSemanticQuery relocates rn inside the {From, Select, Where,
// OrderBy} block at base. The step order is a contract: sibling entries
// key off Select[*].Name, so the Name identifier is rewritten last, and
// alias pruning must observe the From table before a new alias is
// generated. The new table's alias is always declared in From (creating
// From when absent); every other step is a no-op when its target shape
// is absent.
func rewriteSemanticQuery(doc *layout.Doc, base string, rn Rename) error {
	fromPath := layout.Join(base, "From")
	selectPath := layout.Join(base, "Select")
	wherePath := layout.Join(base, "Where")
	orderByPath := layout.Join(base, "OrderBy")

	if err := pruneStaleAlias(doc, fromPath, selectPath, wherePath, rn); err != nil {
		return err
	}

	alias, ok := fromAlias(doc, fromPath, rn.NewTable)
	if !ok {
		alias = generateAlias(doc, fromPath, rn.NewTable)
		if err := appendFromEntry(doc, fromPath, fromEntry{Name: alias, Entity: rn.NewTable, Type: 0}); err != nil {
			return err
		}
	}

	if err := updateSelectAliases(doc, selectPath, rn.Old, alias); err != nil {
		return err
	}
	if err := updateSelectFields(doc, selectPath, rn.Old, rn.NewField); err != nil {
		return err
	}
	if err := updateOrderBy(doc, orderByPath, rn, alias); err != nil {
		return err
	}
	if doc.Exists(wherePath) {
		if err := updateWhere(doc, wherePath, rn, alias); err != nil {
			return err
		}
	}

	// Identifier rewrite stays last: everything above predicates on the
	// old Name.
	return updateSelectNames(doc, selectPath, rn.Old, rn.New)
}

// fromAlias resolves the alias declared for a table, if any.
func fromAlias(doc *layout.Doc, fromPath, table string) (string, bool) {
	alias := ""
	found := false
	doc.EachIndex(fromPath, func(i int, p string) bool {
		entry := doc.Get(p)
		if entry.Get("Entity").Str == table {
			alias = entry.Get("Name").Str
			found = true
			return false
		}
		return true
	})
	return alias, found
}

// pruneStaleAlias drops the old table's From entry when no surviving
// Select row and no Where source still references it.
func pruneStaleAlias(doc *layout.Doc, fromPath, selectPath, wherePath string, rn Rename) error {
	oldAlias, ok := fromAlias(doc, fromPath, rn.OldTable)
	if !ok {
		return nil
	}

	referenced := false
	doc.EachIndex(selectPath, func(i int, p string) bool {
		entry := doc.Get(p)
		if entry.Get("Name").Str == rn.Old {
			return true
		}
		entry.ForEach(func(key, wrapper gjson.Result) bool {
			if wrapper.Get("Expression.SourceRef.Source").Str == oldAlias {
				referenced = true
				return false
			}
			return true
		})
		return !referenced
	})
	if !referenced {
		for _, src := range doc.CollectStrings(wherePath, "Source") {
			if src == oldAlias {
				referenced = true
				break
			}
		}
	}
	if referenced {
		return nil
	}

	drop := -1
	doc.EachIndex(fromPath, func(i int, p string) bool {
		if doc.Get(p).Get("Name").Str == oldAlias {
			drop = i
			return false
		}
		return true
	})
	if drop < 0 {
		return nil
	}
	return doc.Delete(layout.Join(fromPath, layout.Index(drop)))
}

// generateAlias picks a fresh alias for a table: its lowercased first
// character, suffixed with one more than the highest numeric suffix among
// existing aliases that share the character. Digits are extracted by
// zeroing non-digit characters, so "o" counts as 0 and "o2" as 2. The
// host reassigns aliases on next open; uniqueness within From is what
// matters here.
func generateAlias(doc *layout.Doc, fromPath, table string) string {
	lead := strings.ToLower(table[:1])
	max := -1
	doc.EachIndex(fromPath, func(i int, p string) bool {
		name := doc.Get(p).Get("Name").Str
		if name == "" || name[:1] != lead {
			return true
		}
		n := aliasSuffix(name)
		if n > max {
			max = n
		}
		return true
	})
	if max < 0 {
		return lead
	}
	return fmt.Sprintf("%s%d", lead, max+1)
}

func aliasSuffix(name string) int {
	digits := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] >= '0' && name[i] <= '9' {
			digits[i] = name[i]
		} else {
			digits[i] = '0'
		}
	}
	n := 0
	for _, d := range digits {
		n = n*10 + int(d-'0')
	}
	return n
}

func appendFromEntry(doc *layout.Doc, fromPath string, entry fromEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if !doc.Exists(fromPath) {
		return doc.SetRaw(fromPath, "["+string(raw)+"]")
	}
	return doc.SetRaw(layout.Join(fromPath, "-1"), string(raw))
}

// updateSelectAliases points every wrapper expression of the rewritten
// Select row at the new alias.
func updateSelectAliases(doc *layout.Doc, selectPath, oldQualified, alias string) error {
	return eachSelectWrapper(doc, selectPath, oldQualified, func(wrapperPath string) error {
		src := layout.Join(wrapperPath, "Expression", "SourceRef", "Source")
		if !doc.Exists(src) {
			return nil
		}
		return doc.Set(src, alias)
	})
}

// updateSelectFields rewrites every wrapper Property of the rewritten
// Select row.
func updateSelectFields(doc *layout.Doc, selectPath, oldQualified, newField string) error {
	return eachSelectWrapper(doc, selectPath, oldQualified, func(wrapperPath string) error {
		prop := layout.Join(wrapperPath, "Property")
		if !doc.Exists(prop) {
			return nil
		}
		return doc.Set(prop, newField)
	})
}

// eachSelectWrapper visits the non-Name members of every Select entry
// whose Name matches oldQualified.
func eachSelectWrapper(doc *layout.Doc, selectPath, oldQualified string, fn func(wrapperPath string) error) error {
	var err error
	doc.EachIndex(selectPath, func(i int, p string) bool {
		if doc.Get(p).Get("Name").Str != oldQualified {
			return true
		}
		doc.EachKey(p, func(key, memberPath string) bool {
			if key == "Name" {
				return true
			}
			err = fn(memberPath)
			return err == nil
		})
		return err == nil
	})
	return err
}

// updateOrderBy redirects sort keys that reference the old field.
func updateOrderBy(doc *layout.Doc, orderByPath string, rn Rename, alias string) error {
	var err error
	doc.EachIndex(orderByPath, func(i int, p string) bool {
		exprPath := layout.Join(p, "Expression")
		doc.EachKey(exprPath, func(key, wrapperPath string) bool {
			prop := layout.Join(wrapperPath, "Property")
			if doc.Get(prop).Str != rn.OldField {
				return true
			}
			src := layout.Join(wrapperPath, "Expression", "SourceRef", "Source")
			if doc.Exists(src) {
				if err = doc.Set(src, alias); err != nil {
					return false
				}
			}
			err = doc.Set(prop, rn.NewField)
			return err == nil
		})
		return err == nil
	})
	return err
}

// updateWhere rewrites filter conditions. A condition that mentions the
// old field anywhere gets ALL of its Source values pointed at the new
// alias and ALL of its Property values renamed. This blanket update is
// deliberate and kept for compatibility.
func updateWhere(doc *layout.Doc, wherePath string, rn Rename, alias string) error {
	var err error
	doc.EachIndex(wherePath, func(i int, condPath string) bool {
		mentions := false
		for _, prop := range doc.CollectStrings(condPath, "Property") {
			if prop == rn.OldField {
				mentions = true
				break
			}
		}
		if !mentions {
			return true
		}
		if err = setAllKeyValues(doc, condPath, "Source", alias); err != nil {
			return false
		}
		err = setAllKeyValues(doc, condPath, "Property", rn.NewField)
		return err == nil
	})
	return err
}

// setAllKeyValues sets every string member named key in the subtree at
// root. Paths are collected first; string-for-string writes do not shift
// any other location.
func setAllKeyValues(doc *layout.Doc, root, key, value string) error {
	var paths []string
	doc.Walk(root, func(p string, v gjson.Result) bool {
		if v.IsObject() && v.Get(key).Type == gjson.String {
			paths = append(paths, layout.Join(p, key))
		}
		return true
	})
	for _, p := range paths {
		if err := doc.Set(p, value); err != nil {
			return err
		}
	}
	return nil
}

// updateSelectNames rewrites the synthetic Table.Field identifier.
func updateSelectNames(doc *layout.Doc, selectPath, oldQualified, newQualified string) error {
	var err error
	doc.EachIndex(selectPath, func(i int, p string) bool {
		namePath := layout.Join(p, "Name")
		if doc.Get(namePath).Str == oldQualified {
			err = doc.Set(namePath, newQualified)
		}
		return err == nil
	})
	return err
}
