package rewrite

import (
	"github.com/fieldshift/fieldshift/internal/layout"
)

// rewriteFilters relocates rn inside a filters sub-document, a JSON
// array of filter entries. Entries are matched by their expression
// naming the old field; a matching entry gets its embedded semantic
// query rewritten first, then its expression's table and property.
// Visual-level and page-level filters share this shape.
func rewriteFilters(doc *layout.Doc, rn Rename) error {
	var err error
	doc.EachIndex("", func(i int, entryPath string) bool {
		wrapperPath, ok := filterExpressionWrapper(doc, entryPath, rn.OldField)
		if !ok {
			return true
		}

		filterPath := layout.Join(entryPath, "filter")
		if doc.Exists(filterPath) {
			if err = rewriteSemanticQuery(doc, filterPath, rn); err != nil {
				return false
			}
		}

		entity := layout.Join(wrapperPath, "Expression", "SourceRef", "Entity")
		if doc.Exists(entity) {
			if err = doc.Set(entity, rn.NewTable); err != nil {
				return false
			}
		}
		err = doc.Set(layout.Join(wrapperPath, "Property"), rn.NewField)
		return err == nil
	})
	return err
}

// filterExpressionWrapper finds the expression wrapper (Measure, Column,
// ...) of a filter entry whose Property names the given field.
func filterExpressionWrapper(doc *layout.Doc, entryPath, field string) (string, bool) {
	found := ""
	doc.EachKey(layout.Join(entryPath, "expression"), func(key, wrapperPath string) bool {
		if doc.Get(layout.Join(wrapperPath, "Property")).Str == field {
			found = wrapperPath
			return false
		}
		return true
	})
	return found, found != ""
}
