package rewrite

import (
	"github.com/tidwall/gjson"

	"github.com/fieldshift/fieldshift/internal/layout"
)

// rewriteConfig relocates rn inside a visual's config sub-document:
// the prototype query, column properties, object selectors, dataPoint
// styling, and finally the projections. Projections go last because the
// prior rewrites predicate on the old queryRef value.
func rewriteConfig(doc *layout.Doc, rn Rename) error {
	sv := "singleVisual"

	if doc.Exists(layout.Join(sv, "prototypeQuery")) {
		if err := rewriteSemanticQuery(doc, layout.Join(sv, "prototypeQuery"), rn); err != nil {
			return err
		}
	}
	if err := moveColumnProperty(doc, layout.Join(sv, "columnProperties"), rn); err != nil {
		return err
	}
	if err := updateSelectorMetadata(doc, layout.Join(sv, "objects"), rn); err != nil {
		return err
	}
	if err := updateDataPoints(doc, layout.Join(sv, "objects", "dataPoint"), rn); err != nil {
		return err
	}
	return updateProjections(doc, layout.Join(sv, "projections"), rn)
}

// moveColumnProperty re-keys a columnProperties entry from the old
// qualifier to the new one, keeping its value.
func moveColumnProperty(doc *layout.Doc, propsPath string, rn Rename) error {
	oldKey := layout.Join(propsPath, layout.EscapeKey(rn.Old))
	v := doc.Get(oldKey)
	if !v.Exists() {
		return nil
	}
	if err := doc.Delete(oldKey); err != nil {
		return err
	}
	return doc.SetRaw(layout.Join(propsPath, layout.EscapeKey(rn.New)), v.Raw)
}

// updateSelectorMetadata rewrites object entries addressed by the old
// qualifier through selector.metadata.
func updateSelectorMetadata(doc *layout.Doc, objectsPath string, rn Rename) error {
	var err error
	doc.EachKey(objectsPath, func(category, categoryPath string) bool {
		doc.EachIndex(categoryPath, func(i int, entryPath string) bool {
			metaPath := layout.Join(entryPath, "selector", "metadata")
			if doc.Get(metaPath).Str == rn.Old {
				err = doc.Set(metaPath, rn.New)
			}
			return err == nil
		})
		return err == nil
	})
	return err
}

// updateDataPoints rewrites styling expressions under objects.dataPoint:
// any nested object whose Property is the old field and whose sibling
// SourceRef names the old table moves to the new field and table.
func updateDataPoints(doc *layout.Doc, dataPointPath string, rn Rename) error {
	var nodes []string
	doc.Walk(dataPointPath, func(p string, v gjson.Result) bool {
		if v.IsObject() &&
			v.Get("Property").Str == rn.OldField &&
			v.Get("Expression.SourceRef.Entity").Str == rn.OldTable {
			nodes = append(nodes, p)
		}
		return true
	})
	for _, p := range nodes {
		if err := doc.Set(layout.Join(p, "Property"), rn.NewField); err != nil {
			return err
		}
		if err := doc.Set(layout.Join(p, "Expression", "SourceRef", "Entity"), rn.NewTable); err != nil {
			return err
		}
	}
	return nil
}

// updateProjections rewrites queryRef references across every projection
// role. Runs last within the config document.
func updateProjections(doc *layout.Doc, projectionsPath string, rn Rename) error {
	var err error
	doc.EachKey(projectionsPath, func(role, rolePath string) bool {
		doc.EachIndex(rolePath, func(i int, entryPath string) bool {
			refPath := layout.Join(entryPath, "queryRef")
			if doc.Get(refPath).Str == rn.Old {
				err = doc.Set(refPath, rn.New)
			}
			return err == nil
		})
		return err == nil
	})
	return err
}
