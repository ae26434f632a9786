package rewrite

import (
	"github.com/fieldshift/fieldshift/internal/layout"
)

// rewriteDataTransforms relocates rn inside a dataTransforms
// sub-document. The select list and query metadata key off queryName /
// Name, so those identifier rewrites run last.
func rewriteDataTransforms(doc *layout.Doc, rn Rename) error {
	if err := updateSelectorMetadata(doc, "objects", rn); err != nil {
		return err
	}
	if err := updateDataPoints(doc, layout.Join("objects", "dataPoint"), rn); err != nil {
		return err
	}
	if err := updateTransformSelects(doc, rn); err != nil {
		return err
	}
	if err := updateQueryMetadataFilters(doc, rn); err != nil {
		return err
	}

	if err := updateTransformSelectNames(doc, rn); err != nil {
		return err
	}
	return updateQueryMetadataSelectNames(doc, rn)
}

// updateTransformSelects rewrites the expression and display name of
// every select entry keyed by the old qualifier. A display name is only
// touched when it still equals the old field name, so customised names
// stay.
func updateTransformSelects(doc *layout.Doc, rn Rename) error {
	var err error
	doc.EachIndex("selects", func(i int, entryPath string) bool {
		if doc.Get(layout.Join(entryPath, "queryName")).Str != rn.Old {
			return true
		}
		doc.EachKey(layout.Join(entryPath, "expr"), func(key, wrapperPath string) bool {
			entity := layout.Join(wrapperPath, "Expression", "SourceRef", "Entity")
			if doc.Exists(entity) {
				if err = doc.Set(entity, rn.NewTable); err != nil {
					return false
				}
			}
			prop := layout.Join(wrapperPath, "Property")
			if doc.Exists(prop) {
				err = doc.Set(prop, rn.NewField)
			}
			return err == nil
		})
		if err != nil {
			return false
		}
		display := layout.Join(entryPath, "displayName")
		if doc.Get(display).Str == rn.OldField {
			err = doc.Set(display, rn.NewField)
		}
		return err == nil
	})
	return err
}

// updateQueryMetadataFilters rewrites filter expressions recorded in
// queryMetadata.
func updateQueryMetadataFilters(doc *layout.Doc, rn Rename) error {
	var err error
	doc.EachIndex(layout.Join("queryMetadata", "Filters"), func(i int, entryPath string) bool {
		wrapperPath, ok := filterExpressionWrapper(doc, entryPath, rn.OldField)
		if !ok {
			return true
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

func updateTransformSelectNames(doc *layout.Doc, rn Rename) error {
	var err error
	doc.EachIndex("selects", func(i int, entryPath string) bool {
		namePath := layout.Join(entryPath, "queryName")
		if doc.Get(namePath).Str == rn.Old {
			err = doc.Set(namePath, rn.New)
		}
		return err == nil
	})
	return err
}

func updateQueryMetadataSelectNames(doc *layout.Doc, rn Rename) error {
	var err error
	doc.EachIndex(layout.Join("queryMetadata", "Select"), func(i int, entryPath string) bool {
		namePath := layout.Join(entryPath, "Name")
		if doc.Get(namePath).Str == rn.Old {
			err = doc.Set(namePath, rn.New)
		}
		return err == nil
	})
	return err
}
