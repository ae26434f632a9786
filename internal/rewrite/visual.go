package rewrite

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/fieldshift/fieldshift/internal/layout"
)

var (
	ErrNoConfig  = errors.New("visual has no config")
	ErrNoFilters = errors.New("data visual has no filters")
)

// nonDataTypes never reference model fields and are never rewritten.
var nonDataTypes = map[string]bool{
	"image":        true,
	"textbox":      true,
	"shape":        true,
	"actionButton": true,
}

// qualifierKeys are the keys under which a Table.Field identifier
// appears structurally in a sub-document.
var qualifierKeys = [...]string{"queryRef", "Name", "queryName"}

// Visual is one visual container, with its nested sub-documents decoded.
type Visual struct {
	lay   *layout.Layout
	page  int
	index int

	config     *layout.Doc
	filters    *layout.Doc
	query      *layout.Doc
	transforms *layout.Doc

	visualType string
	title      string
}

// NewVisual decodes the visual at (page, index). The config sub-document
// is required for classification; the rest are loaded lazily by the
// operations that need them.
func NewVisual(lay *layout.Layout, page, index int) (*Visual, error) {
	cfg, ok := lay.VisualOption(page, index, layout.OptionConfig)
	if !ok {
		return nil, fmt.Errorf("visual %d/%d: %w", page, index, ErrNoConfig)
	}
	v := &Visual{lay: lay, page: page, index: index, config: cfg}
	v.visualType = cfg.Get("singleVisual.visualType").Str
	v.title = cfg.Get("singleVisual.vcObjects.title.0.properties.text.expr.Literal.Value").Str
	return v, nil
}

// Type returns the visual type, empty when undeclared.
func (v *Visual) Type() string {
	return v.visualType
}

// Title returns the visual's configured title, or a placeholder.
func (v *Visual) Title() string {
	if v.title == "" {
		return "Untitled"
	}
	return v.title
}

// IsDataVisual reports whether the visual can reference model fields.
func (v *Visual) IsDataVisual() bool {
	return v.visualType != "" && !nonDataTypes[v.visualType]
}

// UpdateFields relocates rn inside the visual. Returns true when the
// visual referenced the old qualifier and was rewritten. Non-data
// visuals are left untouched; a data visual without filters is an error.
func (v *Visual) UpdateFields(rn Rename) (bool, error) {
	if !v.IsDataVisual() {
		return false, nil
	}

	filters, ok := v.lay.VisualOption(v.page, v.index, layout.OptionFilters)
	if !ok {
		return false, fmt.Errorf("visual %d/%d (%s): %w", v.page, v.index, v.Title(), ErrNoFilters)
	}
	v.filters = filters
	v.query, _ = v.lay.VisualOption(v.page, v.index, layout.OptionQuery)
	v.transforms, _ = v.lay.VisualOption(v.page, v.index, layout.OptionDataTransforms)

	if !v.mentions(rn.Old) {
		return false, nil
	}

	// Rewrite order is fixed: config first (it owns the prototype
	// query), then transforms and query, filters last.
	if err := rewriteConfig(v.config, rn); err != nil {
		return false, err
	}
	if v.transforms != nil {
		if err := rewriteDataTransforms(v.transforms, rn); err != nil {
			return false, err
		}
	}
	if v.query != nil {
		if err := rewriteQuery(v.query, rn); err != nil {
			return false, err
		}
	}
	if err := rewriteFilters(v.filters, rn); err != nil {
		return false, err
	}

	return true, v.writeBack()
}

// mentions reports whether any sub-document carries the qualifier under
// one of the identifier keys.
func (v *Visual) mentions(qualified string) bool {
	for _, doc := range []*layout.Doc{v.config, v.filters, v.query, v.transforms} {
		if doc == nil {
			continue
		}
		if containsQualifier(doc, qualified) {
			return true
		}
	}
	return false
}

func containsQualifier(doc *layout.Doc, qualified string) bool {
	found := false
	doc.Walk("", func(p string, val gjson.Result) bool {
		if !val.IsObject() {
			return true
		}
		for _, key := range qualifierKeys {
			if c := val.Get(key); c.Type == gjson.String && c.Str == qualified {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// writeBack re-encodes only the sub-documents that were mutated.
func (v *Visual) writeBack() error {
	for option, doc := range map[string]*layout.Doc{
		layout.OptionConfig:         v.config,
		layout.OptionFilters:        v.filters,
		layout.OptionQuery:          v.query,
		layout.OptionDataTransforms: v.transforms,
	} {
		if doc == nil || !doc.Dirty() {
			continue
		}
		if err := v.lay.SetVisualOption(v.page, v.index, option, doc); err != nil {
			return err
		}
	}
	return nil
}
