// Package layout reads and mutates the Report/Layout document of a thin
// report. The outer document and every nested sub-document are kept as
// raw JSON text; mutation is surgical so an untouched layout round-trips
// byte-identically.
package layout

import (
	"errors"

	"github.com/tidwall/gjson"
)

// Nested sub-documents a visual record may carry as JSON-encoded strings.
const (
	OptionConfig         = "config"
	OptionFilters        = "filters"
	OptionQuery          = "query"
	OptionDataTransforms = "dataTransforms"
)

var ErrNotJSON = errors.New("layout is not valid JSON")

// Layout is the parsed outer document of a report.
type Layout struct {
	doc *Doc
}

// Parse validates raw layout text and wraps it.
func Parse(raw string) (*Layout, error) {
	if !gjson.Valid(raw) {
		return nil, ErrNotJSON
	}
	return &Layout{doc: NewDoc(raw)}, nil
}

// Raw returns the current layout text.
func (l *Layout) Raw() string {
	return l.doc.raw
}

// Dirty reports whether any mutation has been written back.
func (l *Layout) Dirty() bool {
	return l.doc.dirty
}

// PageCount returns the number of sections.
func (l *Layout) PageCount() int {
	return len(l.doc.Get("sections").Array())
}

// VisualCount returns the number of visual containers on a page.
func (l *Layout) VisualCount(page int) int {
	return len(l.doc.Get(visualsPath(page)).Array())
}

// PageName returns a page's displayName, or its ordinal name when absent.
func (l *Layout) PageName(page int) string {
	if v := l.doc.Get(Join("sections", Index(page), "displayName")); v.Exists() {
		return v.String()
	}
	return l.doc.Get(Join("sections", Index(page), "name")).String()
}

func visualsPath(page int) string {
	return Join("sections", Index(page), "visualContainers")
}

// VisualPath returns the concrete path of a visual record.
func VisualPath(page, visual int) string {
	return Join(visualsPath(page), Index(visual))
}

// VisualRecord returns the raw visual record at (page, visual).
func (l *Layout) VisualRecord(page, visual int) gjson.Result {
	return l.doc.Get(VisualPath(page, visual))
}

// VisualOption decodes one of a visual's nested JSON-string sub-documents.
// The second return is false when the visual does not carry that option.
func (l *Layout) VisualOption(page, visual int, option string) (*Doc, bool) {
	v := l.doc.Get(Join(VisualPath(page, visual), option))
	if v.Type != gjson.String {
		return nil, false
	}
	return NewDoc(v.Str), true
}

// SetVisualOption re-encodes a sub-document back into the visual record
// as a JSON string.
func (l *Layout) SetVisualOption(page, visual int, option string, doc *Doc) error {
	return l.doc.Set(Join(VisualPath(page, visual), option), doc.Raw())
}

// ReportConfig decodes the top-level config string (bookmark state lives
// under it).
func (l *Layout) ReportConfig() (*Doc, bool) {
	v := l.doc.Get("config")
	if v.Type != gjson.String {
		return nil, false
	}
	return NewDoc(v.Str), true
}

// SetReportConfig re-encodes the top-level config string.
func (l *Layout) SetReportConfig(doc *Doc) error {
	return l.doc.Set("config", doc.Raw())
}

// PageFilters decodes a page-level filters string.
func (l *Layout) PageFilters(page int) (*Doc, bool) {
	v := l.doc.Get(Join("sections", Index(page), "filters"))
	if v.Type != gjson.String {
		return nil, false
	}
	return NewDoc(v.Str), true
}

// SetPageFilters re-encodes a page-level filters string.
func (l *Layout) SetPageFilters(page int, doc *Doc) error {
	return l.doc.Set(Join("sections", Index(page), "filters"), doc.Raw())
}
