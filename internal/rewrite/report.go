package rewrite

import (
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/fieldshift/fieldshift/internal/container"
	"github.com/fieldshift/fieldshift/internal/layout"
	"github.com/fieldshift/fieldshift/pkg/logger"
)

// Report is one thin report opened for mutation. Mutations accumulate in
// the in-memory layout; Save re-emits the container only when something
// actually changed.
type Report struct {
	path    string
	lay     *layout.Layout
	updated int

	// Page-level filter rewriting is opt-in: it can corrupt reports in
	// some host versions.
	pageFilters bool
}

// Open reads and parses a report container.
func Open(path string) (*Report, error) {
	raw, err := container.ReadLayout(path)
	if err != nil {
		return nil, err
	}
	lay, err := layout.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Report{path: path, lay: lay}, nil
}

// Filename returns the report's base filename.
func (r *Report) Filename() string {
	return filepath.Base(r.path)
}

// Layout exposes the parsed layout, mainly for inspection commands.
func (r *Report) Layout() *layout.Layout {
	return r.lay
}

// Updated returns the number of mutations applied so far.
func (r *Report) Updated() int {
	return r.updated
}

// EnablePageFilters opts in to page-level filter rewriting.
func (r *Report) EnablePageFilters() {
	r.pageFilters = true
}

// UpdateFields relocates rn across every visual, the report bookmarks
// and, when opted in, page-level filters. Per-visual failures are
// logged and skipped; the traversal always completes.
func (r *Report) UpdateFields(rn Rename) error {
	logger.Info("updating report", "file", r.Filename(), "old", rn.Old, "new", rn.New)

	r.eachVisual(func(page, index int) {
		v, err := NewVisual(r.lay, page, index)
		if err != nil {
			logger.Warn("skipping visual", "page", page, "visual", index, "err", err)
			return
		}
		changed, err := v.UpdateFields(rn)
		if err != nil {
			logger.Warn("skipping visual", "page", page, "visual", index, "err", err)
			return
		}
		if changed {
			r.updated++
			logger.Info("updated visual", "title", v.Title(), "page", r.lay.PageName(page))
		}
	})

	if err := r.updateBookmarks(rn); err != nil {
		logger.Warn("bookmark update failed", "err", err)
	}
	if r.pageFilters {
		if err := r.updatePageFilters(rn); err != nil {
			logger.Warn("page filter update failed", "err", err)
		}
	}
	return nil
}

// UpdateSlicers resets every multi-select "All" slicer that has no
// explicit selection filter.
func (r *Report) UpdateSlicers() error {
	r.eachVisual(func(page, index int) {
		v, err := NewVisual(r.lay, page, index)
		if err != nil {
			logger.Warn("skipping visual", "page", page, "visual", index, "err", err)
			return
		}
		changed, err := v.ResetSlicer()
		if err != nil {
			logger.Warn("skipping slicer", "page", page, "visual", index, "err", err)
			return
		}
		if changed {
			r.updated++
			logger.Info("updated slicer", "title", v.Title(), "page", r.lay.PageName(page))
		}
	})
	return nil
}

// Save atomically re-emits the container. With nothing updated the file
// is left untouched; "no fields to update" is a normal outcome.
func (r *Report) Save() error {
	if r.updated == 0 {
		logger.Info("no changes to write", "file", r.Filename())
		return nil
	}
	return container.WriteLayout(r.path, r.lay.Raw())
}

func (r *Report) eachVisual(fn func(page, index int)) {
	for page := 0; page < r.lay.PageCount(); page++ {
		for index := 0; index < r.lay.VisualCount(page); index++ {
			fn(page, index)
		}
	}
}

// updateBookmarks rewrites field references captured in bookmark
// snapshots under the top-level config. Only nodes naming both the old
// field and the old table move; an equally-named field on another table
// stays put.
func (r *Report) updateBookmarks(rn Rename) error {
	cfg, ok := r.lay.ReportConfig()
	if !ok {
		return nil
	}

	var nodes []string
	cfg.Walk("bookmarks", func(p string, v gjson.Result) bool {
		if v.IsObject() &&
			v.Get("Property").Str == rn.OldField &&
			v.Get("Expression.SourceRef.Entity").Str == rn.OldTable {
			nodes = append(nodes, p)
		}
		return true
	})
	for _, p := range nodes {
		if err := cfg.Set(layout.Join(p, "Property"), rn.NewField); err != nil {
			return err
		}
		if err := cfg.Set(layout.Join(p, "Expression", "SourceRef", "Entity"), rn.NewTable); err != nil {
			return err
		}
	}

	if !cfg.Dirty() {
		return nil
	}
	if err := r.lay.SetReportConfig(cfg); err != nil {
		return err
	}
	r.updated += len(nodes)
	return nil
}

// updatePageFilters applies the filters rewrite to each page's filter
// document.
func (r *Report) updatePageFilters(rn Rename) error {
	for page := 0; page < r.lay.PageCount(); page++ {
		doc, ok := r.lay.PageFilters(page)
		if !ok {
			continue
		}
		if err := rewriteFilters(doc, rn); err != nil {
			return err
		}
		if !doc.Dirty() {
			continue
		}
		if err := r.lay.SetPageFilters(page, doc); err != nil {
			return err
		}
		r.updated++
		logger.Info("updated page filters", "page", r.lay.PageName(page))
	}
	return nil
}
