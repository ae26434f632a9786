package rewrite

import (
	"github.com/fieldshift/fieldshift/internal/layout"
)

// ResetSlicer clears a slicer's "all items selected" marker. The marker
// is only removed when the slicer has no explicit selection filter, so
// user-defined defaults survive. Returns true when the config changed.
func (v *Visual) ResetSlicer() (bool, error) {
	if v.visualType != "slicer" {
		return false, nil
	}

	var marked []string
	v.config.EachIndex(layout.Join("singleVisual", "objects", "data"), func(i int, entryPath string) bool {
		p := layout.Join(entryPath, "properties", "isInvertedSelectionMode")
		if v.config.Exists(p) {
			marked = append(marked, p)
		}
		return true
	})
	if len(marked) == 0 {
		return false, nil
	}

	hasSelection := false
	v.config.EachIndex(layout.Join("singleVisual", "objects", "general"), func(i int, entryPath string) bool {
		if v.config.Exists(layout.Join(entryPath, "properties", "filter")) {
			hasSelection = true
			return false
		}
		return true
	})
	if hasSelection {
		return false, nil
	}

	for _, p := range marked {
		if err := v.config.Delete(p); err != nil {
			return false, err
		}
	}
	return true, v.writeBack()
}
