package rewrite

import (
	"github.com/fieldshift/fieldshift/internal/layout"
)

// rewriteQuery relocates rn inside a visual's query sub-document: each
// command carries a full semantic query.
func rewriteQuery(doc *layout.Doc, rn Rename) error {
	var err error
	doc.EachIndex("Commands", func(i int, cmdPath string) bool {
		queryPath := layout.Join(cmdPath, "SemanticQueryDataShapeCommand", "Query")
		if !doc.Exists(queryPath) {
			return true
		}
		err = rewriteSemanticQuery(doc, queryPath, rn)
		return err == nil
	})
	return err
}
