// Package rewrite relocates qualified field references across the
// correlated sub-documents of a thin report: visual config, filters,
// query, data transforms, report bookmarks and page filters.
package rewrite

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBadQualifier = errors.New("qualifier must be Table.Field")

// Rename carries one field relocation, pre-split into its parts.
type Rename struct {
	Old string // "Sales.Qty"
	New string // "Orders.Count"

	OldTable string
	NewTable string
	OldField string
	NewField string
}

// ParseRename validates and splits the old/new qualifiers. Each must
// contain exactly one dot separating table from field.
func ParseRename(old, new string) (Rename, error) {
	ot, of, err := splitQualifier(old)
	if err != nil {
		return Rename{}, err
	}
	nt, nf, err := splitQualifier(new)
	if err != nil {
		return Rename{}, err
	}
	return Rename{
		Old: old, New: new,
		OldTable: ot, NewTable: nt,
		OldField: of, NewField: nf,
	}, nil
}

func splitQualifier(q string) (table, field string, err error) {
	parts := strings.Split(q, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadQualifier, q)
	}
	return parts[0], parts[1], nil
}
