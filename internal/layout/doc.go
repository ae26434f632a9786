package layout

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Doc is a JSON document held as its raw text. Reads go through gjson and
// mutations through sjson, so every byte outside the touched value is
// preserved verbatim. A Doc tracks whether it has been mutated; callers
// re-encode only dirty documents.
type Doc struct {
	raw   string
	dirty bool
}

// NewDoc wraps raw JSON text in a Doc.
func NewDoc(raw string) *Doc {
	return &Doc{raw: raw}
}

// Raw returns the current document text.
func (d *Doc) Raw() string {
	return d.raw
}

// Dirty reports whether any mutation has been applied.
func (d *Doc) Dirty() bool {
	return d.dirty
}

// Root returns the parsed root of the document.
func (d *Doc) Root() gjson.Result {
	return gjson.Parse(d.raw)
}

// Get resolves a gjson path. An empty path resolves to the root.
func (d *Doc) Get(path string) gjson.Result {
	if path == "" {
		return gjson.Parse(d.raw)
	}
	return gjson.Get(d.raw, path)
}

// Exists reports whether path resolves to a value.
func (d *Doc) Exists(path string) bool {
	return d.Get(path).Exists()
}

// Set writes value at path. Setting a string to its current value is a
// no-op and does not mark the document dirty.
func (d *Doc) Set(path string, value interface{}) error {
	if s, ok := value.(string); ok {
		if cur := d.Get(path); cur.Type == gjson.String && cur.Str == s {
			return nil
		}
	}
	raw, err := sjson.Set(d.raw, path, value)
	if err != nil {
		return err
	}
	d.raw = raw
	d.dirty = true
	return nil
}

// SetRaw writes pre-encoded JSON at path.
func (d *Doc) SetRaw(path, rawValue string) error {
	raw, err := sjson.SetRaw(d.raw, path, rawValue)
	if err != nil {
		return err
	}
	d.raw = raw
	d.dirty = true
	return nil
}

// Delete removes the value at path. Deleting a missing path is a no-op.
func (d *Doc) Delete(path string) error {
	if !d.Exists(path) {
		return nil
	}
	raw, err := sjson.Delete(d.raw, path)
	if err != nil {
		return err
	}
	d.raw = raw
	d.dirty = true
	return nil
}

// EscapeKey escapes a map key for use as a single gjson/sjson path
// component. Layout documents use qualified identifiers like "Sales.Qty"
// as keys, so the dot (and the other path metacharacters) must not be
// interpreted by the path engine.
func EscapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Join assembles path components, skipping empty ones.
func Join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// Index returns an array-index path component.
func Index(i int) string {
	return strconv.Itoa(i)
}
