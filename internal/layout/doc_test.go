package layout

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestDocSetMarksDirty(t *testing.T) {
	doc := NewDoc(`{"a":{"b":"old"}}`)
	if doc.Dirty() {
		t.Fatal("fresh doc should not be dirty")
	}
	if err := doc.Set("a.b", "new"); err != nil {
		t.Fatal(err)
	}
	if !doc.Dirty() {
		t.Error("doc should be dirty after set")
	}
	if got := doc.Get("a.b").Str; got != "new" {
		t.Errorf("expected %q, got %q", "new", got)
	}
}

func TestDocSetSameValueStaysClean(t *testing.T) {
	doc := NewDoc(`{"a":{"b":"same"}}`)
	if err := doc.Set("a.b", "same"); err != nil {
		t.Fatal(err)
	}
	if doc.Dirty() {
		t.Error("setting the current value should not dirty the doc")
	}
}

func TestDocUntouchedBytesPreserved(t *testing.T) {
	// Odd spacing and key order must survive a mutation elsewhere.
	raw := `{"z": 1,   "a": {"b": "old"}, "weird":[1,2,  3]}`
	doc := NewDoc(raw)
	if err := doc.Set("a.b", "new"); err != nil {
		t.Fatal(err)
	}
	if got := doc.Get("weird").Raw; got != "[1,2,  3]" {
		t.Errorf("untouched array changed: %q", got)
	}
	if got := doc.Get("z").Raw; got != "1" {
		t.Errorf("untouched number changed: %q", got)
	}
}

func TestDocDeleteMissingIsNoop(t *testing.T) {
	doc := NewDoc(`{"a":1}`)
	if err := doc.Delete("nope"); err != nil {
		t.Fatal(err)
	}
	if doc.Dirty() {
		t.Error("deleting a missing path should not dirty the doc")
	}
}

func TestEscapeKey(t *testing.T) {
	doc := NewDoc(`{"columnProperties":{"Sales.Qty":{"width":80}}}`)
	path := Join("columnProperties", EscapeKey("Sales.Qty"), "width")
	if got := doc.Get(path).Int(); got != 80 {
		t.Errorf("escaped key lookup failed, got %v", got)
	}

	if err := doc.Set(Join("columnProperties", EscapeKey("Sales.Qty"), "width"), "90"); err != nil {
		t.Fatal(err)
	}
	if got := doc.Get(path).Str; got != "90" {
		t.Errorf("escaped key write failed, got %v", got)
	}
}

func TestWalkVisitsEverythingWithAddressablePaths(t *testing.T) {
	doc := NewDoc(`{"a":[{"k":"v1"},{"k":"v2"}],"b":{"Sales.Qty":{"k":"v3"}}}`)

	var paths []string
	doc.Walk("", func(path string, value gjson.Result) bool {
		if value.Type == gjson.String {
			paths = append(paths, path)
		}
		return true
	})

	if len(paths) != 3 {
		t.Fatalf("expected 3 string leaves, got %d: %v", len(paths), paths)
	}
	// Every reported path must resolve back to its value.
	for _, p := range paths {
		if !doc.Get(p).Exists() {
			t.Errorf("path %q does not resolve", p)
		}
	}
}

func TestCollectStrings(t *testing.T) {
	doc := NewDoc(`{"Where":[{"Condition":{"In":{"Expressions":[{"Column":{"Expression":{"SourceRef":{"Source":"s"}}}}]}}},{"Condition":{"Not":{"Expression":{"SourceRef":{"Source":"c"}}}}}]}`)
	got := doc.CollectStrings("Where", "Source")
	if len(got) != 2 || got[0] != "s" || got[1] != "c" {
		t.Errorf("expected [s c], got %v", got)
	}
}

func TestContainsKeyValue(t *testing.T) {
	doc := NewDoc(`{"selects":[{"queryName":"Sales.Qty"}]}`)
	if !doc.ContainsKeyValue("", "queryName", "Sales.Qty") {
		t.Error("expected a match for queryName")
	}
	if doc.ContainsKeyValue("", "queryName", "Other.Field") {
		t.Error("unexpected match")
	}
}
