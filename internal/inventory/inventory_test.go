package inventory

import (
	"encoding/json"
	"fmt"
	"testing"
)

func jstr(t *testing.T, doc string) string {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func fixtureLayout(t *testing.T) string {
	t.Helper()
	config := jstr(t, `{"singleVisual":{"visualType":"barChart","projections":{"Values":[{"queryRef":"Sales.Qty"},{"queryRef":"Sales.Total"}],"Category":[{"queryRef":"Customers.Region"}]}}}`)
	filters := jstr(t, `[{"expression":{"Measure":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Margin"}}}]`)
	return fmt.Sprintf(`{"sections":[{"name":"p0","visualContainers":[{"config":%s,"filters":%s}]}]}`, config, filters)
}

func TestCollect(t *testing.T) {
	inv, err := Collect(fixtureLayout(t))
	if err != nil {
		t.Fatal(err)
	}

	fields := inv.Fields()
	want := []string{"Customers.Region", "Margin", "Sales.Qty", "Sales.Total"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, fields[i], want[i])
		}
	}
}

func TestFindInstances(t *testing.T) {
	inv, err := Collect(fixtureLayout(t))
	if err != nil {
		t.Fatal(err)
	}

	matches := inv.FindInstances([]string{"Sales.Qty", "Region", "Ghost.Field", "Nope"})
	if !matches["Sales.Qty"] {
		t.Error("qualified candidate should match")
	}
	if !matches["Region"] {
		t.Error("bare candidate should match the field part")
	}
	if matches["Ghost.Field"] || matches["Nope"] {
		t.Errorf("unexpected matches: %v", matches)
	}
}

func TestCollectRejectsBrokenView(t *testing.T) {
	// A layout whose unescaped view no longer parses.
	if _, err := Collect(`{"a":"\"["}`); err == nil {
		t.Error("expected an error for an unparseable view")
	}
}
