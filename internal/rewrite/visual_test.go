package rewrite

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/fieldshift/fieldshift/internal/layout"
)

// jstr encodes a sub-document the way the host embeds it: as a JSON
// string member of the visual record.
func jstr(t *testing.T, doc string) string {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

const testConfig = `{"singleVisual":{"visualType":"barChart",` +
	`"vcObjects":{"title":[{"properties":{"text":{"expr":{"Literal":{"Value":"Sales by Region"}}}}}]},` +
	`"prototypeQuery":{"From":[{"Name":"s","Entity":"Sales","Type":0}],` +
	`"Select":[{"Measure":{"Expression":{"SourceRef":{"Source":"s"}},"Property":"Qty"},"Name":"Sales.Qty"}]},` +
	`"columnProperties":{"Sales.Qty":{"width":80}},` +
	`"objects":{"labels":[{"selector":{"metadata":"Sales.Qty"},"properties":{"show":true}}],` +
	`"dataPoint":[{"properties":{"fill":{"solid":{"color":{"expr":{"Measure":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Qty"}}}}}}}]},` +
	`"projections":{"Values":[{"queryRef":"Sales.Qty"}]}}}`

func TestRewriteConfig(t *testing.T) {
	doc := layout.NewDoc(testConfig)
	rn := mustRename(t, "Sales.Qty", "Orders.Count")

	if err := rewriteConfig(doc, rn); err != nil {
		t.Fatal(err)
	}

	sv := "singleVisual"
	if got := doc.Get(sv + ".prototypeQuery.Select.0.Name").Str; got != "Orders.Count" {
		t.Errorf("prototype query Name: %q", got)
	}
	if !doc.Exists(sv + ".columnProperties.Orders\\.Count") {
		t.Error("column property not moved to the new key")
	}
	if doc.Exists(sv + ".columnProperties.Sales\\.Qty") {
		t.Error("old column property key survived")
	}
	if got := doc.Get(sv + ".columnProperties.Orders\\.Count.width").Int(); got != 80 {
		t.Errorf("column property value lost: %d", got)
	}
	if got := doc.Get(sv + ".objects.labels.0.selector.metadata").Str; got != "Orders.Count" {
		t.Errorf("selector metadata: %q", got)
	}
	dp := sv + ".objects.dataPoint.0.properties.fill.solid.color.expr.Measure"
	if got := doc.Get(dp + ".Property").Str; got != "Count" {
		t.Errorf("dataPoint property: %q", got)
	}
	if got := doc.Get(dp + ".Expression.SourceRef.Entity").Str; got != "Orders" {
		t.Errorf("dataPoint entity: %q", got)
	}
	if got := doc.Get(sv + ".projections.Values.0.queryRef").Str; got != "Orders.Count" {
		t.Errorf("projection queryRef: %q", got)
	}
}

func TestRewriteConfigLeavesOtherTablesDataPoints(t *testing.T) {
	doc := layout.NewDoc(`{"singleVisual":{"objects":{"dataPoint":[` +
		`{"properties":{"c":{"expr":{"Measure":{"Expression":{"SourceRef":{"Entity":"Customers"}},"Property":"Qty"}}}}}]}}}`)
	rn := mustRename(t, "Sales.Qty", "Orders.Count")

	if err := rewriteConfig(doc, rn); err != nil {
		t.Fatal(err)
	}
	got := doc.Get("singleVisual.objects.dataPoint.0.properties.c.expr.Measure")
	if got.Get("Property").Str != "Qty" || got.Get("Expression.SourceRef.Entity").Str != "Customers" {
		t.Errorf("dataPoint on another table touched: %s", got.Raw)
	}
}

const testTransforms = `{"objects":{"labels":[{"selector":{"metadata":"Sales.Qty"},"properties":{}}],` +
	`"dataPoint":[{"properties":{"fill":{"expr":{"Measure":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Qty"}}}}}]},` +
	`"selects":[{"displayName":"Qty","queryName":"Sales.Qty",` +
	`"expr":{"Measure":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Qty"}}}],` +
	`"queryMetadata":{"Select":[{"Restatement":"Qty","Name":"Sales.Qty"}],` +
	`"Filters":[{"expression":{"Measure":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Qty"}}}]}}`

func TestRewriteDataTransforms(t *testing.T) {
	doc := layout.NewDoc(testTransforms)
	rn := mustRename(t, "Sales.Qty", "Orders.Count")

	if err := rewriteDataTransforms(doc, rn); err != nil {
		t.Fatal(err)
	}

	if got := doc.Get("objects.labels.0.selector.metadata").Str; got != "Orders.Count" {
		t.Errorf("selector metadata: %q", got)
	}
	sel := doc.Get("selects.0")
	if got := sel.Get("queryName").Str; got != "Orders.Count" {
		t.Errorf("queryName: %q", got)
	}
	if got := sel.Get("displayName").Str; got != "Count" {
		t.Errorf("default display name should follow the field: %q", got)
	}
	if got := sel.Get("expr.Measure.Property").Str; got != "Count" {
		t.Errorf("select expr property: %q", got)
	}
	if got := sel.Get("expr.Measure.Expression.SourceRef.Entity").Str; got != "Orders" {
		t.Errorf("select expr entity: %q", got)
	}
	if got := doc.Get("queryMetadata.Select.0.Name").Str; got != "Orders.Count" {
		t.Errorf("query metadata Name: %q", got)
	}
	qf := doc.Get("queryMetadata.Filters.0.expression.Measure")
	if qf.Get("Property").Str != "Count" || qf.Get("Expression.SourceRef.Entity").Str != "Orders" {
		t.Errorf("query metadata filter: %s", qf.Raw)
	}
}

func TestRewriteDataTransformsKeepsCustomDisplayName(t *testing.T) {
	doc := layout.NewDoc(`{"selects":[{"displayName":"Units Sold","queryName":"Sales.Qty",` +
		`"expr":{"Measure":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Qty"}}}]}`)
	rn := mustRename(t, "Sales.Qty", "Orders.Count")

	if err := rewriteDataTransforms(doc, rn); err != nil {
		t.Fatal(err)
	}
	if got := doc.Get("selects.0.displayName").Str; got != "Units Sold" {
		t.Errorf("customised display name clobbered: %q", got)
	}
	if got := doc.Get("selects.0.queryName").Str; got != "Orders.Count" {
		t.Errorf("queryName: %q", got)
	}
}

func TestRewriteFilters(t *testing.T) {
	doc := layout.NewDoc(`[{"name":"f0","expression":{"Measure":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Qty"}},` +
		`"filter":{"From":[{"Name":"s","Entity":"Sales","Type":0}],` +
		`"Select":[{"Measure":{"Expression":{"SourceRef":{"Source":"s"}},"Property":"Qty"},"Name":"Sales.Qty"}],` +
		`"Where":[{"Condition":{"In":{"Expressions":[{"Measure":{"Expression":{"SourceRef":{"Source":"s"}},"Property":"Qty"}}],"Values":[[{"Literal":{"Value":"3L"}}]]}}}]}},` +
		`{"name":"f1","expression":{"Column":{"Expression":{"SourceRef":{"Entity":"Customers"}},"Property":"Region"}}}]`)
	rn := mustRename(t, "Sales.Qty", "Orders.Count")

	if err := rewriteFilters(doc, rn); err != nil {
		t.Fatal(err)
	}

	expr := doc.Get("0.expression.Measure")
	if expr.Get("Property").Str != "Count" || expr.Get("Expression.SourceRef.Entity").Str != "Orders" {
		t.Errorf("filter expression: %s", expr.Raw)
	}
	if got := doc.Get("0.filter.Select.0.Name").Str; got != "Orders.Count" {
		t.Errorf("embedded semantic query Name: %q", got)
	}
	if got := doc.Get("0.filter.Where.0.Condition.In.Expressions.0.Measure.Property").Str; got != "Count" {
		t.Errorf("embedded where: %q", got)
	}
	// The filter on another field is untouched.
	other := doc.Get("1.expression.Column")
	if other.Get("Property").Str != "Region" || other.Get("Expression.SourceRef.Entity").Str != "Customers" {
		t.Errorf("unrelated filter touched: %s", other.Raw)
	}
}

func TestRewriteQueryCommands(t *testing.T) {
	doc := layout.NewDoc(`{"Commands":[{"SemanticQueryDataShapeCommand":{"Query":` + measureQuery + `}}]}`)
	rn := mustRename(t, "Sales.Qty", "Orders.Count")

	if err := rewriteQuery(doc, rn); err != nil {
		t.Fatal(err)
	}
	q := "Commands.0.SemanticQueryDataShapeCommand.Query"
	if got := doc.Get(q + ".Select.0.Name").Str; got != "Orders.Count" {
		t.Errorf("command query Name: %q", got)
	}
	if got := doc.Get(q + ".From.0.Entity").Str; got != "Orders" {
		t.Errorf("command query From: %q", got)
	}
}

func visualLayout(t *testing.T, config, filters, query, transforms string) *layout.Layout {
	t.Helper()
	record := fmt.Sprintf(`{"x":0,"y":0,"z":0,"width":100,"height":100,"config":%s`, jstr(t, config))
	if filters != "" {
		record += `,"filters":` + jstr(t, filters)
	}
	if query != "" {
		record += `,"query":` + jstr(t, query)
	}
	if transforms != "" {
		record += `,"dataTransforms":` + jstr(t, transforms)
	}
	record += "}"

	lay, err := layout.Parse(`{"sections":[{"name":"p0","visualContainers":[` + record + `]}]}`)
	if err != nil {
		t.Fatal(err)
	}
	return lay
}

func TestVisualClassification(t *testing.T) {
	lay := visualLayout(t, `{"singleVisual":{"visualType":"textbox"}}`, "", "", "")
	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.IsDataVisual() {
		t.Error("textbox must not be a data visual")
	}

	lay = visualLayout(t, `{"singleVisual":{}}`, "", "", "")
	v, err = NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.IsDataVisual() {
		t.Error("untyped visual must not be a data visual")
	}
}

func TestVisualUpdateFields(t *testing.T) {
	filters := `[{"expression":{"Measure":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Qty"}}}]`
	lay := visualLayout(t, testConfig, filters, "", testTransforms)

	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.Title(); got != "Sales by Region" {
		t.Errorf("title: %q", got)
	}

	changed, err := v.UpdateFields(mustRename(t, "Sales.Qty", "Orders.Count"))
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected the visual to be rewritten")
	}

	cfg, _ := lay.VisualOption(0, 0, layout.OptionConfig)
	if got := cfg.Get("singleVisual.projections.Values.0.queryRef").Str; got != "Orders.Count" {
		t.Errorf("re-encoded config stale: %q", got)
	}
	tr, _ := lay.VisualOption(0, 0, layout.OptionDataTransforms)
	if got := tr.Get("selects.0.queryName").Str; got != "Orders.Count" {
		t.Errorf("re-encoded transforms stale: %q", got)
	}
	fl, _ := lay.VisualOption(0, 0, layout.OptionFilters)
	if got := fl.Get("0.expression.Measure.Property").Str; got != "Count" {
		t.Errorf("re-encoded filters stale: %q", got)
	}
}

func TestVisualUpdateFieldsNoMatch(t *testing.T) {
	filters := `[]`
	cfg := `{"singleVisual":{"visualType":"barChart","prototypeQuery":{` +
		`"From":[{"Name":"c","Entity":"Customers","Type":0}],` +
		`"Select":[{"Column":{"Expression":{"SourceRef":{"Source":"c"}},"Property":"Name"},"Name":"Customers.Name"}]}}}`
	lay := visualLayout(t, cfg, filters, "", "")
	before := lay.Raw()

	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := v.UpdateFields(mustRename(t, "Sales.Qty", "Orders.Count"))
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("visual without the field must not be rewritten")
	}
	if lay.Raw() != before {
		t.Error("layout mutated despite no match")
	}
}

func TestVisualNonDataUntouched(t *testing.T) {
	// Even an image whose config mentions the qualifier stays as-is.
	cfg := `{"singleVisual":{"visualType":"image","objects":{"x":[{"selector":{"metadata":"Sales.Qty"}}]}}}`
	lay := visualLayout(t, cfg, "", "", "")
	before := lay.Raw()

	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := v.UpdateFields(mustRename(t, "Sales.Qty", "Orders.Count"))
	if err != nil {
		t.Fatal(err)
	}
	if changed || lay.Raw() != before {
		t.Error("non-data visual was touched")
	}
}

func TestVisualMissingFiltersIsError(t *testing.T) {
	lay := visualLayout(t, `{"singleVisual":{"visualType":"barChart"}}`, "", "", "")
	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.UpdateFields(mustRename(t, "Sales.Qty", "Orders.Count")); err == nil {
		t.Error("expected an error for a data visual without filters")
	}
}
