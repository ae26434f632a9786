package rewrite

import (
	"testing"
)

const slicerConfig = `{"singleVisual":{"visualType":"slicer",` +
	`"objects":{"data":[{"properties":{` +
	`"isInvertedSelectionMode":{"expr":{"Literal":{"Value":"true"}}},` +
	`"mode":{"expr":{"Literal":{"Value":"'Basic'"}}}}}]}}}`

func TestResetSlicerClearsInvertedSelection(t *testing.T) {
	lay := visualLayout(t, slicerConfig, "", "", "")
	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	changed, err := v.ResetSlicer()
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected the slicer to be reset")
	}

	cfg, _ := lay.VisualOption(0, 0, "config")
	props := cfg.Get("singleVisual.objects.data.0.properties")
	if props.Get("isInvertedSelectionMode").Exists() {
		t.Error("inverted selection marker survived")
	}
	if !props.Get("mode").Exists() {
		t.Error("sibling property lost")
	}
}

func TestResetSlicerKeepsExplicitSelection(t *testing.T) {
	cfg := `{"singleVisual":{"visualType":"slicer",` +
		`"objects":{"data":[{"properties":{"isInvertedSelectionMode":{"expr":{"Literal":{"Value":"true"}}}}}],` +
		`"general":[{"properties":{"filter":{"whatever":true}}}]}}}`
	lay := visualLayout(t, cfg, "", "", "")
	before := lay.Raw()

	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := v.ResetSlicer()
	if err != nil {
		t.Fatal(err)
	}
	if changed || lay.Raw() != before {
		t.Error("slicer with a user-defined filter must not be reset")
	}
}

func TestResetSlicerIgnoresOtherVisuals(t *testing.T) {
	lay := visualLayout(t, `{"singleVisual":{"visualType":"barChart"}}`, "", "", "")
	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := v.ResetSlicer()
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("non-slicer visual reported a reset")
	}
}

func TestResetSlicerWithoutMarkerIsNoop(t *testing.T) {
	cfg := `{"singleVisual":{"visualType":"slicer","objects":{"data":[{"properties":{}}]}}}`
	lay := visualLayout(t, cfg, "", "", "")
	before := lay.Raw()

	v, err := NewVisual(lay, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := v.ResetSlicer()
	if err != nil {
		t.Fatal(err)
	}
	if changed || lay.Raw() != before {
		t.Error("slicer without the marker must stay untouched")
	}
}
