package config

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/gridmix/gridmix/helper"
	"github.com/gridmix/gridmix/logger"
)

func TestDefaultFieldMap(t *testing.T) {
	m := DefaultFieldMap()
	// 12 MW fields + 5 rollups + 12 shares.
	if m.Len() != 29 {
		t.Fatal("unexpected number of default field map entries: ", m.Len())
	}
	e, ok := m.Lookup("CARBON_INTENSITY")
	if !ok || e.Column != "carbon_intensity_gco2_kwh" || e.Group != GroupRollup {
		t.Fatal("unexpected CARBON_INTENSITY entry: ", e)
	}
	// Ordered column maps used by the upsert generator.
	if m.KeyCols().Len() != 1 {
		t.Fatal("expected a single key column")
	}
	if m.OtherCols().Len() != 29 {
		t.Fatal("expected 29 non-key columns")
	}
	cols := make([]string, m.OtherCols().Len())
	idx := 0
	helper.OrderedMapValuesToStringSlice(m.OtherCols(), &cols, &idx)
	if cols[0] != "gas_mw" {
		t.Fatal("expected the non-key columns to keep mapping order, got ", cols[0])
	}
	// First columns follow mapping order.
	if m.Columns()[0] != "gas_mw" || m.Aliases()[0] != "GAS" {
		t.Fatal("unexpected first mapping entry")
	}
}

func TestLoadFieldMap(t *testing.T) {
	log := logger.NewLogger("gridmix", "info", false)
	dir, err := ioutil.TempDir("", "fieldmap")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	// Test 1 - a valid override replaces the built-in map wholesale.
	p := path.Join(dir, "fieldmap.yaml")
	body := `
- alias: GAS
  column: gas_mw
  group: mw
- alias: SOLAR
  column: solar_mw
  group: mw
`
	if err := ioutil.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadFieldMap(log, p)
	if err != nil {
		t.Fatal("Test 1, unexpected error: ", err)
	}
	if m.Len() != 2 {
		t.Fatal("Test 1, expected 2 entries, got ", m.Len())
	}

	// Test 2 - duplicate aliases are rejected.
	body = `
- alias: GAS
  column: gas_mw
- alias: GAS
  column: gas_again_mw
`
	if err := ioutil.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFieldMap(log, p); err == nil {
		t.Fatal("Test 2, expected an error for duplicate aliases")
	}

	// Test 3 - entries missing a column are rejected.
	body = `
- alias: GAS
`
	if err := ioutil.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFieldMap(log, p); err == nil {
		t.Fatal("Test 3, expected an error for a missing column")
	}

	// Test 4 - a missing file is an error.
	if _, err := LoadFieldMap(log, path.Join(dir, "nope.yaml")); err == nil {
		t.Fatal("Test 4, expected an error for a missing file")
	}
}
