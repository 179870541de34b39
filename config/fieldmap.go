package config

import (
	"fmt"
	"io/ioutil"

	om "github.com/cevaris/ordered_map"
	"github.com/ghodss/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/helper"
	"github.com/gridmix/gridmix/logger"
)

// Field groups as published upstream.
const (
	GroupMw     = "mw"     // absolute output in megawatts
	GroupPct    = "pct"    // share of total generation at the timestamp
	GroupRollup = "rollup" // aggregate rollups and the carbon intensity metric
)

// FieldMapEntry maps one upstream field name to its canonical warehouse column.
// Every mapped column defaults to null when the upstream value is absent or
// won't coerce, so schema drift upstream is a config change, not a code change.
type FieldMapEntry struct {
	Alias  string `json:"alias"`
	Column string `json:"column"`
	Group  string `json:"group"`
}

// FieldMap is the ordered raw-to-canonical column mapping used by the
// validator, the field mapper and the upsert statement generator.
type FieldMap struct {
	entries []FieldMapEntry
	byAlias map[string]FieldMapEntry
}

func NewFieldMap(entries []FieldMapEntry) (*FieldMap, error) {
	m := &FieldMap{entries: entries, byAlias: make(map[string]FieldMapEntry, len(entries))}
	for _, e := range entries {
		if e.Alias == "" || e.Column == "" {
			return nil, fmt.Errorf("field map entry is missing an alias or column: %+v", e)
		}
		if _, ok := m.byAlias[e.Alias]; ok {
			return nil, fmt.Errorf("duplicate field map alias %q", e.Alias)
		}
		m.byAlias[e.Alias] = e
	}
	return m, nil
}

// DefaultFieldMap returns the built-in mapping for the Historic GB Generation
// Mix datastore table.
func DefaultFieldMap() *FieldMap {
	m, err := NewFieldMap([]FieldMapEntry{
		// Absolute outputs (MW)
		{Alias: "GAS", Column: "gas_mw", Group: GroupMw},
		{Alias: "COAL", Column: "coal_mw", Group: GroupMw},
		{Alias: "NUCLEAR", Column: "nuclear_mw", Group: GroupMw},
		{Alias: "WIND", Column: "wind_mw", Group: GroupMw},
		{Alias: "WIND_EMB", Column: "wind_emb_mw", Group: GroupMw},
		{Alias: "HYDRO", Column: "hydro_mw", Group: GroupMw},
		{Alias: "IMPORTS", Column: "imports_mw", Group: GroupMw},
		{Alias: "BIOMASS", Column: "biomass_mw", Group: GroupMw},
		{Alias: "OTHER", Column: "other_mw", Group: GroupMw},
		{Alias: "SOLAR", Column: "solar_mw", Group: GroupMw},
		{Alias: "STORAGE", Column: "storage_mw", Group: GroupMw},
		{Alias: "GENERATION", Column: "generation_mw", Group: GroupMw},
		// Rollups and the carbon intensity metric (as provided upstream)
		{Alias: "CARBON_INTENSITY", Column: "carbon_intensity_gco2_kwh", Group: GroupRollup},
		{Alias: "LOW_CARBON", Column: "low_carbon_mw", Group: GroupRollup},
		{Alias: "ZERO_CARBON", Column: "zero_carbon_mw", Group: GroupRollup},
		{Alias: "RENEWABLE", Column: "renewable_mw", Group: GroupRollup},
		{Alias: "FOSSIL", Column: "fossil_mw", Group: GroupRollup},
		// Mix shares (% of total generation at the timestamp)
		{Alias: "GAS_perc", Column: "gas_pct", Group: GroupPct},
		{Alias: "COAL_perc", Column: "coal_pct", Group: GroupPct},
		{Alias: "NUCLEAR_perc", Column: "nuclear_pct", Group: GroupPct},
		{Alias: "WIND_perc", Column: "wind_pct", Group: GroupPct},
		{Alias: "WIND_EMB_perc", Column: "wind_emb_pct", Group: GroupPct},
		{Alias: "HYDRO_perc", Column: "hydro_pct", Group: GroupPct},
		{Alias: "IMPORTS_perc", Column: "imports_pct", Group: GroupPct},
		{Alias: "BIOMASS_perc", Column: "biomass_pct", Group: GroupPct},
		{Alias: "OTHER_perc", Column: "other_pct", Group: GroupPct},
		{Alias: "SOLAR_perc", Column: "solar_pct", Group: GroupPct},
		{Alias: "STORAGE_perc", Column: "storage_pct", Group: GroupPct},
		{Alias: "GENERATION_perc", Column: "generation_pct", Group: GroupPct},
	})
	if err != nil { // the built-in map is fixed so this cannot happen.
		panic(err)
	}
	return m
}

// LoadFieldMap reads a YAML override of the field map from path.
// The file is a list of {alias, column, group} entries; it replaces the
// built-in map wholesale so an operator controls exactly what is ingested.
func LoadFieldMap(log logger.Logger, path string) (*FieldMap, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read field map file %v", path)
	}
	var raw []map[string]interface{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrapf(err, "unable to parse field map file %v", path)
	}
	entries := make([]FieldMapEntry, len(raw))
	for idx := range raw { // for each mapping entry in the file...
		if err := mapstructure.Decode(raw[idx], &entries[idx]); err != nil {
			return nil, errors.Wrapf(err, "bad field map entry %v in %v", idx, path)
		}
	}
	m, err := NewFieldMap(entries)
	if err != nil {
		return nil, errors.Wrapf(err, "bad field map file %v", path)
	}
	log.Info("loaded field map override from ", path, " with ", len(entries), " entries")
	return m, nil
}

// FieldMapForConfig loads the override named by cfg, else the built-in map.
func FieldMapForConfig(log logger.Logger, cfg *Config) (*FieldMap, error) {
	if cfg.FieldMapFile != "" {
		return LoadFieldMap(log, cfg.FieldMapFile)
	}
	return DefaultFieldMap(), nil
}

func (m *FieldMap) Entries() []FieldMapEntry {
	return m.entries
}

func (m *FieldMap) Len() int {
	return len(m.entries)
}

// Aliases returns the upstream field names in mapping order.
func (m *FieldMap) Aliases() []string {
	out := make([]string, len(m.entries))
	for idx := range m.entries {
		out[idx] = m.entries[idx].Alias
	}
	return out
}

// Columns returns the canonical column names in mapping order, excluding the
// key and ingestion metadata columns.
func (m *FieldMap) Columns() []string {
	out := make([]string, len(m.entries))
	for idx := range m.entries {
		out[idx] = m.entries[idx].Column
	}
	return out
}

// Lookup returns the entry for an upstream alias.
func (m *FieldMap) Lookup(alias string) (FieldMapEntry, bool) {
	e, ok := m.byAlias[alias]
	return e, ok
}

// KeyCols returns the natural key columns as an ordered map for the upsert
// statement generator.
func (m *FieldMap) KeyCols() *om.OrderedMap {
	return helper.StringSliceToOrderedMap([]string{c.ColumnDatetimeUtc})
}

// OtherCols returns every non-key measurement column as an ordered map, in
// mapping order, for the upsert statement generator.
func (m *FieldMap) OtherCols() *om.OrderedMap {
	return helper.StringSliceToOrderedMap(m.Columns())
}

// Yaml renders the mapping for the fieldmap CLI command.
func (m *FieldMap) Yaml() ([]byte, error) {
	return yaml.Marshal(m.entries)
}
