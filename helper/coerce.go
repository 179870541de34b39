package helper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/gridmix/gridmix/constants"
)

// FloatFromInterface converts a raw upstream value to a *float64.
// Blanks, nil and values that won't coerce all come back as nil, since the
// dataset uses empty strings for missing measurements and null must never
// become zero.
func FloatFromInterface(v interface{}) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return &x
	case float32:
		f := float64(x)
		return &f
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil { // any non-numeric garbage is treated as missing...
			return nil
		}
		return &f
	default:
		return nil
	}
}

// ParseUtcTime parses an upstream DATETIME value into an aware UTC time.
// The datastore returns values like "2024-01-01T00:30:00"; RFC3339 variants
// with an explicit zone are also accepted and normalised to UTC.
func ParseUtcTime(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("timestamp value %v is not a string", v)
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(constants.TimeFormatCkan, s); err == nil {
		return t.UTC(), nil // no zone component so the value is already UTC.
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", s)
}

// OrderedMapValuesToStringSlice builds a list of values found in ordered map 'm'.
// Output - this function modifies the supplied list 'l' and 'idx' by reference.
func OrderedMapValuesToStringSlice(m *om.OrderedMap, l *[]string, idx *int) {
	iter := m.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		(*l)[*idx] = kv.Value.(string)
		*idx++
	}
}

// StringSliceToOrderedMap adds each value in s to an ordered map with key and value set to the value in s.
func StringSliceToOrderedMap(s []string) *om.OrderedMap {
	retval := om.NewOrderedMap()
	for _, v := range s {
		retval.Set(v, v)
	}
	return retval
}
