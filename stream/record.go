package stream

import (
	"fmt"

	om "github.com/cevaris/ordered_map"
)

// NewRecord creates a new Record and returns it by value as we expect these records to go over
// channels by value too.
func NewRecord() Record {
	return Record{
		data: make(map[string]interface{}),
	}
}

// NewRecordFromMap wraps an existing raw map, e.g. one page row as decoded from upstream JSON.
func NewRecordFromMap(m map[string]interface{}) Record {
	return Record{data: m}
}

func NewNilRecord() Record {
	return Record{}
}

// Record is used to communicate data between pipeline components.
// Values can represent null database values as nil interfaces.
type Record struct {
	data map[string]interface{}
}

func (sr Record) RecordIsNil() bool {
	return sr.data == nil
}

func (sr Record) SetData(name string, value interface{}) {
	sr.data[name] = value
}

func (sr Record) GetData(name string) interface{} {
	val, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("Invalid key name %q supplied while trying to fetch value from record: %v", name, sr.data))
	}
	return val
}

// GetDataOk fetches a value without panicking for missing keys.
func (sr Record) GetDataOk(name string) (interface{}, bool) {
	val, ok := sr.data[name]
	return val, ok
}

func (sr Record) GetDataMap() map[string]interface{} {
	return sr.data
}

func (sr Record) GetDataLen() int {
	return len(sr.data)
}

// GetDataByKeys saves into values the record values for each column named in the
// ordered map keys, preserving the map's order. Missing keys panic as that means
// a component upstream broke the canonical row contract.
// Output - this function modifies the supplied values and idx by reference.
func (sr Record) GetDataByKeys(keys *om.OrderedMap, values *[]interface{}, idx *int) {
	iter := keys.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		(*values)[*idx] = sr.GetData(kv.Value.(string))
		*idx++
	}
}
