package rdbms

import (
	"regexp"
	"testing"

	"github.com/cevaris/ordered_map"
	"github.com/sirupsen/logrus"
)

func TestPostgresSqlUpsert(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.Info("Starting tests for SQL UPSERT...")

	omKeys := ordered_map.NewOrderedMap()
	omKeys.Set("datetime_utc", "datetime_utc")
	omCols := ordered_map.NewOrderedMap()
	omCols.Set("gas_mw", "gas_mw")
	omCols.Set("wind_mw", "wind_mw")

	db, _ := NewMockConnectionWithMockTx(log)
	dml := db.GetDmlGenerator()

	o := dml.NewUpsertGenerator(&SqlStatementGeneratorConfig{
		Log:             log,
		OutputSchema:    "",
		OutputTable:     "generation_mix",
		TargetKeyCols:   omKeys,
		TargetOtherCols: omCols,
		UpdateExtra:     "ingested_at = now()"}).(SqlStmtTxtBatcher)

	var batchIsFull bool
	var err error

	// Test 1 - fill a batch of 2 rows.
	o.InitBatch(2)
	batchIsFull, err = o.AddValuesToBatch([]interface{}{"2024-01-01T00:00:00Z", 100.5, 200.0})
	if err != nil {
		t.Fatal(err) // this should not fail here.
	}
	if batchIsFull {
		t.Fatal("The batch should NOT be full yet.")
	}
	batchIsFull, err = o.AddValuesToBatch([]interface{}{"2024-01-01T00:30:00Z", nil, 201.0})
	if err != nil {
		t.Fatal(err) // this should not fail here.
	}
	if !batchIsFull {
		t.Fatal("The batch *should* be full but it is not.")
	}

	// Test 2 - adding beyond the batch size should fail.
	if _, err = o.AddValuesToBatch([]interface{}{"x", 1.0, 2.0}); err == nil {
		t.Fatal("There should have been an error. The batch is already full.")
	}

	// Test 3 - the wrong number of values should fail.
	o.InitBatch(1)
	if _, err = o.AddValuesToBatch([]interface{}{"x", 1.0}); err == nil {
		t.Fatal("There should have been an error. Incorrect number of values deliberately supplied in batch.")
	}

	// Test 4 - the generated SQL for a 2-row batch.
	o.InitBatch(2)
	_, _ = o.AddValuesToBatch([]interface{}{"2024-01-01T00:00:00Z", 100.5, 200.0})
	_, _ = o.AddValuesToBatch([]interface{}{"2024-01-01T00:30:00Z", nil, 201.0})
	const sqlRef = `insert into generation_mix (datetime_utc,gas_mw,wind_mw) values ( $1,$2,$3 ),( $4,$5,$6 ) on conflict (datetime_utc) do update set gas_mw = excluded.gas_mw,wind_mw = excluded.wind_mw,ingested_at = now()`
	re := regexp.MustCompile(`\s+`)
	sqlToTest := re.ReplaceAllString(o.GetStatement(), " ")
	if sqlToTest != re.ReplaceAllString(sqlRef, " ") {
		t.Fatal("Bad SQL UPSERT generated: ", sqlToTest)
	}
	if len(o.GetValues()) != 6 {
		t.Fatal("Error, incorrect number of args: ", o.GetValues())
	}
	if o.GetValues()[4] != nil { // nulls must pass through as args untouched...
		t.Fatal("Error, expected a nil arg to be preserved.")
	}

	// Test 5 - a partial final batch regenerates the VALUES list.
	o.InitBatch(2)
	_, _ = o.AddValuesToBatch([]interface{}{"2024-01-01T01:00:00Z", 1.0, 2.0})
	sqlToTest = re.ReplaceAllString(o.GetStatement(), " ")
	const sqlRefPartial = `insert into generation_mix (datetime_utc,gas_mw,wind_mw) values ( $1,$2,$3 ) on conflict (datetime_utc) do update set gas_mw = excluded.gas_mw,wind_mw = excluded.wind_mw,ingested_at = now()`
	if sqlToTest != re.ReplaceAllString(sqlRefPartial, " ") {
		t.Fatal("Bad SQL UPSERT generated for a partial batch: ", sqlToTest)
	}
	if len(o.GetValues()) != 3 {
		t.Fatal("Error, incorrect number of args for a partial batch: ", o.GetValues())
	}
	log.Info("Testing SQL UPSERT success.")
}
