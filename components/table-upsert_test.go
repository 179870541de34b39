package components

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cevaris/ordered_map"

	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/rdbms"
	"github.com/gridmix/gridmix/stream"
)

func upsertTestCols() (keys, others *ordered_map.OrderedMap) {
	keys = ordered_map.NewOrderedMap()
	keys.Set("datetime_utc", "datetime_utc")
	others = ordered_map.NewOrderedMap()
	others.Set("gas_mw", "gas_mw")
	others.Set("wind_mw", "wind_mw")
	return
}

func upsertTestRec(dt time.Time, gas, wind interface{}) stream.Record {
	rec := stream.NewRecord()
	rec.SetData("datetime_utc", dt)
	rec.SetData("gas_mw", gas)
	rec.SetData("wind_mw", wind)
	return rec
}

func TestNewTableUpsert(t *testing.T) {
	log := logger.NewLogger("gridmix", "info", false)
	keys, others := upsertTestCols()
	dt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Test 1 - 3 rows with batch size 2 commit as a full batch then a partial one.
	log.Info("Test 1, batches are exec'd and committed per transaction")
	conn, _ := rdbms.NewMockConnectionWithMockTx(log)
	db := conn.(*rdbms.MockConnectionWithMockTx)
	inputChan := make(chan stream.Record, 5)
	inputChan <- upsertTestRec(dt, 100.5, 200.0)
	inputChan <- upsertTestRec(dt.Add(30*time.Minute), nil, 201.0)
	inputChan <- upsertTestRec(dt.Add(60*time.Minute), 102.0, 202.0)
	close(inputChan)
	waiter := &testWaiter{}
	outputChan, _ := NewTableUpsert(&TableUpsertConfig{
		Log:           log,
		Name:          "test-table-upsert",
		Ctx:           context.Background(),
		InputChan:     inputChan,
		OutputDb:      db,
		ExecBatchSize: 2,
		SqlStatementGeneratorConfig: rdbms.SqlStatementGeneratorConfig{
			Log:             log,
			OutputTable:     "generation_mix",
			TargetKeyCols:   keys,
			TargetOtherCols: others,
			UpdateExtra:     "ingested_at = now()",
		},
		WaitCounter: waiter,
	})
	for range outputChan {
	}
	waiter.wg.Wait()
	sqls := db.ExecSqls()
	if len(sqls) != 2 {
		t.Fatal("Test 1, expected 2 statements, got ", sqls)
	}
	for _, sql := range sqls {
		if !strings.Contains(sql, "on conflict (datetime_utc) do update set") {
			t.Fatal("Test 1, statement is not an upsert: ", sql)
		}
	}
	args := db.ExecArgs()
	if len(args[0]) != 6 || len(args[1]) != 3 {
		t.Fatal("Test 1, unexpected arg counts: ", len(args[0]), len(args[1]))
	}
	if args[0][4] != nil { // the null gas value in row 2 must survive as an arg.
		t.Fatal("Test 1, expected a nil arg, got ", args[0][4])
	}
	if db.Commits != 2 || db.Rollbacks != 0 {
		t.Fatal("Test 1, expected 2 commits and no rollbacks, got ", db.Commits, db.Rollbacks)
	}

	// Test 2 - a failing batch rolls back and panics without undoing earlier commits.
	log.Info("Test 2, a failed batch is atomic")
	conn, _ = rdbms.NewMockConnectionWithMockTx(log)
	db = conn.(*rdbms.MockConnectionWithMockTx)
	db.FailOnExecNumber = 2
	inputChan = make(chan stream.Record, 5)
	inputChan <- upsertTestRec(dt, 100.5, 200.0)
	inputChan <- upsertTestRec(dt.Add(30*time.Minute), 101.0, 201.0)
	inputChan <- upsertTestRec(dt.Add(60*time.Minute), 102.0, 202.0)
	close(inputChan)
	waiter = &testWaiter{}
	panicChan := make(chan interface{}, 1)
	outputChan, _ = NewTableUpsert(&TableUpsertConfig{
		Log:           log,
		Name:          "test-table-upsert",
		Ctx:           context.Background(),
		InputChan:     inputChan,
		OutputDb:      db,
		ExecBatchSize: 2,
		SqlStatementGeneratorConfig: rdbms.SqlStatementGeneratorConfig{
			Log:             log,
			OutputTable:     "generation_mix",
			TargetKeyCols:   keys,
			TargetOtherCols: others,
		},
		WaitCounter: waiter,
		PanicHandlerFn: func() {
			if r := recover(); r != nil {
				panicChan <- r
			}
		},
	})
	r := <-panicChan
	le, ok := r.(*rdbms.LoadError)
	if !ok {
		t.Fatalf("Test 2, expected a *rdbms.LoadError, got %T", r)
	}
	if le.BatchIndex != 1 {
		t.Fatal("Test 2, expected the second batch to fail, got batch ", le.BatchIndex)
	}
	if db.Commits != 1 || db.Rollbacks != 1 {
		t.Fatal("Test 2, expected 1 commit and 1 rollback, got ", db.Commits, db.Rollbacks)
	}
	// Test 3 - re-running the same key converges on the latest values.
	log.Info("Test 3, corrections re-upsert the same key")
	conn, _ = rdbms.NewMockConnectionWithMockTx(log)
	db = conn.(*rdbms.MockConnectionWithMockTx)
	inputChan = make(chan stream.Record, 2)
	inputChan <- upsertTestRec(dt, 999.0, 111.0) // corrected values for a key loaded in Test 1.
	close(inputChan)
	waiter = &testWaiter{}
	outputChan, _ = NewTableUpsert(&TableUpsertConfig{
		Log:           log,
		Name:          "test-table-upsert",
		Ctx:           context.Background(),
		InputChan:     inputChan,
		OutputDb:      db,
		ExecBatchSize: 2,
		SqlStatementGeneratorConfig: rdbms.SqlStatementGeneratorConfig{
			Log:             log,
			OutputTable:     "generation_mix",
			TargetKeyCols:   keys,
			TargetOtherCols: others,
		},
		WaitCounter: waiter,
	})
	for range outputChan {
	}
	waiter.wg.Wait()
	args = db.ExecArgs()
	if len(args) != 1 || args[0][1] != 999.0 || args[0][2] != 111.0 {
		t.Fatal("Test 3, expected the corrected values as args: ", args)
	}
	if !strings.Contains(db.ExecSqls()[0], "gas_mw = excluded.gas_mw") {
		t.Fatal("Test 3, expected the conflict update to overwrite values: ", db.ExecSqls()[0])
	}
}
