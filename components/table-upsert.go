package components

import (
	"context"
	"sync/atomic"

	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/rdbms"
	s "github.com/gridmix/gridmix/stats"
	"github.com/gridmix/gridmix/stream"
)

type TableUpsertConfig struct {
	Log                               logger.Logger
	Name                              string
	Ctx                               context.Context
	InputChan                         chan stream.Record // canonical rows to write to the target table.
	OutputDb                          rdbms.Connector    // target database connection for writes.
	ExecBatchSize                     int                // rows per statement and per transaction.
	Window                            stream.Window      // reported when a batch fails.
	rdbms.SqlStatementGeneratorConfig                    // config for the target database table.
	StepWatcher                       *s.StepWatcher
	WaitCounter                       ComponentWaiter
	PanicHandlerFn                    PanicHandlerFunc
}

// NewTableUpsert writes canonical rows to the target table using multi-row
// INSERT .. ON CONFLICT DO UPDATE statements. Each batch runs in its own
// transaction so a failure discards only that batch: rows already committed
// stay put and the re-run window reported in the failure covers the rest.
func NewTableUpsert(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*TableUpsertConfig)
	if cfg.ExecBatchSize <= 0 {
		cfg.ExecBatchSize = c.DefaultExecBatchSize
	}
	if cfg.OutputDb == nil {
		cfg.Log.Panic(cfg.Name, " error - missing db connection in call to NewTableUpsert.")
	}
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing chan input in call to NewTableUpsert.")
	}
	generator, ok := cfg.OutputDb.GetDmlGenerator().NewUpsertGenerator(&cfg.SqlStatementGeneratorConfig).(rdbms.SqlStmtTxtBatcher)
	if !ok {
		cfg.Log.Panic(cfg.Name, " - batched SQL UPSERT is not supported for this connection")
	}
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	go func() {
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil { // if we have been given a stepWatcher struct that can watch our rowCount...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running")
		needNewBatch := true
		rowsInBatch := 0
		batchIndex := 0
		// Slice to hold values per record in target column order.
		values := make([]interface{}, cfg.TargetKeyCols.Len()+cfg.TargetOtherCols.Len())
		var listIdx int
		flushBatch := func() {
			tx, err := cfg.OutputDb.Begin(cfg.Ctx)
			if err != nil {
				panic(&rdbms.LoadError{Window: cfg.Window, BatchIndex: batchIndex, Err: err})
			}
			if _, err = tx.Exec(cfg.Ctx, generator.GetStatement(), generator.GetValues()...); err != nil {
				_ = tx.Rollback(cfg.Ctx)
				panic(&rdbms.LoadError{Window: cfg.Window, BatchIndex: batchIndex, Err: err})
			}
			if err = tx.Commit(cfg.Ctx); err != nil {
				panic(&rdbms.LoadError{Window: cfg.Window, BatchIndex: batchIndex, Err: err})
			}
			atomic.AddInt64(&rowCount, int64(rowsInBatch)) // count rows only once they are committed.
			cfg.Log.Debug(cfg.Name, " - UPSERT batch ", batchIndex, " committed with ", rowsInBatch, " rows")
			batchIndex++
			rowsInBatch = 0
			needNewBatch = true
		}
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the inputChan was closed...
					cfg.InputChan = nil // disable this case.
				} else { // else process the input rec...
					if needNewBatch { // if we need to start a new batch...
						generator.InitBatch(cfg.ExecBatchSize)
						needNewBatch = false
					}
					listIdx = 0 // reset the list index so the values list is overwritten.
					rec.GetDataByKeys(cfg.TargetKeyCols, &values, &listIdx)
					rec.GetDataByKeys(cfg.TargetOtherCols, &values, &listIdx)
					batchIsFull, err := generator.AddValuesToBatch(values)
					if err != nil {
						cfg.Log.Panic(err)
					}
					rowsInBatch++
					if batchIsFull { // if the batch is full...
						flushBatch()
					}
				}
			case controlAction = <-controlChan: // if we were asked to shutdown...
			}
			if cfg.InputChan == nil || controlAction.Action == Shutdown {
				break
			}
		}
		if controlAction.Action == Shutdown { // if we were asked to shutdown...
			controlAction.ResponseChan <- nil // respond that we're done with a nil error; the pending batch is discarded.
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		if rowsInBatch > 0 { // if we need to exec + commit a final partial batch...
			flushBatch()
			cfg.Log.Debug(cfg.Name, " - final exec + commit for UPSERT complete")
		}
		close(outputChan) // we're done so close the channel we created.
		cfg.Log.Info(cfg.Name, " complete - wrote ", atomic.LoadInt64(&rowCount), " rows")
	}()
	return
}
