package components

import (
	"sync/atomic"

	"github.com/gridmix/gridmix/config"
	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/helper"
	"github.com/gridmix/gridmix/logger"
	s "github.com/gridmix/gridmix/stats"
	"github.com/gridmix/gridmix/stream"
)

type FieldMapperConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	FieldMap       *config.FieldMap
	Rejections     *s.Rejections
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewFieldMapper converts validated upstream records into canonical rows ready
// to write: the parsed timestamp plus one value per mapped column. Values that
// do not coerce to a number become nil so upstream nulls and blanks land as
// SQL NULL rather than zero. A defect while mapping one record rejects that
// record only; the rest of the stream continues.
func NewFieldMapper(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*FieldMapperConfig)
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing chan input in call to NewFieldMapper.")
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
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running")
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else { // else we have input to process...
					mapped, ok := mapRecord(cfg, rec)
					if !ok { // if this one record was defective...
						if cfg.Rejections != nil {
							cfg.Rejections.Add(RejectReasonTransformDefect)
						}
						continue
					}
					if rowSentOK := safeSend(mapped, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
					atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
				}
			case controlAction = <-controlChan: // if we were asked to shutdown...
			}
			if cfg.InputChan == nil || controlAction.Action == Shutdown {
				break
			}
		}
		if controlAction.Action == Shutdown { // if we were asked to shutdown...
			controlAction.ResponseChan <- nil
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}

// mapRecord builds the canonical row for one record, recovering from any
// defect so a single bad record cannot abort the stream.
func mapRecord(cfg *FieldMapperConfig, rec stream.Record) (mapped stream.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil { // if mapping this record blew up...
			cfg.Log.Error(cfg.Name, " defect mapping record: ", r, "; record: ", rec.GetDataMap())
			ok = false
		}
	}()
	mapped = stream.NewRecord()
	mapped.SetData(c.ColumnDatetimeUtc, rec.GetData(c.ColumnDatetimeUtc)) // set by the validator; panics if absent.
	for _, entry := range cfg.FieldMap.Entries() {
		raw, _ := rec.GetDataOk(entry.Alias)
		if f := helper.FloatFromInterface(raw); f != nil {
			mapped.SetData(entry.Column, *f)
		} else {
			mapped.SetData(entry.Column, nil)
		}
	}
	return mapped, true
}
