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

// Rejection reasons reported against the run summary.
const (
	RejectReasonMissingDatetime = "missing-datetime"
	RejectReasonBadDatetime     = "unparseable-datetime"
	RejectReasonNoNumericValues = "no-numeric-values"
	RejectReasonTransformDefect = "transform-defect"
)

type RecordValidatorConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	FieldMap       *config.FieldMap
	Rejections     *s.Rejections
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewRecordValidator checks each raw upstream record and passes through only
// those worth loading: the record must carry a parseable DATETIME and at least
// one mapped value that coerces to a number. Anything else is counted against
// the run summary with a reason and dropped without stopping the run. Accepted
// records gain the parsed UTC timestamp for downstream steps.
func NewRecordValidator(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*RecordValidatorConfig)
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing chan input in call to NewRecordValidator.")
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
					if reason, ok := validateRecord(cfg, &rec); !ok { // if the record is not loadable...
						cfg.reject(rec, reason)
						continue
					}
					if rowSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
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

// validateRecord checks one raw record and stores the parsed UTC timestamp on
// success.
func validateRecord(cfg *RecordValidatorConfig, rec *stream.Record) (reason string, ok bool) {
	raw, found := rec.GetDataOk(c.UpstreamDatetimeField)
	if !found || raw == nil {
		return RejectReasonMissingDatetime, false
	}
	dt, err := helper.ParseUtcTime(raw)
	if err != nil {
		return RejectReasonBadDatetime, false
	}
	// At least one mapped alias must coerce to a number, else the row carries
	// nothing worth writing.
	haveNumeric := false
	for _, alias := range cfg.FieldMap.Aliases() {
		if v, found := rec.GetDataOk(alias); found {
			if helper.FloatFromInterface(v) != nil {
				haveNumeric = true
				break
			}
		}
	}
	if !haveNumeric {
		return RejectReasonNoNumericValues, false
	}
	rec.SetData(c.ColumnDatetimeUtc, dt)
	return "", true
}

func (cfg *RecordValidatorConfig) reject(rec stream.Record, reason string) {
	if cfg.Rejections != nil {
		cfg.Rejections.Add(reason)
	}
	cfg.Log.Warn(cfg.Name, " rejected record (", reason, "): ", rec.GetDataMap())
}
