package actions

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gridmix/gridmix/components"
	"github.com/gridmix/gridmix/config"
	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/helper"
	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/neso"
	"github.com/gridmix/gridmix/rdbms"
	"github.com/gridmix/gridmix/stats"
	"github.com/gridmix/gridmix/stream"
)

// RunIngest fetches the configured range from the upstream CKAN datastore and
// upserts it into Postgres, one window at a time. The run summary is printed
// whatever the outcome; on failure it names the window to re-run.
func RunIngest(cfg *RunConfig) (err error) {
	log := logger.NewLogger("gridmix", cfg.LogLevel, cfg.StackDumpOnPanic)
	summary := stats.NewRunSummary()
	summary.Status = stats.RunStatusRunning
	defer func() { // the summary is always reported, even when setup fails.
		summary.Rejected = summary.Rejections.Total()
		if err != nil {
			summary.Status = stats.RunStatusFailed
		} else {
			summary.Status = stats.RunStatusSucceeded
		}
		fmt.Println(summary.String())
	}()
	if err = helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	appCfg := config.Load(log)
	if err = appCfg.RequireDsn(); err != nil {
		return err
	}
	fm, err := config.FieldMapForConfig(log, appCfg)
	if err != nil {
		return err
	}
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	stopTrap := trapSignals(log, cancelFunc)
	defer stopTrap()
	db, err := rdbms.NewPgConnection(ctx, log, appCfg.DbDsn)
	if err != nil {
		return err
	}
	defer db.Close()
	client := neso.NewClient(log, appCfg.NesoBaseApi, appCfg.NesoResourceId)
	loadRange, err := resolveRange(ctx, log, cfg, db, time.Now())
	if err != nil {
		return err
	}
	windows := splitWindows(loadRange)
	summary.Windows = len(windows)
	log.Info("run ", summary.RunId, " loading ", loadRange, " in ", len(windows), " window(s)")
	for _, w := range windows { // for each sub-window, oldest first...
		if err = ctx.Err(); err != nil { // if we were interrupted between windows...
			summary.FailedWindow = w
			break
		}
		if err = runWindow(ctx, log, cfg, db, client, fm, w, summary); err != nil {
			summary.FailedWindow = w
			break
		}
	}
	return err
}

// runWindow wires the component pipeline for one window and blocks until it
// drains or a component fails. A component failure shuts the others down and
// surfaces the recovered error.
func runWindow(ctx context.Context,
	log logger.Logger,
	cfg *RunConfig,
	db rdbms.Connector,
	fetcher components.PageFetcher,
	fm *config.FieldMap,
	w stream.Window,
	summary *stats.RunSummary,
) error {
	log.Info("processing window ", w)
	errChan := make(chan error, 4)
	once := sync.Once{}
	panicHandlerFn := func() {
		if r := recover(); r != nil { // if a component panicked...
			once.Do(func() { errChan <- errorFromPanic(r) }) // report the first failure only.
		}
	}
	waiter := &componentWaiter{}
	fetchWatcher := stats.NewStepWatcher(log, "fetch")
	validateWatcher := stats.NewStepWatcher(log, "validate")
	upsertWatcher := stats.NewStepWatcher(log, "upsert")
	fetchChan, fetchControl := components.NewCkanInput(&components.CkanInputConfig{
		Log:            log,
		Name:           "ckan-input",
		Ctx:            ctx,
		Fetcher:        fetcher,
		Window:         w,
		PageSize:       cfg.PageSize,
		StepWatcher:    fetchWatcher,
		WaitCounter:    waiter,
		PanicHandlerFn: panicHandlerFn,
	})
	validChan, validControl := components.NewRecordValidator(&components.RecordValidatorConfig{
		Log:            log,
		Name:           "record-validator",
		InputChan:      fetchChan,
		FieldMap:       fm,
		Rejections:     summary.Rejections,
		StepWatcher:    validateWatcher,
		WaitCounter:    waiter,
		PanicHandlerFn: panicHandlerFn,
	})
	mappedChan, mapControl := components.NewFieldMapper(&components.FieldMapperConfig{
		Log:            log,
		Name:           "field-mapper",
		InputChan:      validChan,
		FieldMap:       fm,
		Rejections:     summary.Rejections,
		WaitCounter:    waiter,
		PanicHandlerFn: panicHandlerFn,
	})
	outChan, upsertControl := components.NewTableUpsert(&components.TableUpsertConfig{
		Log:           log,
		Name:          "table-upsert",
		Ctx:           ctx,
		InputChan:     mappedChan,
		OutputDb:      db,
		ExecBatchSize: cfg.BatchSize,
		Window:        w,
		SqlStatementGeneratorConfig: rdbms.SqlStatementGeneratorConfig{
			Log:             log,
			OutputTable:     c.TableGenerationMix,
			TargetKeyCols:   fm.KeyCols(),
			TargetOtherCols: fm.OtherCols(),
			UpdateExtra:     c.ColumnIngestedAt + " = now()",
		},
		StepWatcher:    upsertWatcher,
		WaitCounter:    waiter,
		PanicHandlerFn: panicHandlerFn,
	})
	controlChans := []chan components.ControlAction{fetchControl, validControl, mapControl, upsertControl}
	doneChan := make(chan struct{})
	quitChan := make(chan struct{})
	go func() {
		for { // drain until the last component completes or the window is abandoned...
			select {
			case _, ok := <-outChan:
				if !ok { // if the last component closed its output cleanly...
					waiter.wg.Wait()
					close(doneChan)
					return
				}
			case <-quitChan: // the output chan never closes on failure...
				return
			}
		}
	}()
	var result error
	select {
	case result = <-errChan: // if a component failed...
		shutdownComponents(log, controlChans) // stop the survivors; the pending batch is discarded.
		close(quitChan)                       // release the drain goroutine.
	case <-doneChan: // else the window drained cleanly...
		select { // a failure may still have landed as the last component exited...
		case result = <-errChan:
		default:
		}
	}
	summary.Fetched += fetchWatcher.TotalRows()
	summary.Accepted += validateWatcher.TotalRows()
	summary.Written += upsertWatcher.TotalRows()
	return result
}

// componentWaiter wraps a WaitGroup for use as a components.ComponentWaiter.
type componentWaiter struct {
	wg sync.WaitGroup
}

func (w *componentWaiter) Add()  { w.wg.Add(1) }
func (w *componentWaiter) Done() { w.wg.Done() }

// errorFromPanic converts recovered panic values into errors. Components panic
// with real error types; logger.Panic produces a *logrus.Entry.
func errorFromPanic(r interface{}) error {
	switch x := r.(type) {
	case error:
		return x
	case *logrus.Entry:
		return errors.New(x.Message)
	default:
		return errors.Errorf("%v", r)
	}
}

// shutdownComponents asks every component to stop and waits briefly for the
// confirmations. Components that already exited leave their buffered control
// send unanswered, hence the timeout.
func shutdownComponents(log logger.Logger, controlChans []chan components.ControlAction) {
	responseChans := make([]chan error, 0, len(controlChans))
	for _, controlChan := range controlChans {
		responseChan := make(chan error, 1)
		select {
		case controlChan <- components.ControlAction{Action: components.Shutdown, ResponseChan: responseChan}:
			responseChans = append(responseChans, responseChan)
		default: // the component is already being shut down...
		}
	}
	timeout := time.After(5 * time.Second)
	for _, responseChan := range responseChans {
		select {
		case <-responseChan:
		case <-timeout:
			log.Warn("timed out waiting for component shutdown")
			return
		}
	}
}

// trapSignals cancels the run context on CTRL-C or SIGTERM. The returned func
// releases the signal handler.
func trapSignals(log logger.Logger, cancelFunc context.CancelFunc) (stop func()) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	doneChan := make(chan struct{})
	go func() {
		select {
		case x := <-sigChan:
			fmt.Println()                   // add new line char for clean CLI look n feel.
			log.Info("Caught ", x.String()) // log the interrupt.
			cancelFunc()
		case <-doneChan:
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(doneChan)
	}
}
