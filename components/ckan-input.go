package components

import (
	"context"
	"sync/atomic"

	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/neso"
	s "github.com/gridmix/gridmix/stats"
	"github.com/gridmix/gridmix/stream"
)

// PageFetcher is the upstream contract required by NewCkanInput so tests can
// supply a fake instead of a live CKAN endpoint.
type PageFetcher interface {
	FetchPage(ctx context.Context, w stream.Window, columns []string, limit int, offset int) (*neso.Page, error)
}

type CkanInputConfig struct {
	Log            logger.Logger
	Name           string
	Ctx            context.Context
	Fetcher        PageFetcher
	Window         stream.Window
	Columns        []string // optional column projection; empty means select all.
	PageSize       int
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewCkanInput fetches every page of the configured window and produces one
// raw upstream record per row onto the output channel. Pagination is complete
// when a page comes back empty, short, or the reported total is reached.
// Fetch failures panic with the underlying error for the panic handler to
// capture.
func NewCkanInput(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*CkanInputConfig)
	if cfg.Fetcher == nil {
		cfg.Log.Panic(cfg.Name, " error - missing fetcher in call to NewCkanInput.")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = c.DefaultPageSize
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
		if cfg.StepWatcher != nil { // if we have been given a StepWatcher struct that can watch our rowCount and output channel length...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running for window ", cfg.Window)
		offset := 0
		for { // for each page of upstream data...
			page, err := cfg.Fetcher.FetchPage(cfg.Ctx, cfg.Window, cfg.Columns, cfg.PageSize, offset)
			if err != nil {
				panic(err)
			}
			for _, rawRec := range page.Records { // for each row in the page...
				rec := stream.NewRecordFromMap(rawRec)
				if rowSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
					cfg.Log.Info(cfg.Name, " shutdown")
					return
				}
				atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
			}
			offset += len(page.Records)
			if len(page.Records) == 0 || len(page.Records) < cfg.PageSize { // if the page was empty or short then there is no more data...
				break
			}
			if page.HasTotal && offset >= page.Total { // if upstream told us the total and we have it all...
				break
			}
			// Check for shutdown requests between pages.
			select {
			case controlAction := <-controlChan: // if we have been asked to shutdown...
				controlAction.ResponseChan <- nil
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			default: // else we can continue...
			}
		}
		close(outputChan) // end gracefully; tell downstream components that we're done.
		cfg.Log.Info(cfg.Name, " complete - fetched ", atomic.LoadInt64(&rowCount), " rows")
	}()
	return
}
