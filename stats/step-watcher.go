package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	c "github.com/gridmix/gridmix/constants"
	h "github.com/gridmix/gridmix/helper"
	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/stream"
)

// StepWatcher saves row-count stats for a given pipeline step periodically.
// The step calls StartWatching() and StopWatching() around its main loop.
type StepWatcher struct {
	log           logger.Logger
	stepName      string
	rowCountPtr   *int64 // ptr to rowCount held in a given step for which we are capturing stats.
	chanPtr       *chan stream.Record
	startTime     time.Time
	totalRows     int64
	priorRowCount int64     // allows us to calculate delta rows per sec between ticker timeout.
	priorTime     time.Time // allows us to calculate delta rows per sec between ticker timeout.
	rowsPerSecAvg int64
	ticker        *time.Ticker
	tickerDone    chan struct{}
	isRunning     h.AtomBool
}

type Stats struct {
	StepName           string `json:"stepName"`
	StatusText         string `json:"statusText"`
	ElapsedTimeSec     int    `json:"elapsedTimeSec"`
	TotalRowsProcessed int    `json:"totalRowsProcessed"`
	RowsPerSecondAvg   int    `json:"rowsPerSecondAvg"`
}

func NewStepWatcher(log logger.Logger, stepName string) *StepWatcher {
	return &StepWatcher{log: log, stepName: stepName, tickerDone: make(chan struct{})}
}

func (n *StepWatcher) StartWatching(rowCountPtr *int64, chanPtr *chan stream.Record) {
	n.rowCountPtr = rowCountPtr
	n.chanPtr = chanPtr
	n.startTime = time.Now()
	n.priorTime = n.startTime
	n.isRunning.Set(true)
	n.totalRows = 0
	n.CalculateStats()
	// Calculate stats periodically on ticker timeout.
	n.ticker = time.NewTicker(time.Second * c.StatsCaptureFrequencySeconds)
	go func() {
		for {
			select {
			case <-n.ticker.C:
				n.CalculateStats()
			case <-n.tickerDone:
				return
			}
		}
	}()
}

func (n *StepWatcher) StopWatching() {
	n.ticker.Stop()
	n.tickerDone <- struct{}{} // stop the goroutine that calculates stats.
	n.CalculateStats()         // force final stats calculation.
	n.isRunning.Set(false)
	n.log.Info(n.RenderStats().String()) // report final step stats.
}

func (n *StepWatcher) CalculateStats() {
	deltaTime := int64(time.Since(n.priorTime).Seconds())
	if deltaTime < 1 { // if we will cause divide by 0 error...
		deltaTime = 1
	}
	rowCount := atomic.AddInt64(n.rowCountPtr, 0)
	deltaRowCount := rowCount - atomic.AddInt64(&n.priorRowCount, 0)
	n.log.Debug("STATS: ", n.stepName, " processing ", deltaRowCount/deltaTime, " rows per sec")
	atomic.StoreInt64(&n.priorRowCount, rowCount)
	n.priorTime = time.Now()
	// Use the delta row count to calculate the total as steps may repeat themselves.
	atomic.AddInt64(&n.totalRows, deltaRowCount)
	atomic.StoreInt64(&n.rowsPerSecAvg,
		atomic.AddInt64(&n.totalRows, 0)/getNumSecondsSinceTimeOrOne(n.startTime))
}

// TotalRows returns the number of rows processed so far by the watched step.
func (n *StepWatcher) TotalRows() int64 {
	return atomic.AddInt64(&n.totalRows, 0)
}

// RenderStats gets a struct filled with stats at the point of time it is called.
func (n *StepWatcher) RenderStats() Stats {
	statusText := "complete"
	if n.isRunning.Get() {
		statusText = "running"
	}
	return Stats{
		StepName:           n.stepName,
		StatusText:         statusText,
		ElapsedTimeSec:     int(time.Since(n.startTime).Seconds()),
		TotalRowsProcessed: int(atomic.AddInt64(&n.totalRows, 0)),
		RowsPerSecondAvg:   int(atomic.AddInt64(&n.rowsPerSecAvg, 0)),
	}
}

// String will format the stats for general logging.
func (s Stats) String() string {
	return fmt.Sprintf(
		"Stats for %v %v totalRowsProcessed=%v elapsedTimeSec=%v rowsPerSecondAvg=%v",
		s.StepName, s.StatusText, s.TotalRowsProcessed, s.ElapsedTimeSec, s.RowsPerSecondAvg,
	)
}

func getNumSecondsSinceTimeOrOne(t time.Time) (seconds int64) {
	seconds = int64(time.Since(t).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return
}
