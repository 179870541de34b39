package stream

import (
	"fmt"
	"time"
)

// Window is a half-open UTC time interval [Start, End) over which a single
// fetch-validate-transform-load pass runs. The half-open predicate stops
// adjacent windows duplicating the shared bound.
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start, end time.Time) Window {
	return Window{Start: start.UTC(), End: end.UTC()}
}

func (w Window) String() string {
	return fmt.Sprintf("[%v, %v)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}
