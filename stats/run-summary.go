package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridmix/gridmix/stream"
	"github.com/rs/xid"
)

// Rejections counts validation rejections per reason.
// Rejections never fail a run; they are reported in the run summary.
type Rejections struct {
	mu    sync.Mutex
	m     map[string]int64
	total int64
}

func NewRejections() *Rejections {
	return &Rejections{m: make(map[string]int64)}
}

func (r *Rejections) Add(reason string) {
	r.mu.Lock()
	r.m[reason]++
	r.mu.Unlock()
	atomic.AddInt64(&r.total, 1)
}

func (r *Rejections) Total() int64 {
	return atomic.AddInt64(&r.total, 0)
}

// Reasons returns a copy of the per-reason counts.
func (r *Rejections) Reasons() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out
}

// Run status values reported by RunSummary.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunSummary aggregates the per-step counters for one orchestration pass.
// A summary is always reported, whatever the outcome, so an operator can see
// fetched/accepted/rejected/written counts and the window that needs a re-run
// after a failure.
type RunSummary struct {
	RunId        string
	Status       string
	Fetched      int64
	Accepted     int64
	Rejected     int64
	Written      int64
	Windows      int
	FailedWindow stream.Window // zero unless Status is failed
	Rejections   *Rejections
	startTime    time.Time
}

func NewRunSummary() *RunSummary {
	return &RunSummary{
		RunId:      xid.New().String(),
		Status:     RunStatusPending,
		Rejections: NewRejections(),
		startTime:  time.Now(),
	}
}

func (s *RunSummary) String() string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf(
		"Run %v %v: windows=%v fetched=%v accepted=%v rejected=%v written=%v elapsedSec=%v",
		s.RunId, s.Status, s.Windows, s.Fetched, s.Accepted, s.Rejected, s.Written,
		int(time.Since(s.startTime).Seconds()),
	))
	reasons := s.Rejections.Reasons()
	if len(reasons) > 0 {
		keys := make([]string, 0, len(reasons))
		for k := range reasons {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" reject[%v]=%v", k, reasons[k]))
		}
	}
	if !s.FailedWindow.IsZero() {
		b.WriteString(fmt.Sprintf(" rerunWindow=%v", s.FailedWindow))
	}
	return b.String()
}
