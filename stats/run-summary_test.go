package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/gridmix/gridmix/stream"
)

func TestRunSummary(t *testing.T) {
	s := NewRunSummary()
	if s.RunId == "" {
		t.Fatal("expected a run id")
	}
	if s.Status != RunStatusPending {
		t.Fatal("expected a new summary to be pending")
	}

	s.Status = RunStatusFailed
	s.Fetched = 10
	s.Accepted = 9
	s.Rejected = 1
	s.Written = 9
	s.Windows = 2
	s.Rejections.Add("bad timestamp")
	s.FailedWindow = stream.NewWindow(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	)

	out := s.String()
	for _, want := range []string{
		"failed", "fetched=10", "accepted=9", "rejected=1", "written=9",
		"reject[bad timestamp]=1", "rerunWindow=[2024-01-01T00:00:00Z, 2024-02-01T00:00:00Z)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary %q is missing %q", out, want)
		}
	}
}

func TestRejections(t *testing.T) {
	r := NewRejections()
	r.Add("a")
	r.Add("a")
	r.Add("b")
	if r.Total() != 3 {
		t.Fatal("expected total 3, got ", r.Total())
	}
	m := r.Reasons()
	if m["a"] != 2 || m["b"] != 1 {
		t.Fatal("unexpected reason counts: ", m)
	}
}
