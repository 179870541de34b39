package actions

import (
	"context"
	"time"

	"github.com/pkg/errors"

	c "github.com/gridmix/gridmix/constants"
	"github.com/gridmix/gridmix/helper"
	"github.com/gridmix/gridmix/logger"
	"github.com/gridmix/gridmix/rdbms"
	"github.com/gridmix/gridmix/stream"
)

// resolveRange computes the half-open load range for one run.
// Upstream publishes half-hourly rows a little behind the clock, so the upper
// bound is the current hour plus a short cushion. The lower bound comes from
// the newest loaded row minus the overlap so late upstream corrections are
// re-fetched, unless the caller pins it with an explicit start date or turns
// incremental resolution off.
func resolveRange(ctx context.Context, log logger.Logger, cfg *RunConfig, db rdbms.Connector, now time.Time) (stream.Window, error) {
	now = now.UTC().Truncate(time.Hour)
	end := now.Add(c.DefaultEndCushionMins * time.Minute)
	if cfg.EndDate != "" {
		t, err := helper.ParseUtcTime(cfg.EndDate)
		if err != nil {
			return stream.Window{}, errors.Wrapf(err, "bad end date %q", cfg.EndDate)
		}
		end = t
	}
	var start time.Time
	switch {
	case cfg.StartDate != "":
		t, err := helper.ParseUtcTime(cfg.StartDate)
		if err != nil {
			return stream.Window{}, errors.Wrapf(err, "bad start date %q", cfg.StartDate)
		}
		start = t
	case cfg.NoIncremental:
		start = now.AddDate(0, 0, -cfg.Days)
	default:
		maxDt, ok, err := rdbms.Watermark(ctx, db)
		if err != nil {
			return stream.Window{}, err
		}
		if ok { // if the table already has rows then resume behind the newest one...
			start = maxDt.Add(-time.Duration(cfg.OverlapHours) * time.Hour)
			log.Info("resuming from watermark ", maxDt.Format(c.TimeFormatWindow), " minus ", cfg.OverlapHours, "h overlap")
		} else { // else the table is empty so backfill the configured number of days...
			start = now.AddDate(0, 0, -cfg.Days)
			log.Info("table is empty; backfilling ", cfg.Days, " days")
		}
	}
	if !start.Before(end) {
		return stream.Window{}, errors.Errorf("empty load range: start %v is not before end %v", start, end)
	}
	return stream.NewWindow(start, end), nil
}

// splitWindows breaks a long range into month-sized sub-windows so a large
// backfill loads and commits in bounded pieces, oldest first.
func splitWindows(w stream.Window) []stream.Window {
	out := make([]stream.Window, 0, 1)
	for s := w.Start; s.Before(w.End); {
		e := s.AddDate(0, c.BackfillWindowMonths, 0)
		if e.After(w.End) {
			e = w.End
		}
		out = append(out, stream.NewWindow(s, e))
		s = e
	}
	return out
}
