package windows

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is one fixed-duration trading period. Instances are computed from
// wall-clock time and never mutated; a new Window exists per period.
type Window struct {
	Slug  string
	Start time.Time
	End   time.Time
}

// Clock derives the active window from wall-clock time. It is a pure mapping:
// any clock value produces a valid window, there are no failure modes.
type Clock struct {
	prefix string
	period time.Duration
}

// NewClock creates a window clock for the given slug prefix and period.
func NewClock(prefix string, period time.Duration) *Clock {
	return &Clock{
		prefix: prefix,
		period: period,
	}
}

// Period returns the window duration.
func (c *Clock) Period() time.Duration {
	return c.period
}

// Slug returns the epoch-aligned identifier for the window containing now:
// floor(now / period) * period, rendered as "<prefix>-<epochSeconds>".
func (c *Clock) Slug(now time.Time) string {
	periodSec := int64(c.period / time.Second)
	start := (now.Unix() / periodSec) * periodSec
	return fmt.Sprintf("%s-%d", c.prefix, start)
}

// Current returns the window containing now.
func (c *Clock) Current(now time.Time) Window {
	periodSec := int64(c.period / time.Second)
	startSec := (now.Unix() / periodSec) * periodSec
	start := time.Unix(startSec, 0).UTC()

	return Window{
		Slug:  fmt.Sprintf("%s-%d", c.prefix, startSec),
		Start: start,
		End:   start.Add(c.period),
	}
}

// EndTime recovers a window's end timestamp from its slug alone.
func (c *Clock) EndTime(slug string) (time.Time, error) {
	idx := strings.LastIndex(slug, "-")
	if idx < 0 || idx == len(slug)-1 {
		return time.Time{}, fmt.Errorf("malformed window slug %q", slug)
	}

	startSec, err := strconv.ParseInt(slug[idx+1:], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse window slug %q: %w", slug, err)
	}

	return time.Unix(startSec, 0).UTC().Add(c.period), nil
}
