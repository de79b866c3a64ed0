package gate

import "time"

// FilterFunc reports whether entries are allowed at the given time.
type FilterFunc func(t time.Time) bool

// FilterCell is one (hour-of-day, day-of-week) bucket of historical results,
// produced by an external analytics pass. Read-only input; the gate never
// mutates cells.
type FilterCell struct {
	Hour    int
	Weekday time.Weekday
	Trades  int
	Wins    int
}

// NewHourFilter builds a FilterFunc that allows entry only during buckets
// with at least minTrades observations and a win rate of at least minWinRate.
// Buckets with too few observations are allowed: absence of evidence is not
// treated as a bad hour.
func NewHourFilter(cells []FilterCell, minTrades int, minWinRate float64) FilterFunc {
	type key struct {
		hour    int
		weekday time.Weekday
	}

	blocked := make(map[key]bool)
	for _, cell := range cells {
		if cell.Trades < minTrades {
			continue
		}
		winRate := float64(cell.Wins) / float64(cell.Trades)
		if winRate < minWinRate {
			blocked[key{cell.Hour, cell.Weekday}] = true
		}
	}

	return func(t time.Time) bool {
		t = t.UTC()
		return !blocked[key{t.Hour(), t.Weekday()}]
	}
}
