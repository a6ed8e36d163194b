// Package timeseries holds the canonical daily data model shared by the
// source adapters, the aligner, and the rolling accumulator.
package timeseries

import (
	"sort"
	"time"
)

// dateLayout is the canonical textual form of a DateKey. Lexicographic order
// of keys in this layout matches chronological order.
const dateLayout = "2006-01-02"

// DateKey identifies one calendar day, formatted YYYY-MM-DD.
type DateKey string

// DayKey truncates a timestamp to its local calendar day.
func DayKey(t time.Time) DateKey {
	return DateKey(t.Format(dateLayout))
}

// DayKeyFromUnix truncates a unix-seconds timestamp to its local calendar day.
func DayKeyFromUnix(sec int64) DateKey {
	return DayKey(time.Unix(sec, 0))
}

// Time parses the key back into a midnight UTC timestamp.
func (k DateKey) Time() (time.Time, error) {
	return time.Parse(dateLayout, string(k))
}

// Valid reports whether the key is a well-formed YYYY-MM-DD date.
func (k DateKey) Valid() bool {
	_, err := k.Time()
	return err == nil
}

// DayDistance returns |a - b| in whole days. Malformed keys count as
// infinitely far apart so they can never win a nearest-neighbor search.
func DayDistance(a, b DateKey) int {
	ta, errA := a.Time()
	tb, errB := b.Time()
	if errA != nil || errB != nil {
		return int(^uint(0) >> 1)
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

// DateSeries maps calendar days to observed values. Keys are unique; a
// re-fetch of the same day overwrites rather than duplicates.
type DateSeries map[DateKey]float64

// SortedKeys returns the series' dates in ascending chronological order.
func (s DateSeries) SortedKeys() []DateKey {
	keys := make([]DateKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
