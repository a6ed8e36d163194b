package timeseries

import "sort"

// RollingHistory accumulates one sample per day for a source that only
// yields its current value, capped at a fixed window. Dates and Values are
// equal-length, chronological, with at most one entry per day.
type RollingHistory struct {
	Dates  []DateKey
	Values []float64
}

// Len returns the number of accumulated samples.
func (h RollingHistory) Len() int {
	return len(h.Dates)
}

// Latest returns the most recent sample, or false when the history is empty.
func (h RollingHistory) Latest() (DateKey, float64, bool) {
	if len(h.Dates) == 0 {
		return "", 0, false
	}
	return h.Dates[len(h.Dates)-1], h.Values[len(h.Values)-1], true
}

// Merge folds a new daily sample into the history. A sample for an existing
// day replaces its value in place. New days append and the history is
// re-sorted by date, so a replayed run with a backdated clock cannot leave
// the window misordered. The window then drops oldest-first down to maxLen.
func (h RollingHistory) Merge(date DateKey, value float64, maxLen int) RollingHistory {
	merged := RollingHistory{
		Dates:  append([]DateKey(nil), h.Dates...),
		Values: append([]float64(nil), h.Values...),
	}

	replaced := false
	for i, d := range merged.Dates {
		if d == date {
			merged.Values[i] = value
			replaced = true
			break
		}
	}

	if !replaced {
		merged.Dates = append(merged.Dates, date)
		merged.Values = append(merged.Values, value)
		if n := len(merged.Dates); n > 1 && merged.Dates[n-2] > date {
			merged.sortByDate()
		}
	}

	if maxLen > 0 && len(merged.Dates) > maxLen {
		drop := len(merged.Dates) - maxLen
		merged.Dates = merged.Dates[drop:]
		merged.Values = merged.Values[drop:]
	}

	return merged
}

func (h *RollingHistory) sortByDate() {
	type entry struct {
		date  DateKey
		value float64
	}
	entries := make([]entry, len(h.Dates))
	for i := range h.Dates {
		entries[i] = entry{h.Dates[i], h.Values[i]}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].date < entries[j].date })
	for i, e := range entries {
		h.Dates[i] = e.date
		h.Values[i] = e.value
	}
}
