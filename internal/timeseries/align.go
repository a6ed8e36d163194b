package timeseries

import "sort"

// AlignedTable is the dense result of aligning auxiliary series onto a
// reference date axis. Dates is strictly increasing; Reference and every
// column in Columns have exactly one entry per date. Auxiliary entries are
// nil where no sample fell within tolerance.
type AlignedTable struct {
	Dates     []DateKey
	Reference []float64
	Columns   map[string][]*float64
}

// Len returns the number of rows on the reference axis.
func (t AlignedTable) Len() int {
	return len(t.Dates)
}

// Align builds a dense table from the reference series and zero or more
// auxiliary series. The reference's sorted dates define the axis. For each
// reference date an auxiliary contributes its exact-day value when present,
// otherwise the value of its nearest date within toleranceDays (inclusive),
// otherwise nil. When two auxiliary dates tie on distance the earlier one
// wins; the rule is arbitrary but must stay deterministic because repeated
// runs diff their output.
func Align(reference DateSeries, auxiliaries map[string]DateSeries, toleranceDays int) AlignedTable {
	dates := reference.SortedKeys()

	table := AlignedTable{
		Dates:     dates,
		Reference: make([]float64, len(dates)),
		Columns:   make(map[string][]*float64, len(auxiliaries)),
	}
	for i, d := range dates {
		table.Reference[i] = reference[d]
	}

	for name, series := range auxiliaries {
		table.Columns[name] = alignColumn(dates, series, toleranceDays)
	}

	return table
}

func alignColumn(dates []DateKey, series DateSeries, toleranceDays int) []*float64 {
	column := make([]*float64, len(dates))
	if len(series) == 0 {
		return column
	}

	sorted := series.SortedKeys()

	for i, d := range dates {
		if v, ok := series[d]; ok {
			value := v
			column[i] = &value
			continue
		}

		nearest, dist := nearestDate(sorted, d)
		if dist <= toleranceDays {
			value := series[nearest]
			column[i] = &value
		}
	}

	return column
}

// nearestDate finds the date in sorted (ascending) closest to target,
// preferring the earlier date on a distance tie.
func nearestDate(sorted []DateKey, target DateKey) (DateKey, int) {
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= target })

	switch idx {
	case 0:
		return sorted[0], DayDistance(sorted[0], target)
	case len(sorted):
		last := sorted[len(sorted)-1]
		return last, DayDistance(last, target)
	}

	before, after := sorted[idx-1], sorted[idx]
	distBefore := DayDistance(before, target)
	distAfter := DayDistance(after, target)
	if distBefore <= distAfter {
		return before, distBefore
	}
	return after, distAfter
}
