package core

import "sort"

// DayTotals aggregates the entries of a single day.
type DayTotals struct {
	Date    Date
	Inflow  Money
	Outflow Money
	Entries []Entry
}

// Net returns inflow minus outflow in cents.
func (d DayTotals) Net() int64 {
	return d.Inflow.Cents - d.Outflow.Cents
}

// GroupByDay buckets entries per date, newest day first. Entries keep their
// relative order inside a day.
func GroupByDay(entries []Entry) []DayTotals {
	index := make(map[string]int)
	var days []DayTotals
	for _, e := range entries {
		key := e.Date.String()
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, DayTotals{Date: e.Date})
		}
		switch e.Type {
		case Inflow:
			days[i].Inflow.Cents += e.Amount.Cents
		case Outflow:
			days[i].Outflow.Cents += e.Amount.Cents
		}
		days[i].Entries = append(days[i].Entries, e)
	}
	sort.SliceStable(days, func(a, b int) bool {
		return days[a].Date.After(days[b].Date.Time)
	})
	return days
}
