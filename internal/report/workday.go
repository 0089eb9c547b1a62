// Package report computes derived daily and weekly rollups from ledger
// records. Everything here is a pure function over immutable inputs:
// recomputing with unchanged inputs yields identical output.
package report

import (
	"time"

	"github.com/evanschultz/stampla/internal/domain"
)

// ComputeWorkDay folds the day's entries and breaks into a WorkDay record.
// Open records contribute their start time to arrival but are excluded from
// every total; use PreviewWorkDay for the live "today" view.
func ComputeWorkDay(date domain.Date, entries []domain.TimeEntry, breaks []domain.MealBreak, counters []domain.ActivityCounter) domain.WorkDay {
	day := domain.WorkDay{Date: date}

	var arrival, departure time.Time
	var anyClosed bool

	for i := range entries {
		e := &entries[i]
		if e.Date != date {
			continue
		}
		if arrival.IsZero() || e.StartTime.Before(arrival) {
			arrival = e.StartTime
		}
		if e.Open() {
			continue
		}
		anyClosed = true
		if e.EndTime.After(departure) {
			departure = *e.EndTime
		}
		day.TotalTaskTime += e.Duration
	}

	for i := range breaks {
		b := &breaks[i]
		if b.Date != date {
			continue
		}
		if arrival.IsZero() || b.StartTime.Before(arrival) {
			arrival = b.StartTime
		}
		if b.Open() {
			continue
		}
		anyClosed = true
		if b.EndTime.After(departure) {
			departure = *b.EndTime
		}
		day.MealBreakTime += b.Duration
	}

	day.ArrivalTime = arrival
	if anyClosed {
		day.DepartureTime = departure
		day.TotalPresence = departure.Sub(arrival)
	}

	if len(counters) > 0 {
		day.Counters = map[string]int{}
		for _, c := range counters {
			if c.Date != date {
				continue
			}
			day.Counters[c.ActivityType] = c.Count
		}
		if len(day.Counters) == 0 {
			day.Counters = nil
		}
	}
	return day
}

// PreviewWorkDay computes the live rollup for an in-progress day: open
// records are counted as if they closed at now. Recomputed on every tick,
// never persisted.
func PreviewWorkDay(date domain.Date, now time.Time, entries []domain.TimeEntry, breaks []domain.MealBreak, counters []domain.ActivityCounter) domain.WorkDay {
	closed := make([]domain.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date == date && e.Open() && now.After(e.StartTime) {
			if _, err := e.CloseCapped(now, domain.MaxEntryDuration); err != nil {
				continue
			}
		}
		closed = append(closed, e)
	}
	closedBreaks := make([]domain.MealBreak, 0, len(breaks))
	for _, b := range breaks {
		if b.Date == date && b.Open() && now.After(b.StartTime) {
			if err := b.Close(now); err != nil {
				continue
			}
		}
		closedBreaks = append(closedBreaks, b)
	}
	return ComputeWorkDay(date, closed, closedBreaks, counters)
}
