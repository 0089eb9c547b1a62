package app

import "github.com/evanschultz/stampla/internal/domain"

// applyRetention prunes closed time entries, meal breaks, work days, and
// activity counters dated before today minus the retention window. The
// returned state shares no retained-slice memory with the input, so the
// purge participates in the save cycle's all-or-nothing semantics: the
// caller adopts it only after a successful save.
func applyRetention(state ledgerState, today domain.Date) ledgerState {
	cutoff := today.AddDays(-state.Settings.DataRetentionWeeks * 7)

	out := state
	out.Entries = make([]domain.TimeEntry, 0, len(state.Entries))
	for _, entry := range state.Entries {
		// Never purge the running entry regardless of its date.
		if entry.Open() || !entry.Date.Before(cutoff) {
			out.Entries = append(out.Entries, entry)
		}
	}
	out.Breaks = make([]domain.MealBreak, 0, len(state.Breaks))
	for _, brk := range state.Breaks {
		if brk.Open() || !brk.Date.Before(cutoff) {
			out.Breaks = append(out.Breaks, brk)
		}
	}
	out.Counters = make([]domain.ActivityCounter, 0, len(state.Counters))
	for _, counter := range state.Counters {
		if !counter.Date.Before(cutoff) {
			out.Counters = append(out.Counters, counter)
		}
	}
	out.WorkDays = make(map[domain.Date]domain.WorkDay, len(state.WorkDays))
	for date, day := range state.WorkDays {
		if !date.Before(cutoff) {
			out.WorkDays[date] = day
		}
	}
	return out
}
