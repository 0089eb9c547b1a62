package domain

import "time"

// WorkDay is the derived daily rollup for one date. It is recomputed from
// the day's entries and breaks, never independently mutated.
type WorkDay struct {
	Date          Date
	ArrivalTime   time.Time
	DepartureTime time.Time
	TotalPresence time.Duration
	TotalTaskTime time.Duration
	MealBreakTime time.Duration
	Counters      map[string]int
}

// WorkingTime returns presence minus meal-break time, floored at zero.
func (w WorkDay) WorkingTime() time.Duration {
	working := w.TotalPresence - w.MealBreakTime
	if working < 0 {
		return 0
	}
	return working
}

// Efficiency returns task time over working time, 0 when working time is 0.
func (w WorkDay) Efficiency() float64 {
	working := w.WorkingTime()
	if working == 0 {
		return 0
	}
	return float64(w.TotalTaskTime) / float64(working)
}

// TaskSummary ranks one task's aggregate time inside a week summary.
type TaskSummary struct {
	TaskID    string
	Name      string
	TotalTime time.Duration
}

// WeekSummary is a computed Monday-Friday view over WorkDay records.
// Never persisted.
type WeekSummary struct {
	WeekStart         Date
	Days              []WorkDay
	TotalPresence     time.Duration
	TotalTaskTime     time.Duration
	TotalMealBreak    time.Duration
	TotalWorking      time.Duration
	AverageEfficiency float64
	TaskSummaries     []TaskSummary
}
