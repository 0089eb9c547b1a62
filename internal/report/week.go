package report

import (
	"sort"

	"github.com/evanschultz/stampla/internal/domain"
)

// workWeekDays defines a package constant value.
const workWeekDays = 5

// ComputeWeekSummary maps Monday through Friday of the week containing
// weekStart onto their WorkDay records, sums the fields, and ranks tasks by
// aggregate entry time. Missing days are zero-valued.
func ComputeWeekSummary(weekStart domain.Date, workdays map[domain.Date]domain.WorkDay, entries []domain.TimeEntry, tasks []domain.Task) domain.WeekSummary {
	monday := weekStart.WeekMonday()
	summary := domain.WeekSummary{
		WeekStart: monday,
		Days:      make([]domain.WorkDay, 0, workWeekDays),
	}

	inWeek := map[domain.Date]bool{}
	for i := 0; i < workWeekDays; i++ {
		date := monday.AddDays(i)
		inWeek[date] = true
		day, ok := workdays[date]
		if !ok {
			day = domain.WorkDay{Date: date}
		}
		summary.Days = append(summary.Days, day)
		summary.TotalPresence += day.TotalPresence
		summary.TotalTaskTime += day.TotalTaskTime
		summary.TotalMealBreak += day.MealBreakTime
		summary.TotalWorking += day.WorkingTime()
	}
	if summary.TotalWorking > 0 {
		summary.AverageEfficiency = float64(summary.TotalTaskTime) / float64(summary.TotalWorking)
	}

	summary.TaskSummaries = rankTasks(inWeek, entries, tasks)
	return summary
}

// rankTasks aggregates closed entry time per task for the week, descending
// by total with task creation order breaking ties.
func rankTasks(inWeek map[domain.Date]bool, entries []domain.TimeEntry, tasks []domain.Task) []domain.TaskSummary {
	totals := map[string]*domain.TaskSummary{}
	for i := range entries {
		e := &entries[i]
		if e.Open() || !inWeek[e.Date] {
			continue
		}
		s, ok := totals[e.TaskID]
		if !ok {
			s = &domain.TaskSummary{TaskID: e.TaskID}
			totals[e.TaskID] = s
		}
		s.TotalTime += e.Duration
	}
	if len(totals) == 0 {
		return nil
	}

	order := map[string]int{}
	for i := range tasks {
		task := &tasks[i]
		order[task.ID] = i
		if s, ok := totals[task.ID]; ok {
			s.Name = task.Name
		}
	}

	out := make([]domain.TaskSummary, 0, len(totals))
	for _, s := range totals {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTime != out[j].TotalTime {
			return out[i].TotalTime > out[j].TotalTime
		}
		oi, iOK := order[out[i].TaskID]
		oj, jOK := order[out[j].TaskID]
		if iOK && jOK && oi != oj {
			return oi < oj
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}
