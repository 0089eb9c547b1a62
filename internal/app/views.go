package app

import (
	"fmt"
	"time"

	"github.com/evanschultz/stampla/internal/domain"
	"github.com/evanschultz/stampla/internal/report"
)

// TimerStatus is the read-only view of the timer machine.
type TimerStatus struct {
	IsRunning        bool
	TaskID           string
	TaskName         string
	EntryID          string
	StartedAt        time.Time
	Elapsed          time.Duration
	FormattedElapsed string
}

// MealBreakStatus is the read-only view of the meal-break machine.
type MealBreakStatus struct {
	OnBreak          bool
	BreakID          string
	StartedAt        time.Time
	Elapsed          time.Duration
	FormattedElapsed string
}

// DailyReport is the derived view for one date.
type DailyReport struct {
	Day              domain.WorkDay
	Entries          []domain.TimeEntry
	Breaks           []domain.MealBreak
	RequiredPresence time.Duration
	PresenceMet      bool
	Live             bool
}

// AuditData is the raw ledger slice for a date range, oldest first.
type AuditData struct {
	From     domain.Date
	To       domain.Date
	Entries  []domain.TimeEntry
	Breaks   []domain.MealBreak
	WorkDays []domain.WorkDay
	Counters []domain.ActivityCounter
}

// Status returns the timer view. Tick is an alias: the recurring display
// refresh recomputes elapsed time without touching the ledger.
func (s *Service) Status() TimerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.timer.running() {
		return TimerStatus{FormattedElapsed: formatElapsed(0)}
	}
	elapsed := s.clock().Sub(s.timer.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	status := TimerStatus{
		IsRunning:        true,
		TaskID:           s.timer.taskID,
		EntryID:          s.timer.entryID,
		StartedAt:        s.timer.startedAt,
		Elapsed:          elapsed,
		FormattedElapsed: formatElapsed(elapsed),
	}
	if idx := s.state.taskIndex(s.timer.taskID); idx >= 0 {
		status.TaskName = s.state.Tasks[idx].Name
	}
	return status
}

// Tick recomputes the display view. No ledger mutation.
func (s *Service) Tick() TimerStatus {
	return s.Status()
}

// CurrentMealBreak returns the meal-break view.
func (s *Service) CurrentMealBreak() MealBreakStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.breakState.onBreak() {
		return MealBreakStatus{FormattedElapsed: formatElapsed(0)}
	}
	elapsed := s.clock().Sub(s.breakState.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return MealBreakStatus{
		OnBreak:          true,
		BreakID:          s.breakState.breakID,
		StartedAt:        s.breakState.startedAt,
		Elapsed:          elapsed,
		FormattedElapsed: formatElapsed(elapsed),
	}
}

// Tasks returns tasks in creation order.
func (s *Service) Tasks(includeArchived bool) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Task, 0, len(s.state.Tasks))
	for _, task := range s.state.Tasks {
		if !includeArchived && task.Archived() {
			continue
		}
		out = append(out, task)
	}
	return out
}

// Settings returns the current settings.
func (s *Service) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings
}

// DailyReport returns the rollup for one date. Today's report is a live
// preview that counts open records up to now.
func (s *Service) DailyReport(date domain.Date) DailyReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	live := date == domain.DateOf(now) && (s.state.openEntryIndex() >= 0 || s.state.openBreakIndex(date) >= 0)

	var day domain.WorkDay
	if live {
		day = report.PreviewWorkDay(date, now, s.state.Entries, s.state.Breaks, s.state.Counters)
	} else if cached, ok := s.state.WorkDays[date]; ok {
		day = cached
	} else {
		day = report.ComputeWorkDay(date, s.state.Entries, s.state.Breaks, s.state.Counters)
	}

	out := DailyReport{
		Day:              day,
		RequiredPresence: s.state.Settings.RequiredDailyPresence,
		PresenceMet:      day.TotalPresence >= s.state.Settings.RequiredDailyPresence,
		Live:             live,
	}
	for _, entry := range s.state.Entries {
		if entry.Date == date {
			out.Entries = append(out.Entries, entry)
		}
	}
	for _, brk := range s.state.Breaks {
		if brk.Date == date {
			out.Breaks = append(out.Breaks, brk)
		}
	}
	return out
}

// WeeklyReport returns the Monday-Friday summary for the week containing
// weekStart.
func (s *Service) WeeklyReport(weekStart domain.Date) domain.WeekSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return report.ComputeWeekSummary(weekStart, s.state.WorkDays, s.state.Entries, s.state.Tasks)
}

// Audit returns the raw ledger records for an inclusive date range.
func (s *Service) Audit(from, to domain.Date) (AuditData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !from.Valid() || !to.Valid() {
		return AuditData{}, domain.ErrInvalidDate
	}
	if to.Before(from) {
		return AuditData{}, fmt.Errorf("audit range end %s precedes start %s", to, from)
	}

	out := AuditData{From: from, To: to}
	inRange := func(d domain.Date) bool {
		return !d.Before(from) && !to.Before(d)
	}
	for _, entry := range s.state.Entries {
		if inRange(entry.Date) {
			out.Entries = append(out.Entries, entry)
		}
	}
	for _, brk := range s.state.Breaks {
		if inRange(brk.Date) {
			out.Breaks = append(out.Breaks, brk)
		}
	}
	for _, counter := range s.state.Counters {
		if inRange(counter.Date) {
			out.Counters = append(out.Counters, counter)
		}
	}
	for date := from; !to.Before(date); date = date.AddDays(1) {
		if day, ok := s.state.WorkDays[date]; ok {
			out.WorkDays = append(out.WorkDays, day)
		}
	}
	return out, nil
}

// formatElapsed renders a duration as HH:MM:SS.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
