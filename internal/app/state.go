package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/evanschultz/stampla/internal/domain"
)

// SchemaVersion is the current root-record schema. Older versions are
// migrated on load; newer versions fail fast.
const SchemaVersion = 3

// StoredState is the single namespaced root record written through the
// persistence gateway. Durations serialize as integer milliseconds.
type StoredState struct {
	Version          int                     `json:"version"`
	LastUpdated      time.Time               `json:"last_updated"`
	Tasks            []StoredTask            `json:"tasks"`
	TimeEntries      []StoredTimeEntry       `json:"time_entries"`
	MealBreaks       []StoredMealBreak       `json:"meal_breaks"`
	WorkDays         []StoredWorkDay         `json:"work_days"`
	ActivityCounters []StoredActivityCounter `json:"activity_counters"`
	Settings         StoredSettings          `json:"settings"`
}

// StoredTask represents stored task data in the root record.
type StoredTask struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Color       string     `json:"color,omitempty"`
	IsActive    bool       `json:"is_active"`
	TotalTimeMS int64      `json:"total_time_ms"`
	CreatedAt   time.Time  `json:"created_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// StoredTimeEntry represents stored time-entry data in the root record.
type StoredTimeEntry struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Date       string     `json:"date"`
	IsManual   bool       `json:"is_manual,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// StoredMealBreak represents stored meal-break data in the root record.
type StoredMealBreak struct {
	ID         string     `json:"id"`
	Date       string     `json:"date"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Truncated  bool       `json:"truncated,omitempty"`
}

// StoredWorkDay represents the persisted daily rollup cache.
type StoredWorkDay struct {
	Date            string         `json:"date"`
	ArrivalTime     *time.Time     `json:"arrival_time,omitempty"`
	DepartureTime   *time.Time     `json:"departure_time,omitempty"`
	TotalPresenceMS int64          `json:"total_presence_ms"`
	TotalTaskMS     int64          `json:"total_task_ms"`
	MealBreakMS     int64          `json:"meal_break_ms"`
	Counters        map[string]int `json:"counters,omitempty"`
}

// StoredActivityCounter represents stored counter data in the root record.
type StoredActivityCounter struct {
	Date         string    `json:"date"`
	ActivityType string    `json:"activity_type"`
	Count        int       `json:"count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// StoredSettings represents stored settings in the root record.
type StoredSettings struct {
	RequiredDailyPresenceMS int64  `json:"required_daily_presence_ms"`
	TimerMaxDurationMS      int64  `json:"timer_max_duration_ms"`
	Theme                   string `json:"theme"`
	TimeFormat24h           bool   `json:"time_format_24h"`
	AutoSaveIntervalMS      int64  `json:"auto_save_interval_ms"`
	DataRetentionWeeks      int    `json:"data_retention_weeks"`
}

// ledgerState is the in-memory ledger. Tasks keep creation order; WorkDays
// cache the latest rollup per date.
type ledgerState struct {
	Tasks    []domain.Task
	Entries  []domain.TimeEntry
	Breaks   []domain.MealBreak
	WorkDays map[domain.Date]domain.WorkDay
	Counters []domain.ActivityCounter
	Settings domain.Settings
}

// newLedgerState returns an empty state with default settings.
func newLedgerState() ledgerState {
	return ledgerState{
		WorkDays: map[domain.Date]domain.WorkDay{},
		Settings: domain.DefaultSettings(),
	}
}

// clone deep-copies the state for snapshot rollback.
func (s *ledgerState) clone() ledgerState {
	out := ledgerState{
		Tasks:    append([]domain.Task(nil), s.Tasks...),
		Entries:  append([]domain.TimeEntry(nil), s.Entries...),
		Breaks:   append([]domain.MealBreak(nil), s.Breaks...),
		Counters: append([]domain.ActivityCounter(nil), s.Counters...),
		WorkDays: make(map[domain.Date]domain.WorkDay, len(s.WorkDays)),
		Settings: s.Settings,
	}
	for date, day := range s.WorkDays {
		if day.Counters != nil {
			counters := make(map[string]int, len(day.Counters))
			for k, v := range day.Counters {
				counters[k] = v
			}
			day.Counters = counters
		}
		out.WorkDays[date] = day
	}
	return out
}

// taskIndex returns the slice index of the task, or -1.
func (s *ledgerState) taskIndex(id string) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// openEntryIndex returns the index of the single open entry, or -1.
func (s *ledgerState) openEntryIndex() int {
	for i := range s.Entries {
		if s.Entries[i].Open() {
			return i
		}
	}
	return -1
}

// openBreakIndex returns the index of the open break for date, or -1.
func (s *ledgerState) openBreakIndex(date domain.Date) int {
	for i := range s.Breaks {
		if s.Breaks[i].Date == date && s.Breaks[i].Open() {
			return i
		}
	}
	return -1
}

// counterIndex returns the index of the (date, type) counter, or -1.
func (s *ledgerState) counterIndex(date domain.Date, activityType string) int {
	for i := range s.Counters {
		if s.Counters[i].Date == date && s.Counters[i].ActivityType == activityType {
			return i
		}
	}
	return -1
}

// encode serializes the state as the current-version root record.
func (s *ledgerState) encode(now time.Time) ([]byte, error) {
	stored := StoredState{
		Version:     SchemaVersion,
		LastUpdated: now,
		Settings: StoredSettings{
			RequiredDailyPresenceMS: s.Settings.RequiredDailyPresence.Milliseconds(),
			TimerMaxDurationMS:      s.Settings.TimerMaxDuration.Milliseconds(),
			Theme:                   s.Settings.Theme,
			TimeFormat24h:           s.Settings.TimeFormat24h,
			AutoSaveIntervalMS:      s.Settings.AutoSaveInterval.Milliseconds(),
			DataRetentionWeeks:      s.Settings.DataRetentionWeeks,
		},
	}
	for _, task := range s.Tasks {
		stored.Tasks = append(stored.Tasks, StoredTask{
			ID:          task.ID,
			Name:        task.Name,
			Color:       task.Color,
			IsActive:    task.IsActive,
			TotalTimeMS: task.TotalTime.Milliseconds(),
			CreatedAt:   task.CreatedAt,
			ArchivedAt:  task.ArchivedAt,
		})
	}
	for _, entry := range s.Entries {
		stored.TimeEntries = append(stored.TimeEntries, StoredTimeEntry{
			ID:         entry.ID,
			TaskID:     entry.TaskID,
			StartTime:  entry.StartTime,
			EndTime:    entry.EndTime,
			DurationMS: entry.Duration.Milliseconds(),
			Date:       string(entry.Date),
			IsManual:   entry.IsManual,
			Note:       entry.Note,
		})
	}
	for _, brk := range s.Breaks {
		stored.MealBreaks = append(stored.MealBreaks, StoredMealBreak{
			ID:         brk.ID,
			Date:       string(brk.Date),
			StartTime:  brk.StartTime,
			EndTime:    brk.EndTime,
			DurationMS: brk.Duration.Milliseconds(),
			Truncated:  brk.Truncated,
		})
	}
	for _, date := range sortedWorkDayDates(s.WorkDays) {
		day := s.WorkDays[date]
		sd := StoredWorkDay{
			Date:            string(day.Date),
			TotalPresenceMS: day.TotalPresence.Milliseconds(),
			TotalTaskMS:     day.TotalTaskTime.Milliseconds(),
			MealBreakMS:     day.MealBreakTime.Milliseconds(),
			Counters:        day.Counters,
		}
		if !day.ArrivalTime.IsZero() {
			arrival := day.ArrivalTime
			sd.ArrivalTime = &arrival
		}
		if !day.DepartureTime.IsZero() {
			departure := day.DepartureTime
			sd.DepartureTime = &departure
		}
		stored.WorkDays = append(stored.WorkDays, sd)
	}
	for _, counter := range s.Counters {
		stored.ActivityCounters = append(stored.ActivityCounters, StoredActivityCounter{
			Date:         string(counter.Date),
			ActivityType: counter.ActivityType,
			Count:        counter.Count,
			LastUpdated:  counter.LastUpdated,
		})
	}
	return json.Marshal(stored)
}

// decodeState deserializes a current-version root record.
func decodeState(data []byte) (ledgerState, error) {
	var stored StoredState
	if err := json.Unmarshal(data, &stored); err != nil {
		return ledgerState{}, fmt.Errorf("decode root record: %w", err)
	}
	if stored.Version != SchemaVersion {
		return ledgerState{}, fmt.Errorf("decode root record: unexpected version %d", stored.Version)
	}

	state := newLedgerState()
	if stored.Settings != (StoredSettings{}) {
		state.Settings = domain.Settings{
			RequiredDailyPresence: time.Duration(stored.Settings.RequiredDailyPresenceMS) * time.Millisecond,
			TimerMaxDuration:      time.Duration(stored.Settings.TimerMaxDurationMS) * time.Millisecond,
			Theme:                 stored.Settings.Theme,
			TimeFormat24h:         stored.Settings.TimeFormat24h,
			AutoSaveInterval:      time.Duration(stored.Settings.AutoSaveIntervalMS) * time.Millisecond,
			DataRetentionWeeks:    stored.Settings.DataRetentionWeeks,
		}
	}
	for _, task := range stored.Tasks {
		state.Tasks = append(state.Tasks, domain.Task{
			ID:         task.ID,
			Name:       task.Name,
			Color:      task.Color,
			IsActive:   task.IsActive,
			TotalTime:  time.Duration(task.TotalTimeMS) * time.Millisecond,
			CreatedAt:  task.CreatedAt,
			ArchivedAt: task.ArchivedAt,
		})
	}
	for _, entry := range stored.TimeEntries {
		state.Entries = append(state.Entries, domain.TimeEntry{
			ID:        entry.ID,
			TaskID:    entry.TaskID,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			Duration:  time.Duration(entry.DurationMS) * time.Millisecond,
			Date:      domain.Date(entry.Date),
			IsManual:  entry.IsManual,
			Note:      entry.Note,
		})
	}
	for _, brk := range stored.MealBreaks {
		state.Breaks = append(state.Breaks, domain.MealBreak{
			ID:        brk.ID,
			Date:      domain.Date(brk.Date),
			StartTime: brk.StartTime,
			EndTime:   brk.EndTime,
			Duration:  time.Duration(brk.DurationMS) * time.Millisecond,
			Truncated: brk.Truncated,
		})
	}
	for _, day := range stored.WorkDays {
		wd := domain.WorkDay{
			Date:          domain.Date(day.Date),
			TotalPresence: time.Duration(day.TotalPresenceMS) * time.Millisecond,
			TotalTaskTime: time.Duration(day.TotalTaskMS) * time.Millisecond,
			MealBreakTime: time.Duration(day.MealBreakMS) * time.Millisecond,
			Counters:      day.Counters,
		}
		if day.ArrivalTime != nil {
			wd.ArrivalTime = *day.ArrivalTime
		}
		if day.DepartureTime != nil {
			wd.DepartureTime = *day.DepartureTime
		}
		state.WorkDays[wd.Date] = wd
	}
	for _, counter := range stored.ActivityCounters {
		state.Counters = append(state.Counters, domain.ActivityCounter{
			Date:         domain.Date(counter.Date),
			ActivityType: counter.ActivityType,
			Count:        counter.Count,
			LastUpdated:  counter.LastUpdated,
		})
	}
	return state, nil
}

// sortedWorkDayDates returns the cache keys in ascending date order so the
// encoded record is deterministic.
func sortedWorkDayDates(workdays map[domain.Date]domain.WorkDay) []domain.Date {
	dates := make([]domain.Date, 0, len(workdays))
	for date := range workdays {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates
}
