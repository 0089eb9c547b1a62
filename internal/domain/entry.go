package domain

import (
	"strings"
	"time"
)

// MaxEntryDuration caps a single time entry; longer entries are force-closed.
const MaxEntryDuration = 12 * time.Hour

// TimeEntry represents one span of work against a task.
// EndTime nil marks the single running entry.
type TimeEntry struct {
	ID        string
	TaskID    string
	StartTime time.Time
	EndTime   *time.Time
	Duration  time.Duration
	Date      Date
	IsManual  bool
	Note      string
}

// NewTimeEntry opens a new running entry at start.
func NewTimeEntry(id, taskID string, start time.Time) (TimeEntry, error) {
	id = strings.TrimSpace(id)
	taskID = strings.TrimSpace(taskID)
	if id == "" {
		return TimeEntry{}, ErrInvalidID
	}
	if taskID == "" {
		return TimeEntry{}, ErrInvalidTaskID
	}
	if start.IsZero() {
		return TimeEntry{}, ErrInvalidDate
	}
	return TimeEntry{
		ID:        id,
		TaskID:    taskID,
		StartTime: start,
		Date:      DateOf(start),
	}, nil
}

// Open reports whether the entry is still running.
func (e *TimeEntry) Open() bool {
	return e.EndTime == nil
}

// Close finishes the entry at end and derives its duration.
func (e *TimeEntry) Close(end time.Time) error {
	if !e.Open() {
		return ErrAlreadyClosed
	}
	if !end.After(e.StartTime) {
		return ErrEndBeforeStart
	}
	ts := end
	e.EndTime = &ts
	e.Duration = end.Sub(e.StartTime)
	return nil
}

// CloseCapped finishes the entry with duration truncated to max.
// Returns true when truncation applied.
func (e *TimeEntry) CloseCapped(end time.Time, max time.Duration) (bool, error) {
	if err := e.Close(end); err != nil {
		return false, err
	}
	if e.Duration <= max {
		return false, nil
	}
	capped := e.StartTime.Add(max)
	e.EndTime = &capped
	e.Duration = max
	return true, nil
}

// EditTimes retroactively rewrites the entry span and marks it manual.
func (e *TimeEntry) EditTimes(start, end time.Time, note string) error {
	if start.IsZero() {
		return ErrInvalidDate
	}
	if !end.After(start) {
		return ErrEndBeforeStart
	}
	ts := end
	e.StartTime = start
	e.EndTime = &ts
	e.Duration = end.Sub(start)
	e.Date = DateOf(start)
	e.IsManual = true
	e.Note = strings.TrimSpace(note)
	return nil
}

// Validate enforces the entry invariants prior to commit.
func (e *TimeEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(e.TaskID) == "" {
		return ErrInvalidTaskID
	}
	if !e.Date.Valid() {
		return ErrInvalidDate
	}
	if e.EndTime == nil {
		if e.Duration != 0 {
			return ErrDurationMismatch
		}
		return nil
	}
	if !e.EndTime.After(e.StartTime) {
		return ErrEndBeforeStart
	}
	if e.Duration != e.EndTime.Sub(e.StartTime) {
		return ErrDurationMismatch
	}
	if e.Duration > MaxEntryDuration {
		return ErrDurationExceeded
	}
	return nil
}
