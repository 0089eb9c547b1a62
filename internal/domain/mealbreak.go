package domain

import (
	"strings"
	"time"
)

// MaxMealBreakDuration caps a single meal break; excess is truncated, not discarded.
const MaxMealBreakDuration = 3 * time.Hour

// MealBreak represents one meal pause within a day.
// EndTime nil marks the open break for its date.
type MealBreak struct {
	ID        string
	Date      Date
	StartTime time.Time
	EndTime   *time.Time
	Duration  time.Duration
	Truncated bool
}

// NewMealBreak opens a new break at start.
func NewMealBreak(id string, start time.Time) (MealBreak, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return MealBreak{}, ErrInvalidID
	}
	if start.IsZero() {
		return MealBreak{}, ErrInvalidDate
	}
	return MealBreak{
		ID:        id,
		Date:      DateOf(start),
		StartTime: start,
	}, nil
}

// Open reports whether the break is still running.
func (b *MealBreak) Open() bool {
	return b.EndTime == nil
}

// Close finishes the break at end. Durations beyond the 3h cap are
// truncated and flagged rather than rejected.
func (b *MealBreak) Close(end time.Time) error {
	if !b.Open() {
		return ErrAlreadyClosed
	}
	if !end.After(b.StartTime) {
		return ErrEndBeforeStart
	}
	ts := end
	b.EndTime = &ts
	b.Duration = end.Sub(b.StartTime)
	if b.Duration > MaxMealBreakDuration {
		b.Duration = MaxMealBreakDuration
		b.Truncated = true
	}
	return nil
}

// Validate enforces the break invariants prior to commit.
func (b *MealBreak) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrInvalidID
	}
	if !b.Date.Valid() {
		return ErrInvalidDate
	}
	if b.EndTime == nil {
		if b.Duration != 0 {
			return ErrDurationMismatch
		}
		return nil
	}
	if !b.EndTime.After(b.StartTime) {
		return ErrEndBeforeStart
	}
	if b.Duration > MaxMealBreakDuration {
		return ErrDurationExceeded
	}
	if !b.Truncated && b.Duration != b.EndTime.Sub(b.StartTime) {
		return ErrDurationMismatch
	}
	return nil
}
