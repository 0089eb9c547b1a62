package domain

import (
	"strings"
	"time"
)

// ActivityCounter counts occurrences of one activity type on one day.
// Unique per (date, activity type).
type ActivityCounter struct {
	Date         Date
	ActivityType string
	Count        int
	LastUpdated  time.Time
}

// NewActivityCounter constructs a new value for this package.
func NewActivityCounter(date Date, activityType string, now time.Time) (ActivityCounter, error) {
	activityType = strings.TrimSpace(activityType)
	if !date.Valid() {
		return ActivityCounter{}, ErrInvalidDate
	}
	if activityType == "" {
		return ActivityCounter{}, ErrInvalidActivity
	}
	return ActivityCounter{
		Date:         date,
		ActivityType: activityType,
		LastUpdated:  now,
	}, nil
}

// Increment bumps the counter.
func (c *ActivityCounter) Increment(now time.Time) {
	c.Count++
	c.LastUpdated = now
}

// Reset zeroes the counter.
func (c *ActivityCounter) Reset(now time.Time) {
	c.Count = 0
	c.LastUpdated = now
}

// Validate enforces the counter invariants prior to commit.
func (c *ActivityCounter) Validate() error {
	if !c.Date.Valid() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(c.ActivityType) == "" {
		return ErrInvalidActivity
	}
	if c.Count < 0 {
		return ErrNegativeTime
	}
	return nil
}
