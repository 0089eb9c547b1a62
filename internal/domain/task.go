package domain

import (
	"strings"
	"time"
)

// maxTaskNameLen defines a package constant value.
const maxTaskNameLen = 100

// Task represents one trackable unit of work.
type Task struct {
	ID         string
	Name       string
	Color      string
	IsActive   bool
	TotalTime  time.Duration
	CreatedAt  time.Time
	ArchivedAt *time.Time
}

// NewTask constructs a new value for this package.
func NewTask(id, name, color string, now time.Time) (Task, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	color = strings.TrimSpace(color)

	if id == "" {
		return Task{}, ErrInvalidID
	}
	if name == "" || len(name) > maxTaskNameLen {
		return Task{}, ErrInvalidName
	}
	if color != "" && !validHexColor(color) {
		return Task{}, ErrInvalidColor
	}

	return Task{
		ID:        id,
		Name:      name,
		Color:     color,
		CreatedAt: now,
	}, nil
}

// AddTime accumulates closed-entry time onto the task total.
func (t *Task) AddTime(d time.Duration) error {
	if d < 0 {
		return ErrNegativeTime
	}
	t.TotalTime += d
	return nil
}

// Archive soft-deletes the task; referenced time entries keep pointing at it.
func (t *Task) Archive(now time.Time) {
	ts := now
	t.ArchivedAt = &ts
	t.IsActive = false
}

// Archived reports whether the task is soft-deleted.
func (t *Task) Archived() bool {
	return t.ArchivedAt != nil
}

// validHexColor reports whether s is a #rgb or #rrggbb color literal.
func validHexColor(s string) bool {
	if len(s) != 4 && len(s) != 7 {
		return false
	}
	if s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
