package domain

import "time"

// EventKind describes a state-machine transition published to subscribers.
type EventKind string

// EventKind values emitted by the timer and meal-break machines.
const (
	EventTaskCreated      EventKind = "task_created"
	EventTaskArchived     EventKind = "task_archived"
	EventTimerStarted     EventKind = "timer_started"
	EventTimerStopped     EventKind = "timer_stopped"
	EventTimerAutoStopped EventKind = "timer_auto_stopped"
	EventMealBreakStarted EventKind = "meal_break_started"
	EventMealBreakStopped EventKind = "meal_break_stopped"
)

// Event is one transition notification. TimerAutoStopped is informational,
// not an error: it signals a policy-driven forced stop.
type Event struct {
	Kind       EventKind
	TaskID     string
	EntryID    string
	BreakID    string
	Date       Date
	Duration   time.Duration
	OccurredAt time.Time
}
