package app

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/stampla/internal/domain"
)

// timerState is the explicit Running-state variable of the timer machine.
// Zero value means Idle.
type timerState struct {
	entryID   string
	taskID    string
	startedAt time.Time
}

// running reports whether the machine is in the Running state.
func (t timerState) running() bool {
	return t.entryID != ""
}

// StartTimer transitions Idle -> Running: it opens a new entry against the
// task, marks the task active, and schedules the auto-stop callback.
func (s *Service) StartTimer(ctx context.Context, taskID string) (domain.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.TimeEntry{}, ErrNotLoaded
	}
	if s.timer.running() || s.state.openEntryIndex() >= 0 {
		return domain.TimeEntry{}, validationErr(RuleTimerAlreadyRunning, errors.New("a timer is already running"))
	}
	taskIdx := s.state.taskIndex(taskID)
	if taskIdx < 0 || s.state.Tasks[taskIdx].Archived() {
		return domain.TimeEntry{}, ErrInvalidTask
	}

	now := s.clock()
	entry, err := domain.NewTimeEntry(s.idGen(), taskID, now)
	if err != nil {
		return domain.TimeEntry{}, validationErr(RuleEntryBounds, err)
	}

	err = s.commit(ctx, "start timer", func(state *ledgerState) error {
		for i := range state.Tasks {
			state.Tasks[i].IsActive = state.Tasks[i].ID == taskID
		}
		state.Entries = append(state.Entries, entry)
		recomputeWorkDay(state, entry.Date)
		return nil
	})
	if err != nil {
		return domain.TimeEntry{}, err
	}

	s.timer = timerState{entryID: entry.ID, taskID: taskID, startedAt: now}
	s.scheduleAutoStopLocked()
	s.scheduleAutoSaveLocked()
	s.emitLocked(domain.Event{
		Kind:       domain.EventTimerStarted,
		TaskID:     taskID,
		EntryID:    entry.ID,
		Date:       entry.Date,
		OccurredAt: now,
	})
	return entry, nil
}

// StopTimer transitions Running -> Idle. A stop from Idle is a silent
// no-op; the returned bool reports whether an entry was actually closed.
func (s *Service) StopTimer(ctx context.Context) (domain.TimeEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.TimeEntry{}, false, ErrNotLoaded
	}
	if !s.timer.running() {
		return domain.TimeEntry{}, false, nil
	}
	entry, err := s.stopTimerLocked(ctx, false)
	if err != nil {
		return domain.TimeEntry{}, false, err
	}
	return entry, true, nil
}

// stopTimerLocked closes the running entry, credits the task total, and
// cancels the scheduled callbacks on every exit path.
func (s *Service) stopTimerLocked(ctx context.Context, auto bool) (domain.TimeEntry, error) {
	defer s.cancelTimersLocked()

	now := s.clock()
	maxDur := s.timerCapLocked()
	machine := s.timer
	var closed domain.TimeEntry
	var capped bool

	err := s.commit(ctx, "stop timer", func(state *ledgerState) error {
		idx := state.openEntryIndex()
		if idx < 0 {
			return validationErr(RuleSingleOpenEntry, errors.New("no open entry for running timer"))
		}
		entry := &state.Entries[idx]
		end := now
		if !end.After(entry.StartTime) {
			// Clock resolution guard: never emit a zero-length entry.
			end = entry.StartTime.Add(time.Millisecond)
		}
		var err error
		capped, err = entry.CloseCapped(end, maxDur)
		if err != nil {
			return validationErr(RuleEntryBounds, err)
		}
		if err := entry.Validate(); err != nil {
			return validationErr(RuleEntryBounds, err)
		}
		if tIdx := state.taskIndex(entry.TaskID); tIdx >= 0 {
			if err := state.Tasks[tIdx].AddTime(entry.Duration); err != nil {
				return validationErr(RuleEntryBounds, err)
			}
			state.Tasks[tIdx].IsActive = false
		}
		recomputeWorkDay(state, entry.Date)
		closed = *entry
		return nil
	})
	if err != nil {
		return domain.TimeEntry{}, err
	}

	s.timer = timerState{}
	kind := domain.EventTimerStopped
	if auto || capped {
		kind = domain.EventTimerAutoStopped
	}
	s.emitLocked(domain.Event{
		Kind:       kind,
		TaskID:     machine.taskID,
		EntryID:    closed.ID,
		Date:       closed.Date,
		Duration:   closed.Duration,
		OccurredAt: now,
	})
	return closed, nil
}

// timerCapLocked returns the effective running-entry cap: the configured
// timer maximum, never beyond the 12h entry invariant.
func (s *Service) timerCapLocked() time.Duration {
	maxDur := s.state.Settings.TimerMaxDuration
	if maxDur <= 0 || maxDur > domain.MaxEntryDuration {
		maxDur = domain.MaxEntryDuration
	}
	return maxDur
}

// autoStopRetryInterval spaces retries of a forced stop whose save failed.
const autoStopRetryInterval = 15 * time.Second

// scheduleAutoStopLocked arms the forced-stop callback for the running
// entry.
func (s *Service) scheduleAutoStopLocked() {
	if !s.timer.running() {
		return
	}
	delay := s.timerCapLocked() - s.clock().Sub(s.timer.startedAt)
	if delay < 0 {
		delay = 0
	}
	s.armAutoStopLocked(delay, s.timer.entryID)
}

// armAutoStopLocked schedules the forced stop after delay. The entry id
// guard keeps a stale callback from stopping a timer it no longer owns.
// A stop whose save fails re-arms itself so the timer never runs unbounded
// while the store is unwritable.
func (s *Service) armAutoStopLocked(delay time.Duration, entryID string) {
	s.cancelAutoStop = s.schedule(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timer.entryID != entryID {
			return
		}
		s.logger.Info("timer exceeded configured maximum; forcing stop", "entry_id", entryID)
		if _, err := s.stopTimerLocked(context.Background(), true); err != nil {
			s.logger.Error("auto-stop failed; retrying", "entry_id", entryID, "retry_in", autoStopRetryInterval, "err", err)
			s.armAutoStopLocked(autoStopRetryInterval, entryID)
			s.scheduleAutoSaveLocked()
		}
	})
}

// scheduleAutoSaveLocked arms the debounced write-through for the running
// timer: one pending save per interval, coalescing tick-driven updates.
func (s *Service) scheduleAutoSaveLocked() {
	if !s.timer.running() || s.cancelAutoSave != nil {
		return
	}
	s.cancelAutoSave = s.schedule(s.state.Settings.AutoSaveInterval, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelAutoSave = nil
		if !s.timer.running() {
			return
		}
		if err := s.saveLocked(context.Background()); err != nil {
			s.logger.Warn("autosave failed; retrying next interval", "err", err)
		}
		s.scheduleAutoSaveLocked()
	})
}
