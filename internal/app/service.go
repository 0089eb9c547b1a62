package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/stampla/internal/domain"
	"github.com/evanschultz/stampla/internal/report"
)

// ErrNotLoaded reports a command issued before Load.
var ErrNotLoaded = errors.New("service state not loaded")

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// InitialSettings seeds the stored settings on first run. Zero value
	// falls back to domain defaults.
	InitialSettings domain.Settings
}

// Service is the single mutator over the ledger: it owns the timer and
// meal-break state machines, the write-through persistence cycle, and the
// derived report views. All commands and scheduled callbacks serialize on
// one mutex, so transitions always run to completion.
type Service struct {
	mu       sync.Mutex
	gateway  Gateway
	idGen    IDGenerator
	clock    Clock
	schedule Scheduler
	logger   Logger

	state  ledgerState
	loaded bool

	timer      timerState
	breakState mealBreakState

	cancelAutoStop func() bool
	cancelAutoSave func() bool

	subscribers []func(domain.Event)
}

// NewService constructs a new value for this package.
func NewService(gateway Gateway, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	settings := cfg.InitialSettings
	if settings == (domain.Settings{}) {
		settings = domain.DefaultSettings()
	}

	svc := &Service{
		gateway:  gateway,
		idGen:    idGen,
		clock:    clock,
		schedule: defaultScheduler,
		logger:   nopLogger{},
		state:    newLedgerState(),
	}
	svc.state.Settings = settings
	return svc
}

// SetLogger installs the runtime logger for background cycles.
func (s *Service) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetScheduler overrides the timer scheduler. Test hook.
func (s *Service) SetScheduler(schedule Scheduler) {
	if schedule == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = schedule
}

// Subscribe registers an observer for transition events. Observers run
// synchronously after the mutation commits.
func (s *Service) Subscribe(fn func(domain.Event)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Load reads the root record through the gateway, migrates older schemas,
// and recovers a running timer left open by a crash.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	data, err := s.gateway.Load(ctx)
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}
	if data == nil {
		if err := s.state.Settings.Validate(); err != nil {
			return validationErr(RuleSettingRange, err)
		}
		s.loaded = true
		return nil
	}

	migratedData, migrated, err := migrateRaw(data)
	if err != nil {
		return err
	}
	state, err := decodeState(migratedData)
	if err != nil {
		return err
	}
	s.state = state
	s.loaded = true

	if migrated {
		s.logger.Info("schema migrated", "version", SchemaVersion)
		if err := s.saveLocked(ctx); err != nil {
			s.loaded = false
			return &PersistenceError{Op: "save migrated state", Err: err}
		}
	}

	if err := s.recoverOpenEntryLocked(ctx); err != nil {
		return err
	}
	if err := s.recoverStaleBreaksLocked(ctx); err != nil {
		return err
	}
	if idx := s.state.openBreakIndex(domain.DateOf(s.clock())); idx >= 0 {
		brk := s.state.Breaks[idx]
		s.logger.Info("resuming open meal break", "break_id", brk.ID, "started_at", brk.StartTime)
		s.breakState = mealBreakState{breakID: brk.ID, startedAt: brk.StartTime}
	}
	return nil
}

// recoverOpenEntryLocked resumes or force-closes an entry left running by
// a previous process.
func (s *Service) recoverOpenEntryLocked(ctx context.Context) error {
	idx := s.state.openEntryIndex()
	if idx < 0 {
		return nil
	}
	entry := s.state.Entries[idx]
	now := s.clock()
	if now.Sub(entry.StartTime) >= s.timerCapLocked() {
		s.logger.Warn("recovered stale running entry; force-closing", "entry_id", entry.ID, "started_at", entry.StartTime)
		s.timer = timerState{entryID: entry.ID, taskID: entry.TaskID, startedAt: entry.StartTime}
		_, err := s.stopTimerLocked(ctx, true)
		return err
	}
	s.logger.Info("resuming running entry", "entry_id", entry.ID, "task_id", entry.TaskID, "started_at", entry.StartTime)
	s.timer = timerState{entryID: entry.ID, taskID: entry.TaskID, startedAt: entry.StartTime}
	s.scheduleAutoStopLocked()
	s.scheduleAutoSaveLocked()
	return nil
}

// recoverStaleBreaksLocked force-closes breaks left open on a prior day.
// Only today's open break may resume; an older one closes against its own
// date, truncated past the meal-break cap.
func (s *Service) recoverStaleBreaksLocked(ctx context.Context) error {
	now := s.clock()
	today := domain.DateOf(now)
	var stale []int
	for i := range s.state.Breaks {
		if s.state.Breaks[i].Open() && s.state.Breaks[i].Date != today {
			stale = append(stale, i)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return s.commit(ctx, "close stale meal breaks", func(state *ledgerState) error {
		for _, i := range stale {
			brk := &state.Breaks[i]
			s.logger.Warn("recovered open meal break from prior day; force-closing", "break_id", brk.ID, "date", brk.Date)
			end := now
			if !end.After(brk.StartTime) {
				end = brk.StartTime.Add(time.Millisecond)
			}
			if err := brk.Close(end); err != nil {
				return validationErr(RuleBreakBounds, err)
			}
			recomputeWorkDay(state, brk.Date)
		}
		return nil
	})
}

// Close cancels scheduled callbacks and flushes a final save. Guaranteed
// cancellation on teardown keeps a stale auto-stop from firing later.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimersLocked()
	if !s.loaded {
		return nil
	}
	if err := s.saveLocked(ctx); err != nil {
		return &PersistenceError{Op: "final save", Err: err}
	}
	return nil
}

// cancelTimersLocked stops the pending auto-stop and autosave callbacks.
func (s *Service) cancelTimersLocked() {
	if s.cancelAutoStop != nil {
		s.cancelAutoStop()
		s.cancelAutoStop = nil
	}
	if s.cancelAutoSave != nil {
		s.cancelAutoSave()
		s.cancelAutoSave = nil
	}
}

// commit applies fn against the ledger, writes through the gateway, and
// rolls back the in-memory state when either step fails.
func (s *Service) commit(ctx context.Context, op string, fn func(state *ledgerState) error) error {
	if !s.loaded {
		return ErrNotLoaded
	}
	snapshot := s.state.clone()
	if err := fn(&s.state); err != nil {
		s.state = snapshot
		return err
	}
	if err := s.saveLocked(ctx); err != nil {
		s.state = snapshot
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

// saveLocked encodes and saves the state. The retention purge runs inside
// the same cycle: the pruned state is adopted only after the save lands.
func (s *Service) saveLocked(ctx context.Context) error {
	now := s.clock()
	pruned := applyRetention(s.state, domain.DateOf(now))
	data, err := pruned.encode(now)
	if err != nil {
		return fmt.Errorf("encode root record: %w", err)
	}
	if err := s.gateway.Save(ctx, data); err != nil {
		return err
	}
	s.state = pruned
	return nil
}

// recomputeWorkDay refreshes the cached rollup for date. Runs inside
// a commit so the cache always matches the committed ledger.
func recomputeWorkDay(state *ledgerState, date domain.Date) {
	state.WorkDays[date] = report.ComputeWorkDay(date, state.Entries, state.Breaks, state.Counters)
}

// emitLocked fans one event out to subscribers.
func (s *Service) emitLocked(event domain.Event) {
	for _, fn := range s.subscribers {
		fn(event)
	}
}

// CreateTask creates a task.
func (s *Service) CreateTask(ctx context.Context, name, color string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	task, err := domain.NewTask(s.idGen(), name, color, now)
	if err != nil {
		return domain.Task{}, err
	}
	err = s.commit(ctx, "create task", func(state *ledgerState) error {
		state.Tasks = append(state.Tasks, task)
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	s.emitLocked(domain.Event{Kind: domain.EventTaskCreated, TaskID: task.ID, Date: domain.DateOf(now), OccurredAt: now})
	return task, nil
}

// ArchiveTask soft-deletes a task. The task owning the running timer must
// be stopped first.
func (s *Service) ArchiveTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}
	idx := s.state.taskIndex(taskID)
	if idx < 0 || s.state.Tasks[idx].Archived() {
		return ErrInvalidTask
	}
	if s.timer.running() && s.timer.taskID == taskID {
		return validationErr(RuleTimerAlreadyRunning, errors.New("stop the running timer before archiving its task"))
	}

	now := s.clock()
	err := s.commit(ctx, "archive task", func(state *ledgerState) error {
		state.Tasks[idx].Archive(now)
		return nil
	})
	if err != nil {
		return err
	}
	s.emitLocked(domain.Event{Kind: domain.EventTaskArchived, TaskID: taskID, Date: domain.DateOf(now), OccurredAt: now})
	return nil
}

// UpdateTimeEntry retroactively rewrites an entry's span and note, marking
// it manual. Only closed entries can be edited.
func (s *Service) UpdateTimeEntry(ctx context.Context, entryID string, start, end time.Time, note string) (domain.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.TimeEntry{}, ErrNotLoaded
	}
	var updated domain.TimeEntry
	err := s.commit(ctx, "update time entry", func(state *ledgerState) error {
		for i := range state.Entries {
			entry := &state.Entries[i]
			if entry.ID != entryID {
				continue
			}
			if entry.Open() {
				return validationErr(RuleSingleOpenEntry, errors.New("stop the running timer before editing its entry"))
			}
			oldDate := entry.Date
			oldDuration := entry.Duration
			if err := entry.EditTimes(start, end, note); err != nil {
				return validationErr(RuleEntryBounds, err)
			}
			if err := entry.Validate(); err != nil {
				return validationErr(RuleEntryBounds, err)
			}
			if tIdx := state.taskIndex(entry.TaskID); tIdx >= 0 {
				state.Tasks[tIdx].TotalTime += entry.Duration - oldDuration
				if state.Tasks[tIdx].TotalTime < 0 {
					state.Tasks[tIdx].TotalTime = 0
				}
			}
			recomputeWorkDay(state, oldDate)
			if entry.Date != oldDate {
				recomputeWorkDay(state, entry.Date)
			}
			updated = *entry
			return nil
		}
		return validationErr(RuleEntryBounds, fmt.Errorf("time entry %s not found", entryID))
	})
	if err != nil {
		return domain.TimeEntry{}, err
	}
	return updated, nil
}

// IncrementActivityCounter bumps the (today, activityType) counter.
func (s *Service) IncrementActivityCounter(ctx context.Context, activityType string) (domain.ActivityCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.ActivityCounter{}, ErrNotLoaded
	}
	now := s.clock()
	date := domain.DateOf(now)
	var out domain.ActivityCounter
	err := s.commit(ctx, "increment activity counter", func(state *ledgerState) error {
		idx := state.counterIndex(date, strings.TrimSpace(activityType))
		if idx < 0 {
			counter, err := domain.NewActivityCounter(date, activityType, now)
			if err != nil {
				return validationErr(RuleCounterBounds, err)
			}
			state.Counters = append(state.Counters, counter)
			idx = len(state.Counters) - 1
		}
		state.Counters[idx].Increment(now)
		if err := state.Counters[idx].Validate(); err != nil {
			return validationErr(RuleCounterBounds, err)
		}
		recomputeWorkDay(state, date)
		out = state.Counters[idx]
		return nil
	})
	if err != nil {
		return domain.ActivityCounter{}, err
	}
	return out, nil
}

// ResetActivityCounter zeroes the (date, activityType) counter.
func (s *Service) ResetActivityCounter(ctx context.Context, date domain.Date, activityType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}
	now := s.clock()
	return s.commit(ctx, "reset activity counter", func(state *ledgerState) error {
		idx := state.counterIndex(date, strings.TrimSpace(activityType))
		if idx < 0 {
			return validationErr(RuleCounterBounds, fmt.Errorf("no counter for %s/%s", date, activityType))
		}
		state.Counters[idx].Reset(now)
		recomputeWorkDay(state, date)
		return nil
	})
}

// UpdateSetting applies one settings key from its string form. Out-of-range
// values are rejected, never clamped.
func (s *Service) UpdateSetting(ctx context.Context, key, value string) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.Settings{}, ErrNotLoaded
	}
	next := s.state.Settings
	if err := applySetting(&next, key, value); err != nil {
		return domain.Settings{}, validationErr(RuleSettingRange, err)
	}
	if err := next.Validate(); err != nil {
		return domain.Settings{}, validationErr(RuleSettingRange, err)
	}

	err := s.commit(ctx, "update setting", func(state *ledgerState) error {
		state.Settings = next
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}

	// A changed cap applies to the timer already running.
	if s.timer.running() {
		if s.cancelAutoStop != nil {
			s.cancelAutoStop()
			s.cancelAutoStop = nil
		}
		s.scheduleAutoStopLocked()
	}
	return next, nil
}

// applySetting parses one settings field from its string form.
func applySetting(settings *domain.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "required_daily_presence":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("required_daily_presence: %w", err)
		}
		settings.RequiredDailyPresence = d
	case "timer_max_duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("timer_max_duration: %w", err)
		}
		settings.TimerMaxDuration = d
	case "theme":
		if value == "" {
			return errors.New("theme must not be empty")
		}
		settings.Theme = value
	case "time_format_24h":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("time_format_24h: %w", err)
		}
		settings.TimeFormat24h = b
	case "auto_save_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("auto_save_interval: %w", err)
		}
		settings.AutoSaveInterval = d
	case "data_retention_weeks":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("data_retention_weeks: %w", err)
		}
		settings.DataRetentionWeeks = n
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// defaultScheduler wraps time.AfterFunc.
func defaultScheduler(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// nopLogger discards background-cycle logging until a real logger is set.
type nopLogger struct{}

func (nopLogger) Debug(interface{}, ...interface{}) {}
func (nopLogger) Info(interface{}, ...interface{})  {}
func (nopLogger) Warn(interface{}, ...interface{})  {}
func (nopLogger) Error(interface{}, ...interface{}) {}
