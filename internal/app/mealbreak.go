package app

import (
	"context"
	"time"

	"github.com/evanschultz/stampla/internal/domain"
)

// mealBreakState is the explicit OnBreak-state variable of the meal-break
// machine. Zero value means Idle.
type mealBreakState struct {
	breakID   string
	startedAt time.Time
}

// onBreak reports whether the machine is in the OnBreak state.
func (m mealBreakState) onBreak() bool {
	return m.breakID != ""
}

// StartMealBreak opens today's meal break. A second open break for the
// same date is rejected. The task timer keeps running: presence accrues
// while task time does not.
func (s *Service) StartMealBreak(ctx context.Context) (domain.MealBreak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.MealBreak{}, ErrNotLoaded
	}
	now := s.clock()
	date := domain.DateOf(now)
	if s.breakState.onBreak() || s.state.openBreakIndex(date) >= 0 {
		return domain.MealBreak{}, ErrConcurrentMealBreak
	}

	brk, err := domain.NewMealBreak(s.idGen(), now)
	if err != nil {
		return domain.MealBreak{}, validationErr(RuleBreakBounds, err)
	}
	err = s.commit(ctx, "start meal break", func(state *ledgerState) error {
		state.Breaks = append(state.Breaks, brk)
		recomputeWorkDay(state, date)
		return nil
	})
	if err != nil {
		return domain.MealBreak{}, err
	}

	s.breakState = mealBreakState{breakID: brk.ID, startedAt: now}
	s.emitLocked(domain.Event{
		Kind:       domain.EventMealBreakStarted,
		BreakID:    brk.ID,
		Date:       date,
		OccurredAt: now,
	})
	return brk, nil
}

// StopMealBreak closes today's open break, truncating past the 3h cap.
// A stop with no open break is a silent no-op; the bool reports whether a
// break was actually closed.
func (s *Service) StopMealBreak(ctx context.Context) (domain.MealBreak, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.MealBreak{}, false, ErrNotLoaded
	}
	now := s.clock()
	date := domain.DateOf(now)
	idx := s.state.openBreakIndex(date)
	if idx < 0 {
		// A break left open across midnight closes against its own date.
		idx = s.anyOpenBreakLocked()
		if idx < 0 {
			s.breakState = mealBreakState{}
			return domain.MealBreak{}, false, nil
		}
		date = s.state.Breaks[idx].Date
	}

	var closed domain.MealBreak
	err := s.commit(ctx, "stop meal break", func(state *ledgerState) error {
		brk := &state.Breaks[idx]
		end := now
		if !end.After(brk.StartTime) {
			end = brk.StartTime.Add(time.Millisecond)
		}
		if err := brk.Close(end); err != nil {
			return validationErr(RuleBreakBounds, err)
		}
		if err := brk.Validate(); err != nil {
			return validationErr(RuleBreakBounds, err)
		}
		recomputeWorkDay(state, date)
		closed = *brk
		return nil
	})
	if err != nil {
		return domain.MealBreak{}, false, err
	}

	s.breakState = mealBreakState{}
	s.emitLocked(domain.Event{
		Kind:       domain.EventMealBreakStopped,
		BreakID:    closed.ID,
		Date:       closed.Date,
		Duration:   closed.Duration,
		OccurredAt: now,
	})
	return closed, true, nil
}

// anyOpenBreakLocked returns the index of any open break, or -1.
func (s *Service) anyOpenBreakLocked() int {
	for i := range s.state.Breaks {
		if s.state.Breaks[i].Open() {
			return i
		}
	}
	return -1
}
