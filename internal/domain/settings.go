package domain

import (
	"fmt"
	"time"
)

// Settings bounds enforced on every write.
const (
	MinRequiredDailyPresence = time.Hour
	MaxRequiredDailyPresence = 16 * time.Hour
	MinTimerMaxDuration      = time.Hour
	MaxTimerMaxDuration      = 24 * time.Hour
	MinAutoSaveInterval      = time.Second
	MaxAutoSaveInterval      = 300 * time.Second
	MinDataRetentionWeeks    = 1
	MaxDataRetentionWeeks    = 52
)

// Settings holds the user-tunable engine policies.
type Settings struct {
	RequiredDailyPresence time.Duration
	TimerMaxDuration      time.Duration
	Theme                 string
	TimeFormat24h         bool
	AutoSaveInterval      time.Duration
	DataRetentionWeeks    int
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		RequiredDailyPresence: 8 * time.Hour,
		TimerMaxDuration:      12 * time.Hour,
		Theme:                 "system",
		TimeFormat24h:         true,
		AutoSaveInterval:      30 * time.Second,
		DataRetentionWeeks:    12,
	}
}

// Validate checks every setting against its documented range.
func (s Settings) Validate() error {
	if s.RequiredDailyPresence < MinRequiredDailyPresence || s.RequiredDailyPresence > MaxRequiredDailyPresence {
		return fmt.Errorf("required_daily_presence %v outside [%v, %v]", s.RequiredDailyPresence, MinRequiredDailyPresence, MaxRequiredDailyPresence)
	}
	if s.TimerMaxDuration < MinTimerMaxDuration || s.TimerMaxDuration > MaxTimerMaxDuration {
		return fmt.Errorf("timer_max_duration %v outside [%v, %v]", s.TimerMaxDuration, MinTimerMaxDuration, MaxTimerMaxDuration)
	}
	if s.AutoSaveInterval < MinAutoSaveInterval || s.AutoSaveInterval > MaxAutoSaveInterval {
		return fmt.Errorf("auto_save_interval %v outside [%v, %v]", s.AutoSaveInterval, MinAutoSaveInterval, MaxAutoSaveInterval)
	}
	if s.DataRetentionWeeks < MinDataRetentionWeeks || s.DataRetentionWeeks > MaxDataRetentionWeeks {
		return fmt.Errorf("data_retention_weeks %d outside [%d, %d]", s.DataRetentionWeeks, MinDataRetentionWeeks, MaxDataRetentionWeeks)
	}
	return nil
}
