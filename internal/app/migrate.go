package app

import (
	"encoding/json"
	"fmt"

	"github.com/evanschultz/stampla/internal/domain"
)

// migrationStep upgrades a raw root record from schema N to N+1. Steps are
// pure document transforms so an aborted upgrade never half-writes state.
type migrationStep func(doc map[string]any) error

// migrations maps a source version to the step that upgrades it.
var migrations = map[int]migrationStep{
	1: migrateV1ToV2,
	2: migrateV2ToV3,
}

// migrateRaw upgrades a stored root record to the current schema. The
// second return reports whether any step ran. Future versions fail fast
// with UnsupportedSchemaError.
func migrateRaw(data []byte) ([]byte, bool, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, fmt.Errorf("read stored schema version: %w", err)
	}
	switch {
	case probe.Version == SchemaVersion:
		return data, false, nil
	case probe.Version > SchemaVersion:
		return nil, false, &UnsupportedSchemaError{Found: probe.Version, Supported: SchemaVersion}
	case probe.Version < 1:
		return nil, false, fmt.Errorf("stored schema version %d is invalid", probe.Version)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("decode stored state for migration: %w", err)
	}
	for version := probe.Version; version < SchemaVersion; version++ {
		step, ok := migrations[version]
		if !ok {
			return nil, false, fmt.Errorf("no migration step from schema version %d", version)
		}
		if err := step(doc); err != nil {
			return nil, false, fmt.Errorf("migrate schema v%d to v%d: %w", version, version+1, err)
		}
		doc["version"] = version + 1
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, false, fmt.Errorf("encode migrated state: %w", err)
	}
	return out, true, nil
}

// migrateV1ToV2 renames the original "entries" collection and introduces
// meal breaks.
func migrateV1ToV2(doc map[string]any) error {
	if entries, ok := doc["entries"]; ok {
		doc["time_entries"] = entries
		delete(doc, "entries")
	}
	if _, ok := doc["meal_breaks"]; !ok {
		doc["meal_breaks"] = []any{}
	}
	return nil
}

// migrateV2ToV3 introduces activity counters and the autosave/retention
// settings with their defaults.
func migrateV2ToV3(doc map[string]any) error {
	if _, ok := doc["activity_counters"]; !ok {
		doc["activity_counters"] = []any{}
	}
	settings, ok := doc["settings"].(map[string]any)
	if !ok {
		settings = map[string]any{}
		doc["settings"] = settings
	}
	defaults := domain.DefaultSettings()
	if _, ok := settings["auto_save_interval_ms"]; !ok {
		settings["auto_save_interval_ms"] = defaults.AutoSaveInterval.Milliseconds()
	}
	if _, ok := settings["data_retention_weeks"]; !ok {
		settings["data_retention_weeks"] = defaults.DataRetentionWeeks
	}
	if _, ok := settings["required_daily_presence_ms"]; !ok {
		settings["required_daily_presence_ms"] = defaults.RequiredDailyPresence.Milliseconds()
	}
	if _, ok := settings["timer_max_duration_ms"]; !ok {
		settings["timer_max_duration_ms"] = defaults.TimerMaxDuration.Milliseconds()
	}
	if _, ok := settings["theme"]; !ok {
		settings["theme"] = defaults.Theme
	}
	if _, ok := settings["time_format_24h"]; !ok {
		settings["time_format_24h"] = defaults.TimeFormat24h
	}
	return nil
}
