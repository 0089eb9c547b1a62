package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("STAMPLA_DEV_MODE", "false")
	os.Exit(m.Run())
}

// runCLI invokes run() against one temp workspace and returns stdout.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	base := []string{
		"-config", filepath.Join(dir, "config.toml"),
		"-db", filepath.Join(dir, "stampla.db"),
	}
	err := run(context.Background(), append(base, args...), &stdout, &stderr)
	return stdout.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "-version")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out, "stampla") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestPathsCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "paths")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, want := range []string{"config:", "data_dir:", "db:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("paths output missing %q: %q", want, out)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "dance"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestTaskAddAndListFlow(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "task", "add", "-name", "Deep Work", "-color", "#ff8800")
	if err != nil {
		t.Fatalf("task add error = %v", err)
	}
	if !strings.Contains(out, "created task Deep Work") {
		t.Fatalf("unexpected add output %q", out)
	}

	// The task survives a process restart through the sqlite store.
	out, err = runCLI(t, dir, "task", "list")
	if err != nil {
		t.Fatalf("task list error = %v", err)
	}
	if !strings.Contains(out, "Deep Work") {
		t.Fatalf("task missing from list: %q", out)
	}
}

func TestStartStatusStopFlow(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCLI(t, dir, "task", "add", "-name", "Focus"); err != nil {
		t.Fatalf("task add error = %v", err)
	}

	out, err := runCLI(t, dir, "start", "Focus")
	if err != nil {
		t.Fatalf("start error = %v", err)
	}
	if !strings.Contains(out, "started") {
		t.Fatalf("unexpected start output %q", out)
	}

	out, err = runCLI(t, dir, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, `running`) || !strings.Contains(out, "Focus") {
		t.Fatalf("status missing running timer: %q", out)
	}

	out, err = runCLI(t, dir, "stop")
	if err != nil {
		t.Fatalf("stop error = %v", err)
	}
	if !strings.Contains(out, "stopped after") {
		t.Fatalf("unexpected stop output %q", out)
	}

	out, err = runCLI(t, dir, "stop")
	if err != nil {
		t.Fatalf("second stop error = %v", err)
	}
	if !strings.Contains(out, "no timer running") {
		t.Fatalf("expected idle no-op message, got %q", out)
	}
}

func TestStartRejectsSecondTimer(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCLI(t, dir, "task", "add", "-name", "A"); err != nil {
		t.Fatalf("task add error = %v", err)
	}
	if _, err := runCLI(t, dir, "task", "add", "-name", "B"); err != nil {
		t.Fatalf("task add error = %v", err)
	}
	if _, err := runCLI(t, dir, "start", "A"); err != nil {
		t.Fatalf("start error = %v", err)
	}
	if _, err := runCLI(t, dir, "start", "B"); err == nil {
		t.Fatal("expected rejection while a timer is running")
	}
}

func TestBreakFlow(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "break", "start")
	if err != nil {
		t.Fatalf("break start error = %v", err)
	}
	if !strings.Contains(out, "meal break started") {
		t.Fatalf("unexpected break start output %q", out)
	}

	out, err = runCLI(t, dir, "break", "stop")
	if err != nil {
		t.Fatalf("break stop error = %v", err)
	}
	if !strings.Contains(out, "meal break closed") {
		t.Fatalf("unexpected break stop output %q", out)
	}

	out, err = runCLI(t, dir, "break", "stop")
	if err != nil {
		t.Fatalf("second break stop error = %v", err)
	}
	if !strings.Contains(out, "no meal break open") {
		t.Fatalf("expected no-op message, got %q", out)
	}
}

func TestLogActivityCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "log", "commit")
	if err != nil {
		t.Fatalf("log error = %v", err)
	}
	if !strings.Contains(out, "commit: 1 today") {
		t.Fatalf("unexpected log output %q", out)
	}
	out, err = runCLI(t, dir, "log", "commit")
	if err != nil {
		t.Fatalf("second log error = %v", err)
	}
	if !strings.Contains(out, "commit: 2 today") {
		t.Fatalf("count not persisted: %q", out)
	}
}

func TestSetCommandRejectsOutOfRange(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCLI(t, dir, "set", "timer_max_duration", "30h"); err == nil {
		t.Fatal("expected rejection of out-of-range setting")
	}
	out, err := runCLI(t, dir, "set", "timer_max_duration", "10h")
	if err != nil {
		t.Fatalf("set error = %v", err)
	}
	if !strings.Contains(out, "timer_max_duration:      10h0m0s") {
		t.Fatalf("unexpected set output %q", out)
	}
}

func TestDayCommandRejectsBadDate(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "day", "-date", "31/08/2026"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestWeekCommandPrintsFiveDays(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "week")
	if err != nil {
		t.Fatalf("week error = %v", err)
	}
	if !strings.Contains(out, "week of") {
		t.Fatalf("unexpected week output %q", out)
	}
	if got := strings.Count(out, "presence "); got != 5 {
		t.Fatalf("expected 5 week days, got %d in %q", got, out)
	}
}
