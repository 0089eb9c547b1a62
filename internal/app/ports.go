package app

import (
	"context"
	"time"
)

// Gateway is the persistence contract consumed by the ledger: one
// namespaced root record, saved atomically.
type Gateway interface {
	// Load returns the raw root record, or nil when none has been saved.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the root record. Atomic from the caller's
	// perspective: a subsequent Load never observes a partial write.
	Save(ctx context.Context, data []byte) error
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Scheduler runs fn once after d and returns a cancel function reporting
// whether the call was stopped before firing. Injectable so auto-stop and
// autosave are deterministic under test.
type Scheduler func(d time.Duration, fn func()) (cancel func() bool)

// Logger is the minimal logging surface the service needs for background
// cycles. Satisfied by charmbracelet/log.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Error(msg interface{}, keyvals ...interface{})
}
