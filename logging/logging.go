// Package logging provides structured logging for the relkv engine using
// the standard library's log/slog behind a package-level global logger.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// ContextKey avoids collisions in context values.
type ContextKey string

// TxnIDKey is the context key under which a transaction scope ID is stored.
const TxnIDKey ContextKey = "txn_id"

var defaultLogger *slog.Logger

func init() {
	Init(LevelInfo, FormatJSON)
}

// Level mirrors slog levels without exposing slog to every caller.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format selects the handler used for the default logger.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// Init (re)configures the package-global logger.
func Init(level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// Logger returns the package-global logger.
func Logger() *slog.Logger { return defaultLogger }

// WithTxnID attaches a transaction scope id to a context.
func WithTxnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TxnIDKey, id)
}

func fromContext(ctx context.Context) *slog.Logger {
	if id, ok := ctx.Value(TxnIDKey).(string); ok && id != "" {
		return defaultLogger.With("txn_id", id)
	}
	return defaultLogger
}

// Debug/Info/Warn/Error log without context.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// ScanOpened logs the opening of a range scan with a human-readable
// estimate of rows touched, so operators can spot unexpectedly wide scans.
func ScanOpened(ctx context.Context, table, index string, estRows uint64, args ...any) {
	allArgs := []any{
		"table", table,
		"index", index,
		"est_rows", humanize.Comma(int64(estRows)),
	}
	allArgs = append(allArgs, args...)
	fromContext(ctx).Debug("scan_opened", allArgs...)
}

// TriggerSwapped logs a trigger slot publishing a new trigger instance.
func TriggerSwapped(table string, fromMode, toMode string) {
	defaultLogger.Info("trigger_swapped", "table", table, "from", fromMode, "to", toMode)
}

// LockWait logs a predicate-lock wait, useful for diagnosing contention.
func LockWait(ctx context.Context, table string, waited time.Duration) {
	fromContext(ctx).Warn("predicate_lock_wait", "table", table, "waited_ms", waited.Milliseconds())
}

// PredicateLockAcquired logs the acquisition of a predicate lock guarding a
// scan, tagged with scopeID so a later contention or retry log line for the
// same acquisition can be correlated back to this one.
func PredicateLockAcquired(ctx context.Context, table, index string, scopeID fmt.Stringer) {
	fromContext(ctx).Debug("predicate_lock_acquired", "table", table, "index", index, "scope_id", scopeID.String())
}

// TableRegistered logs a table's registration with its schema fingerprint,
// so a later log line referencing the same fingerprint can be matched back
// to the column layout that produced it.
func TableRegistered(table, schemaFingerprint string) {
	defaultLogger.Info("table_registered", "table", table, "schema_fingerprint", schemaFingerprint)
}

// ComplexFilterFallback logs that filter reduction hit its complexity
// budget and planning continued with a less-optimal, unreduced form.
func ComplexFilterFallback(table string, steps, budget int64) {
	defaultLogger.Warn("complex_filter_fallback", "table", table, "steps", steps, "budget", budget)
}
