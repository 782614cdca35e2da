package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling job and callback panics
// =============================================================================

// PanicHandler is called when a worker job or a foreground callback panics.
// Installed on a SingleFlightWorker it acts as the worker's error hook; installed
// on a ForegroundLoop it is the unhandled-callback path task failures surface through.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a job or callback panics.
	//
	// Parameters:
	// - ctx: The context of the failed job (may carry the current worker)
	// - source: The name of the worker or loop where the panic occurred
	// - panicInfo: The panic value recovered
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, source string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics at error level.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic with its stack trace.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, source string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	fields := []Field{F("source", source), F("panic", panicInfo), F("stack", string(stackTrace))}
	if te, ok := panicInfo.(*TaskError); ok && len(te.Stack) > 0 {
		fields = append(fields, F("task_stack", string(te.Stack)))
	}
	logger.Error("unhandled panic", fields...)
}

// PanicHandlerFunc adapts a function to PanicHandler.
type PanicHandlerFunc func(ctx context.Context, source string, panicInfo any, stackTrace []byte)

// HandlePanic calls f.
func (f PanicHandlerFunc) HandlePanic(ctx context.Context, source string, panicInfo any, stackTrace []byte) {
	f(ctx, source, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Methods should be non-blocking and fast to avoid impacting job execution.
type Metrics interface {
	// RecordJobDuration records how long a worker job or foreground callback took.
	RecordJobDuration(source string, duration time.Duration)

	// RecordJobPanic records that a job or callback panicked.
	RecordJobPanic(source string, panicInfo any)

	// RecordQueueDepth records the number of pending jobs of a worker or loop.
	RecordQueueDepth(source string, depth int)

	// RecordJobRejected records a job refused by a closed worker or loop.
	RecordJobRejected(source string, reason string)

	// RecordTaskSwitch records a task hopping to the given side.
	RecordTaskSwitch(owner string, to Side)

	// RecordTaskFinished records a task reaching a terminal state.
	RecordTaskFinished(owner string, state TaskState, duration time.Duration)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordJobDuration(source string, duration time.Duration)                  {}
func (m *NilMetrics) RecordJobPanic(source string, panicInfo any)                              {}
func (m *NilMetrics) RecordQueueDepth(source string, depth int)                                {}
func (m *NilMetrics) RecordJobRejected(source string, reason string)                           {}
func (m *NilMetrics) RecordTaskSwitch(owner string, to Side)                                   {}
func (m *NilMetrics) RecordTaskFinished(owner string, state TaskState, duration time.Duration) {}

// =============================================================================
// RegistryConfig: Configuration for Registry
// =============================================================================

// RegistryConfig holds configuration options for a Registry.
// All handlers are optional; if not provided, default implementations will be used.
type RegistryConfig struct {
	// IdleTimeout is how long an owner's worker goroutine waits for a job
	// before exiting. Defaults to DefaultIdleTimeout.
	IdleTimeout time.Duration

	// HistoryCapacity bounds the finished-task history. Defaults to 100.
	HistoryCapacity int

	// ErrorHook receives worker job panics. When nil they are logged.
	ErrorHook PanicHandler

	// Logger defaults to NoOpLogger.
	Logger Logger

	// Metrics defaults to NilMetrics.
	Metrics Metrics
}

// DefaultRegistryConfig returns a config with default handlers.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		IdleTimeout:     DefaultIdleTimeout,
		HistoryCapacity: defaultTaskHistoryCapacity,
		Logger:          NewNoOpLogger(),
		Metrics:         &NilMetrics{},
	}
}

func (c *RegistryConfig) withDefaults() RegistryConfig {
	out := RegistryConfig{}
	if c != nil {
		out = *c
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = defaultTaskHistoryCapacity
	}
	if out.Logger == nil {
		out.Logger = NewNoOpLogger()
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	return out
}
