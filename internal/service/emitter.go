package service

import (
	"context"
	"log/slog"
	"sync"

	"gdpetl/internal/etl"
)

// EventEmitter receives run lifecycle events ("etl:run-completed",
// "etl:run-failed"). The CLI logs them; tests record them.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes events to the default slog logger.
type LogEmitter struct{}

func (LogEmitter) Emit(ctx context.Context, event string, data any) {
	if res, ok := data.(*etl.RunResult); ok {
		slog.InfoContext(ctx, event,
			"run", res.RunID,
			"status", res.Status,
			"state", res.State,
			"rows", res.RowsWritten,
		)
		return
	}
	slog.InfoContext(ctx, event, "data", data)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}
