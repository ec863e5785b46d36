// Package telemetry mirrors bootloader/updater log records into a small
// fixed-capacity ring buffer of structured events, the ambient observability
// surface a deployment drains and ships off-device (e.g. over the OTA
// console channel) independent of whichever slog.Logger the core packages
// were constructed with.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event is one captured log record.
type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []slog.Attr
}

// RingHandler is an slog.Handler that keeps only the most recent Capacity
// records, overwriting the oldest once full — the same circular-queue
// bookkeeping the teacher's network telemetry sender used for its log/metric
// queues, repurposed here to just retain records for later draining instead
// of shipping them over HTTP itself.
type RingHandler struct {
	mu       sync.Mutex
	buf      []Event
	head     int
	count    int
	attrs    []slog.Attr
	minLevel slog.Leveler
}

// NewRingHandler returns a RingHandler retaining up to capacity events.
func NewRingHandler(capacity int, minLevel slog.Leveler) *RingHandler {
	if capacity <= 0 {
		capacity = 1
	}
	if minLevel == nil {
		minLevel = slog.LevelInfo
	}
	return &RingHandler{buf: make([]Event, capacity), minLevel: minLevel}
}

func (h *RingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel.Level()
}

func (h *RingHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	idx := (h.head + h.count) % len(h.buf)
	if h.count >= len(h.buf) {
		h.head = (h.head + 1) % len(h.buf)
	} else {
		h.count++
	}
	h.buf[idx] = Event{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs}
	return nil
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := &RingHandler{buf: append([]Event(nil), h.buf...), head: h.head, count: h.count, minLevel: h.minLevel}
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

func (h *RingHandler) WithGroup(string) slog.Handler {
	// Groups are not modeled: every record here is a flat key/value set,
	// matching how the core packages log (see §10.1).
	return h
}

// Drain returns every retained event, oldest first, and empties the buffer.
func (h *RingHandler) Drain() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	h.head = 0
	h.count = 0
	return out
}

// Len reports how many events are currently retained.
func (h *RingHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
