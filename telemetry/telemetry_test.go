package telemetry

import (
	"log/slog"
	"testing"
)

func TestRingHandlerRetainsRecords(t *testing.T) {
	h := NewRingHandler(4, slog.LevelInfo)
	log := slog.New(h)

	log.Info("boot: running application", slog.Int("index", 3))
	log.Warn("boot: entry point sanity check failed")

	if got := h.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	events := h.Drain()
	if len(events) != 2 {
		t.Fatalf("Drain() returned %d events, want 2", len(events))
	}
	if events[0].Message != "boot: running application" {
		t.Errorf("events[0].Message = %q", events[0].Message)
	}
	if events[0].Level != slog.LevelInfo {
		t.Errorf("events[0].Level = %v, want Info", events[0].Level)
	}
	if len(events[0].Attrs) != 1 || events[0].Attrs[0].Key != "index" {
		t.Errorf("events[0].Attrs = %v, want one attr named index", events[0].Attrs)
	}
	if events[1].Level != slog.LevelWarn {
		t.Errorf("events[1].Level = %v, want Warn", events[1].Level)
	}

	if h.Len() != 0 {
		t.Error("expected Drain to empty the buffer")
	}
}

func TestRingHandlerDropsBelowMinLevel(t *testing.T) {
	h := NewRingHandler(4, slog.LevelWarn)
	log := slog.New(h)

	log.Info("update: session failed") // below min level, dropped
	log.Error("update: session failed", slog.String("err", "boom"))

	events := h.Drain()
	if len(events) != 1 {
		t.Fatalf("Drain() returned %d events, want 1", len(events))
	}
	if events[0].Level != slog.LevelError {
		t.Errorf("events[0].Level = %v, want Error", events[0].Level)
	}
}

func TestRingHandlerOverwritesOldestOnOverflow(t *testing.T) {
	h := NewRingHandler(2, slog.LevelInfo)
	log := slog.New(h)

	log.Info("first")
	log.Info("second")
	log.Info("third") // overwrites "first"

	events := h.Drain()
	if len(events) != 2 {
		t.Fatalf("Drain() returned %d events, want 2", len(events))
	}
	if events[0].Message != "second" || events[1].Message != "third" {
		t.Errorf("events = %q, %q; want second, third", events[0].Message, events[1].Message)
	}
}

func TestRingHandlerWithAttrsIsIndependent(t *testing.T) {
	base := NewRingHandler(4, slog.LevelInfo)
	child := base.WithAttrs([]slog.Attr{slog.String("component", "boot")})

	childLogger := slog.New(child)
	childLogger.Info("boot: migrated update into primary")

	if base.Len() != 0 {
		t.Error("logging through a derived handler must not affect the base handler's buffer")
	}

	rh, ok := child.(*RingHandler)
	if !ok {
		t.Fatal("WithAttrs must return a *RingHandler")
	}
	events := rh.Drain()
	if len(events) != 1 {
		t.Fatalf("Drain() returned %d events, want 1", len(events))
	}
	var found bool
	for _, a := range events[0].Attrs {
		if a.Key == "component" && a.Value.String() == "boot" {
			found = true
		}
	}
	if !found {
		t.Error("expected the inherited component attr to be present")
	}
}
