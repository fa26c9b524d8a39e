package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"launcherd/internal/app"
	"launcherd/internal/backend/simulated"
	"launcherd/internal/storage/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range tests {
		if got := parseLogLevel(raw); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNewBackendSimulated(t *testing.T) {
	cfg := app.Config{BackendMode: app.BackendSimulated, SimulatedStartup: "ready"}
	backend, events, closeFn, err := newBackend(context.Background(), cfg, "inst", discardLogger())
	if err != nil {
		t.Fatalf("newBackend: %v", err)
	}
	defer closeFn()
	sim, ok := backend.(*simulated.Backend)
	if !ok {
		t.Fatalf("backend = %T", backend)
	}
	if src, ok := events.(*simulated.Backend); !ok || src != sim {
		t.Fatal("simulated backend should also be the event source")
	}
}

func TestNewBackendUnknownMode(t *testing.T) {
	_, _, _, err := newBackend(context.Background(), app.Config{BackendMode: "carrier-pigeon"}, "inst", discardLogger())
	if err == nil {
		t.Fatal("expected error for unknown backend mode")
	}
}

func TestNewJournal(t *testing.T) {
	journal, closeFn, err := newJournal(context.Background(), app.Config{JournalEnabled: false}, discardLogger())
	if err != nil || journal != nil {
		t.Fatalf("disabled journal = %v, %v", journal, err)
	}
	closeFn()

	journal, closeFn, err = newJournal(context.Background(), app.Config{JournalEnabled: true, JournalMemoryCapacity: 8}, discardLogger())
	if err != nil {
		t.Fatalf("newJournal: %v", err)
	}
	defer closeFn()
	if _, ok := journal.(*memory.Journal); !ok {
		t.Fatalf("journal = %T, want *memory.Journal", journal)
	}
}
