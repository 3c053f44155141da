package eventstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-podcast/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{GenerationID: "g", Type: TypeRequested}); err != nil {
		t.Fatalf("append on ephemeral store should be a no-op: %v", err)
	}
	events, err := es.ListGenerationEvents(ctx, "g", 10)
	if err != nil || events != nil {
		t.Fatalf("expected no events, got %v (%v)", events, err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "session"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	id := "gen-123"
	if err := es.AppendGeneration(context.Background(), id, "dialogue"); err != nil {
		t.Fatalf("append generation: %v", err)
	}
	payload := json.RawMessage(`{"target_words":750}`)
	if err := es.AppendEvent(context.Background(), Event{GenerationID: id, Type: TypeRequested, Payload: payload}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{GenerationID: id, Type: TypeScriptGenerated}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	events, err := es.ListGenerationEvents(context.Background(), id, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != TypeRequested || string(events[0].Payload) != `{"target_words":750}` {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Payload != nil {
		t.Fatalf("expected empty payload, got %s", events[1].Payload)
	}
}

func TestPruneByDaysAndGenerations(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "persistent", RetentionDays: 1, MaxGenerations: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendGeneration(context.Background(), "old-gen", "solo"); err != nil {
		t.Fatalf("append generation: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{GenerationID: "old-gen", Type: TypeRequested}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendGeneration(context.Background(), "new-gen", "solo"); err != nil {
		t.Fatalf("append generation: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListGenerationEvents(context.Background(), "old-gen", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old generation pruned")
	}
}
