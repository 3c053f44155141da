package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/loqalabs/loqa-podcast/internal/config"
	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.Mode = "mock"
	cfg.TTS.Mode = "mock"
	cfg.TTS.VoiceID = "narrator"
	cfg.EventStore.Path = filepath.Join(t.TempDir(), "events.db")
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRuntimeRoutes(t *testing.T) {
	cfg := testConfig(t)
	rt := New(cfg, testLogger())

	shutdown, metricsHandler, err := setupTelemetry(cfg, testLogger())
	if err != nil {
		t.Fatalf("setup telemetry: %v", err)
	}
	rt.tracerClose = shutdown

	handler, err := rt.build(context.Background(), metricsHandler)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(rt.shutdown)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready before start, got %d", resp.StatusCode)
	}
	rt.ready.Store(true)

	for _, path := range []string{"/healthz", "/readyz", "/"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}

	resp, err = http.Post(srv.URL+"/api/generate", "application/json",
		strings.NewReader(`{"mode":"solo","name":"Analyst","topic":"Rockets","minutes":1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body protocol.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Audio == nil || body.AudioContentType != "audio/wav" {
		t.Fatalf("expected mock wav audio, got %+v", body)
	}
	if body.TargetWords != 150 {
		t.Fatalf("expected 150 target words, got %d", body.TargetWords)
	}

	metrics, err := http.Get(srv.URL + cfg.Telemetry.MetricsPath)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(metrics.Body)
	metrics.Body.Close()
	if !strings.Contains(string(data), "podcast_generations") {
		t.Fatalf("expected generation counter in metrics output")
	}
}

func TestRuntimeStartsWithSynthesisDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTS.Mode = "exec"
	cfg.TTS.Command = ""
	cfg.TTS.VoiceID = ""

	rt := New(cfg, testLogger())
	handler, err := rt.build(context.Background(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(rt.shutdown)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/generate", "application/json",
		strings.NewReader(`{"mode":"solo","name":"Analyst","topic":"Rockets","minutes":1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body protocol.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Script == "" || body.Audio != nil || body.SynthesisError != "" {
		t.Fatalf("expected script only without synthesis error, got %+v", body)
	}
}

func TestRuntimeBus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bus.Enabled = true
	cfg.Bus.Embedded = true
	cfg.Bus.Port = server.RANDOM_PORT
	cfg.Bus.StoreDir = t.TempDir()

	rt := New(cfg, testLogger())
	if _, err := rt.build(context.Background(), nil); err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(rt.shutdown)
	rt.ready.Store(true)

	if !rt.isReady() {
		t.Fatal("expected runtime ready with bus connected")
	}

	conn := rt.busClient.Conn()
	events, err := conn.SubscribeSync(protocol.SubjectGenerationCompleted)
	if err != nil {
		t.Fatal(err)
	}

	data, _ := json.Marshal(protocol.GenerateRequest{Mode: "solo", Topic: "Finance", Minutes: protocol.MinutesOf(2)})
	msg, err := conn.Request(protocol.SubjectGenerate, data, 5*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var resp protocol.GenerateResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "" || resp.Script == "" || resp.Audio == nil {
		t.Fatalf("unexpected bus response: %+v", resp)
	}

	evtMsg, err := events.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("expected completion event: %v", err)
	}
	var evt protocol.GenerationEvent
	if err := json.Unmarshal(evtMsg.Data, &evt); err != nil {
		t.Fatal(err)
	}
	if evt.ID != resp.ID || evt.Outcome != "complete" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
