package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-podcast/internal/config"
	"github.com/loqalabs/loqa-podcast/internal/llm"
	"github.com/loqalabs/loqa-podcast/internal/podcast"
	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

func TestFeedRelaysCompletedGenerations(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Mode = "mock"
	cfg.TTS.Mode = "mock"

	feed := NewFeed(testLogger())
	t.Cleanup(feed.Close)
	orch := podcast.NewOrchestrator(&cfg, llm.NewMockGenerator(), stubSpeech{}, testLogger())
	orch.AddPublisher(feed)

	handler := New(orch, nil, 0, testLogger())
	handler.SetFeed(feed)
	mux := http.NewServeMux()
	handler.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/feed"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return feed.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/generate", "application/json", strings.NewReader(`{"topic":"Rockets","minutes":3}`))
	require.NoError(t, err)
	body := decode(t, resp)
	resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var envelope struct {
		Type string                   `json:"type"`
		Data protocol.GenerationEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, "generation.completed", envelope.Type)
	assert.Equal(t, body["id"], envelope.Data.ID)
	assert.Equal(t, podcast.OutcomeTextOnly, envelope.Data.Outcome)
	assert.Equal(t, 450, envelope.Data.TargetWords)
}

func TestFeedIgnoresOtherSubjects(t *testing.T) {
	feed := NewFeed(testLogger())
	assert.NoError(t, feed.Publish("other.subject", []byte(`{}`)))
	assert.NoError(t, feed.Publish(protocol.SubjectGenerationCompleted, []byte(`{"id":"x"}`)))
	assert.Zero(t, feed.Clients())
}

func TestFeedDropsClosedClients(t *testing.T) {
	feed := NewFeed(testLogger())
	srv := httptest.NewServer(feed)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return feed.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return feed.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	data, _ := json.Marshal(protocol.GenerationEvent{ID: "after-close"})
	assert.NoError(t, feed.Publish(protocol.SubjectGenerationCompleted, data))
}
