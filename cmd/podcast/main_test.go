package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestWordsCommand(t *testing.T) {
	out, _, err := run(t, "words", "5")
	require.NoError(t, err)
	assert.Equal(t, "5 minutes -> 750 words\n", out)

	out, _, err = run(t, "words", "abc")
	require.NoError(t, err)
	assert.Equal(t, "5 minutes -> 750 words\n", out)

	out, _, err = run(t, "words", "999")
	require.NoError(t, err)
	assert.Equal(t, "60 minutes -> 9000 words\n", out)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestGenerateCommand(t *testing.T) {
	audio := []byte("RIFF....WAVE")
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		encoded := base64.StdEncoding.EncodeToString(audio)
		_ = json.NewEncoder(w).Encode(protocol.GenerateResponse{
			Script:           "[00:00] Hello",
			Audio:            &encoded,
			AudioContentType: "audio/wav",
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	out, stderr, err := run(t, "generate", "--server", srv.URL, "--topic", "Rockets", "--out", filepath.Join(dir, "episode"))
	require.NoError(t, err)
	assert.Equal(t, "[00:00] Hello\n", out)
	assert.Contains(t, stderr, "about 750 words")

	data, err := os.ReadFile(filepath.Join(dir, "episode.wav"))
	require.NoError(t, err)
	assert.Equal(t, audio, data)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateCommandValidation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, _, err := run(t, "generate", "--server", srv.URL)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "topic is required"))

	_, _, err = run(t, "generate", "--server", srv.URL, "--mode", "dialogue", "--speaker-a", "Host", "--topic", "AI")
	require.Error(t, err)

	assert.Zero(t, calls.Load())
}

func TestGenerateCommandOverNATS(t *testing.T) {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: server.RANDOM_PORT, NoSigs: true, NoLog: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	defer ns.Shutdown()

	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	var got protocol.GenerateRequest
	_, err = conn.Subscribe(protocol.SubjectGenerate, func(msg *nats.Msg) {
		_ = json.Unmarshal(msg.Data, &got)
		data, _ := json.Marshal(protocol.GenerateResponse{Script: "[00:00] from the bus", SynthesisError: "speech synthesis failed"})
		_ = msg.Respond(data)
	})
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	out, stderr, err := run(t, "generate", "--nats", ns.ClientURL(), "--topic", "Bees", "--minutes", "2")
	require.NoError(t, err)
	assert.Equal(t, "[00:00] from the bus\n", out)
	assert.Contains(t, stderr, "warning: audio unavailable")
	assert.Equal(t, "Bees", got.Topic)
	assert.Equal(t, protocol.MinutesOf(2), got.Minutes)
}
