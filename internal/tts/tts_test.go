package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-podcast/internal/config"
)

func TestElevenLabsSynthRequestShape(t *testing.T) {
	audio := []byte{0xff, 0xfb, 0x90, 0x00, 0x01}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))

		var body elevenLabsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "the script", body.Text)
		assert.Equal(t, "eleven_multilingual_v2", body.ModelID)
		assert.Equal(t, 0.5, body.VoiceSettings.Stability)
		assert.Equal(t, 0.8, body.VoiceSettings.SimilarityBoost)

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer srv.Close()

	synth := NewElevenLabsSynth(srv.URL, "xi-key", VoiceSettings{Stability: 0.5, SimilarityBoost: 0.8})
	out, err := synth.Synthesize(context.Background(), SynthRequest{Text: "the script", VoiceID: "voice-1"})
	require.NoError(t, err)
	assert.Equal(t, audio, out.Data)
	assert.Equal(t, "audio/mpeg", out.ContentType)
}

func TestElevenLabsSynthStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":"quota exceeded"}`))
	}))
	defer srv.Close()

	_, err := NewElevenLabsSynth(srv.URL, "k", VoiceSettings{}).Synthesize(context.Background(), SynthRequest{Text: "x", VoiceID: "v"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
	assert.Contains(t, statusErr.Body, "quota exceeded")
}

func TestElevenLabsSynthRequiresVoice(t *testing.T) {
	_, err := NewElevenLabsSynth("http://unused", "k", VoiceSettings{}).Synthesize(context.Background(), SynthRequest{Text: "x"})
	assert.Error(t, err)
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	wav, err := encodeWAV(pcm, 22050, 1)
	require.NoError(t, err)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, uint32(22050), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, pcm, wav[44:])

	_, err = encodeWAV([]byte{1, 2, 3}, 22050, 1)
	assert.Error(t, err)
}

func TestCollectPCMStopsAtFinal(t *testing.T) {
	var stream bytes.Buffer
	for _, chunk := range []struct {
		pcm   []byte
		final bool
	}{{[]byte{1, 2}, false}, {[]byte{3, 4}, true}, {[]byte{9, 9}, false}} {
		line, _ := json.Marshal(execResponse{PCMBase64: base64.StdEncoding.EncodeToString(chunk.pcm), Final: chunk.final})
		stream.Write(line)
		stream.WriteByte('\n')
	}

	pcm, err := collectPCM(bytes.NewReader(stream.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, pcm)
}

func TestExecSynthRunsCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	first := base64.StdEncoding.EncodeToString([]byte{1, 2})
	second := base64.StdEncoding.EncodeToString([]byte{3, 4})
	dir := t.TempDir()
	script := filepath.Join(dir, "tts.sh")
	body := "cat > /dev/null\n" +
		"echo '{\"pcm_base64\":\"" + first + "\"}'\n" +
		"echo '{\"pcm_base64\":\"" + second + "\",\"final\":true}'\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	synth, err := NewExecSynth("sh "+script, 16000, 1)
	require.NoError(t, err)

	out, err := synth.Synthesize(context.Background(), SynthRequest{Text: "hello", VoiceID: "narrator"})
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", out.ContentType)
	require.Len(t, out.Data, 44+4)
	assert.Equal(t, "RIFF", string(out.Data[0:4]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out.Data[24:28]))
	assert.Equal(t, []byte{1, 2, 3, 4}, out.Data[44:])
}

func TestMockSynthProducesWAV(t *testing.T) {
	out, err := NewMockSynth(8000, 1).Synthesize(context.Background(), SynthRequest{Text: "x", VoiceID: "v"})
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", out.ContentType)
	assert.Len(t, out.Data, 44+8000/4*2)
}

func TestNewSelectsBackend(t *testing.T) {
	synth, err := New(config.TTSConfig{Mode: "elevenlabs", Endpoint: "https://api.elevenlabs.io"})
	require.NoError(t, err)
	assert.IsType(t, &elevenLabsSynth{}, synth)

	_, err = New(config.TTSConfig{Mode: "exec", Command: ""})
	assert.Error(t, err)

	_, err = New(config.TTSConfig{Mode: "polly"})
	assert.Error(t, err)
}
