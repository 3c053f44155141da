package tts

import (
	"context"
	"fmt"

	"github.com/loqalabs/loqa-podcast/internal/config"
)

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	Text    string
	VoiceID string
	TraceID string
}

// Audio is an encoded, directly playable audio payload.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (Audio, error)
}

// StatusError reports a non-success HTTP status from a backend.
type StatusError struct {
	Backend string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Backend, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.Status, e.Body)
}

// New returns the backend selected by cfg.Mode.
func New(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "elevenlabs":
		return NewElevenLabsSynth(cfg.Endpoint, cfg.APIKey, VoiceSettings{
			ModelID:         cfg.ModelID,
			Stability:       cfg.Stability,
			SimilarityBoost: cfg.SimilarityBoost,
		}), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.SampleRate, cfg.Channels)
	case "mock":
		return NewMockSynth(cfg.SampleRate, cfg.Channels), nil
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}
