package tts

import (
	"context"
	"time"
)

type mockSynth struct {
	sampleRate int
	channels   int
}

func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

// Synthesize returns a quarter second of silence.
func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (Audio, error) {
	select {
	case <-ctx.Done():
		return Audio{}, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}
	pcm := make([]byte, m.sampleRate/4*m.channels*2)
	data, err := encodeWAV(pcm, m.sampleRate, m.channels)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, ContentType: contentTypeWAV}, nil
}
