package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const contentTypeMPEG = "audio/mpeg"

// VoiceSettings are fixed per process; they do not vary per request.
type VoiceSettings struct {
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

type elevenLabsSynth struct {
	endpoint string
	apiKey   string
	settings VoiceSettings
	client   *http.Client
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func NewElevenLabsSynth(endpoint, apiKey string, settings VoiceSettings) Synthesizer {
	if settings.ModelID == "" {
		settings.ModelID = "eleven_multilingual_v2"
	}
	return &elevenLabsSynth{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		settings: settings,
		client:   http.DefaultClient,
	}
}

func (s *elevenLabsSynth) Synthesize(ctx context.Context, req SynthRequest) (Audio, error) {
	if req.VoiceID == "" {
		return Audio{}, errors.New("elevenlabs: voice id required")
	}
	body, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: s.settings.ModelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       s.settings.Stability,
			SimilarityBoost: s.settings.SimilarityBoost,
		},
	})
	if err != nil {
		return Audio{}, err
	}

	target := s.endpoint + "/v1/text-to-speech/" + url.PathEscape(req.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return Audio{}, err
	}
	httpReq.Header.Set("xi-api-key", s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", contentTypeMPEG)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Audio{}, &StatusError{Backend: "elevenlabs", Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("read elevenlabs audio: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = contentTypeMPEG
	}
	return Audio{Data: data, ContentType: contentType}, nil
}
