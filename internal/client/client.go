// Package client submits generation requests to a running podcastd and
// turns the response into playable audio.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/loqalabs/loqa-podcast/internal/podcast"
	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

const defaultContentType = "audio/mpeg"

// Form is the user's input before submission.
type Form struct {
	Mode     podcast.Mode
	Name     string
	Topic    string
	Minutes  float64
	SpeakerA string
	SpeakerB string
}

// DefaultForm is the state a reset returns to.
func DefaultForm() Form {
	return Form{Mode: podcast.ModeSolo, Minutes: podcast.DefaultMinutes}
}

// Validate applies the same rules as the server so invalid input never
// leaves the process.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Topic) == "" {
		return podcast.ErrTopicRequired
	}
	if f.Mode == podcast.ModeDialogue && (strings.TrimSpace(f.SpeakerA) == "" || strings.TrimSpace(f.SpeakerB) == "") {
		return podcast.ErrSpeakersRequired
	}
	return nil
}

// EstimateWords is the word count the server will target for f.Minutes.
func (f Form) EstimateWords() int {
	return podcast.TargetWords(f.Minutes)
}

// Request is the wire form of f. Fields the mode does not use are dropped.
func (f Form) Request() protocol.GenerateRequest {
	req := protocol.GenerateRequest{
		Mode:    string(f.Mode),
		Topic:   f.Topic,
		Minutes: protocol.MinutesOf(podcast.ClampMinutes(f.Minutes)),
	}
	if f.Mode == podcast.ModeDialogue {
		req.SpeakerA = f.SpeakerA
		req.SpeakerB = f.SpeakerB
	} else {
		req.Name = f.Name
	}
	return req
}

// Result is a successful generation. Audio is nil when none was produced;
// SynthesisError then explains why, unless synthesis is not configured.
type Result struct {
	ID               string
	Script           string
	Audio            []byte
	AudioContentType string
	SynthesisError   string
	TargetWords      int
}

// HasAudio reports whether the result carries playable audio.
func (r Result) HasAudio() bool { return len(r.Audio) > 0 }

// DataURL returns a data: URL for the audio, or "" when there is none.
func (r Result) DataURL() string {
	if !r.HasAudio() {
		return ""
	}
	return DataURL(r.AudioContentType, r.Audio)
}

// HTTPError is a non-success response; Body is the server's message.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Body
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL. A nil httpClient uses a
// client without a timeout since generation can take minutes.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Generate validates form and, only if valid, submits it.
func (c *Client) Generate(ctx context.Context, form Form) (Result, error) {
	if err := form.Validate(); err != nil {
		return Result{}, err
	}

	body, err := json.Marshal(form.Request())
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("submit generation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var payload protocol.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	return FromResponse(payload)
}

// FromResponse decodes the wire payload, including the base64 audio.
func FromResponse(payload protocol.GenerateResponse) (Result, error) {
	result := Result{
		ID:             payload.ID,
		Script:         payload.Script,
		SynthesisError: payload.SynthesisError,
		TargetWords:    payload.TargetWords,
	}
	if payload.Audio != nil && *payload.Audio != "" {
		audio, err := DecodeAudio(*payload.Audio)
		if err != nil {
			return Result{}, err
		}
		result.Audio = audio
		result.AudioContentType = payload.AudioContentType
		if result.AudioContentType == "" {
			result.AudioContentType = defaultContentType
		}
	}
	return result, nil
}

// DecodeAudio reverses the server's base64 encoding byte for byte.
func DecodeAudio(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return data, nil
}

func DataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = defaultContentType
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ExtensionFor picks a file extension for saved audio.
func ExtensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	default:
		return ".mp3"
	}
}
