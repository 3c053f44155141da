package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	SubjectGenerate            = "podcast.generate"
	SubjectGenerationCompleted = "podcast.generation.completed"
)

// GenerateRequest is the body of POST /api/generate and of bus requests on
// SubjectGenerate.
type GenerateRequest struct {
	Mode     string  `json:"mode"`
	Name     string  `json:"name,omitempty"`
	Topic    string  `json:"topic"`
	Minutes  Minutes `json:"minutes"`
	SpeakerA string  `json:"speakerA,omitempty"`
	SpeakerB string  `json:"speakerB,omitempty"`
}

// GenerateResponse is the success payload. Audio is base64 and null when no
// audio was produced. Error is only used on the bus, where there is no
// status code to carry a fatal failure.
type GenerateResponse struct {
	ID               string  `json:"id,omitempty"`
	Script           string  `json:"script"`
	Audio            *string `json:"audio"`
	AudioContentType string  `json:"audioContentType,omitempty"`
	SynthesisError   string  `json:"synthesisError,omitempty"`
	TargetWords      int     `json:"targetWords,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// GenerationEvent is broadcast after every generation attempt.
type GenerationEvent struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	Minutes        float64   `json:"minutes"`
	TargetWords    int       `json:"target_words"`
	Outcome        string    `json:"outcome"`
	ScriptChars    int       `json:"script_chars"`
	AudioBytes     int       `json:"audio_bytes"`
	SynthesisError string    `json:"synthesis_error,omitempty"`
	LatencyMS      int64     `json:"latency_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// Minutes is a requested duration that never fails to decode. Numbers and
// numeric strings are accepted; anything else leaves it unset.
type Minutes struct {
	Value float64
	Set   bool
}

func MinutesOf(v float64) Minutes { return Minutes{Value: v, Set: true} }

// ParseMinutes applies the same permissive rules as UnmarshalJSON to text.
// Values beyond float64 range are kept as infinities so callers can clamp
// them.
func ParseMinutes(s string) Minutes {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Minutes{}
	}
	if math.IsNaN(v) {
		return Minutes{}
	}
	return MinutesOf(v)
}

func (m *Minutes) UnmarshalJSON(data []byte) error {
	*m = Minutes{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*m = ParseMinutes(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		// json rejects numbers that overflow float64.
		var num json.Number
		if json.Unmarshal(data, &num) == nil {
			*m = ParseMinutes(num.String())
		}
		return nil
	}
	*m = MinutesOf(v)
	return nil
}

func (m Minutes) MarshalJSON() ([]byte, error) {
	if !m.Set || math.IsNaN(m.Value) {
		return []byte("null"), nil
	}
	if math.IsInf(m.Value, 0) {
		return json.Marshal(math.Copysign(math.MaxFloat64, m.Value))
	}
	return json.Marshal(m.Value)
}
