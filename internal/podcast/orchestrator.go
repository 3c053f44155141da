package podcast

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-podcast/internal/config"
	"github.com/loqalabs/loqa-podcast/internal/eventstore"
	"github.com/loqalabs/loqa-podcast/internal/llm"
	"github.com/loqalabs/loqa-podcast/internal/protocol"
	"github.com/loqalabs/loqa-podcast/internal/tts"
)

const instrumentationName = "github.com/loqalabs/loqa-podcast/podcast"

// ErrScriptGeneration wraps every text generation failure. It is the only
// error Generate returns after validation succeeds.
var ErrScriptGeneration = errors.New("script generation failed")

// TextGenerator produces the script.
type TextGenerator interface {
	Generate(ctx context.Context, req llm.Request) (llm.Completion, error)
}

// SpeechSynthesizer renders the script to audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req tts.SynthRequest) (tts.Audio, error)
}

// Timeline records diagnostic metadata for a generation.
type Timeline interface {
	AppendGeneration(ctx context.Context, generationID, mode string) error
	AppendEvent(ctx context.Context, evt eventstore.Event) error
}

// Publisher broadcasts completed generations; *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Outcome of a generation, used for metrics and events.
const (
	OutcomeComplete = "complete"
	OutcomeTextOnly = "text_only"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Result is the outcome of one generation. Audio and SynthesisError are
// never both set.
type Result struct {
	ID               string
	Mode             Mode
	Script           string
	Audio            []byte
	AudioContentType string
	SynthesisError   string
	TargetWords      int
}

// Response converts r to its wire form with base64 audio.
func (r Result) Response() protocol.GenerateResponse {
	resp := protocol.GenerateResponse{
		ID:             r.ID,
		Script:         r.Script,
		SynthesisError: r.SynthesisError,
		TargetWords:    r.TargetWords,
	}
	if r.Audio != nil {
		encoded := base64.StdEncoding.EncodeToString(r.Audio)
		resp.Audio = &encoded
		resp.AudioContentType = r.AudioContentType
	}
	return resp
}

func (r Result) outcome(synthesisEnabled bool) string {
	switch {
	case r.Audio != nil:
		return OutcomeComplete
	case r.SynthesisError != "":
		return OutcomeDegraded
	case !synthesisEnabled:
		return OutcomeTextOnly
	default:
		return OutcomeDegraded
	}
}

// Orchestrator runs prompt rendering, script generation and speech
// synthesis in sequence for one request.
type Orchestrator struct {
	cfg        *config.Config
	text       TextGenerator
	speech     SpeechSynthesizer
	timeline   Timeline
	publishers []Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *metrics
	newID      func() string
	now        func() time.Time
}

func NewOrchestrator(cfg *config.Config, text TextGenerator, speech SpeechSynthesizer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		text:    text,
		speech:  speech,
		logger:  logger.With(slog.String("component", "orchestrator")),
		tracer:  otel.Tracer(instrumentationName),
		metrics: newMetrics(logger),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// SetTimeline attaches a diagnostic timeline. Call before serving.
func (o *Orchestrator) SetTimeline(t Timeline) { o.timeline = t }

// AddPublisher attaches a completion event publisher. Call before serving.
func (o *Orchestrator) AddPublisher(p Publisher) { o.publishers = append(o.publishers, p) }

// Generate validates req, generates the script and, when a voice is
// configured, the audio. A text generation failure is returned as an error
// wrapping ErrScriptGeneration; a synthesis failure is reported in
// Result.SynthesisError and is not an error.
func (o *Orchestrator) Generate(ctx context.Context, req protocol.GenerateRequest) (Result, error) {
	plan, err := NewPlan(req)
	if err != nil {
		return Result{}, err
	}

	start := o.now()
	id := o.newID()
	mode := plan.Format.Mode()
	log := o.logger.With(slog.String("generation_id", id), slog.String("mode", string(mode)))

	ctx, span := o.tracer.Start(ctx, "podcast.generate", trace.WithAttributes(
		attribute.String("podcast.generation_id", id),
		attribute.String("podcast.mode", string(mode)),
		attribute.Int("podcast.target_words", plan.TargetWords),
	))
	defer span.End()
	traceID := span.SpanContext().TraceID().String()

	o.recordGeneration(ctx, id, mode)
	o.record(ctx, id, traceID, eventstore.TypeRequested, map[string]any{
		"mode":         mode,
		"minutes":      plan.Minutes,
		"target_words": plan.TargetWords,
	})

	result := Result{ID: id, Mode: mode, TargetWords: plan.TargetWords}

	completion, err := o.generateScript(ctx, plan, traceID)
	if err != nil {
		log.Error("script generation failed", slogError(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "script generation failed")
		o.record(ctx, id, traceID, eventstore.TypeGenerationFailed, map[string]any{"error": err.Error()})
		o.finish(ctx, plan, result, OutcomeFailed, start)
		return Result{}, fmt.Errorf("%w: %w", ErrScriptGeneration, err)
	}
	result.Script = completion.Content
	o.record(ctx, id, traceID, eventstore.TypeScriptGenerated, map[string]any{
		"model":             completion.Model,
		"script_chars":      len(result.Script),
		"prompt_tokens":     completion.PromptTokens,
		"completion_tokens": completion.CompletionTokens,
		"latency_ms":        completion.Latency.Milliseconds(),
	})

	synthesisEnabled := o.speech != nil && o.cfg.TTS.SynthesisEnabled()
	if !synthesisEnabled {
		log.Info("voice id not configured, returning script only")
		o.record(ctx, id, traceID, eventstore.TypeSynthesisSkipped, nil)
		o.finish(ctx, plan, result, OutcomeTextOnly, start)
		return result, nil
	}

	audio, err := o.synthesize(ctx, result.Script, traceID)
	switch {
	case err != nil:
		log.Warn("speech synthesis failed, returning script only", slogError(err))
		result.SynthesisError = synthesisReason(err)
		o.record(ctx, id, traceID, eventstore.TypeSynthesisFailed, map[string]any{"error": err.Error()})
	case len(audio.Data) == 0:
		log.Warn("speech synthesis returned no audio")
		result.SynthesisError = "speech synthesis returned no audio"
		o.record(ctx, id, traceID, eventstore.TypeSynthesisFailed, map[string]any{"error": result.SynthesisError})
	default:
		result.Audio = audio.Data
		result.AudioContentType = audio.ContentType
		o.record(ctx, id, traceID, eventstore.TypeSynthesisCompleted, map[string]any{
			"audio_bytes":  len(audio.Data),
			"content_type": audio.ContentType,
		})
	}

	o.finish(ctx, plan, result, result.outcome(synthesisEnabled), start)
	return result, nil
}

func (o *Orchestrator) generateScript(ctx context.Context, plan Plan, traceID string) (llm.Completion, error) {
	ctx, span := o.tracer.Start(ctx, "llm.generate", trace.WithAttributes(attribute.String("llm.mode", o.cfg.LLM.Mode)))
	defer span.End()
	ctx, cancel := withTimeout(ctx, o.cfg.LLM.TimeoutMS)
	defer cancel()

	req := llm.OptionsFromConfig(o.cfg.LLM)
	req.Prompt = plan.Prompt()
	req.TraceID = traceID

	completion, err := o.text.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return llm.Completion{}, err
	}
	span.SetAttributes(attribute.Int("llm.completion_tokens", completion.CompletionTokens))
	return completion, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, script, traceID string) (tts.Audio, error) {
	ctx, span := o.tracer.Start(ctx, "tts.synthesize", trace.WithAttributes(attribute.String("tts.mode", o.cfg.TTS.Mode)))
	defer span.End()
	ctx, cancel := withTimeout(ctx, o.cfg.TTS.TimeoutMS)
	defer cancel()

	audio, err := o.speech.Synthesize(ctx, tts.SynthRequest{Text: script, VoiceID: o.cfg.TTS.VoiceID, TraceID: traceID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return tts.Audio{}, err
	}
	span.SetAttributes(attribute.Int("tts.audio_bytes", len(audio.Data)))
	return audio, nil
}

func (o *Orchestrator) finish(ctx context.Context, plan Plan, result Result, outcome string, start time.Time) {
	elapsed := o.now().Sub(start)
	o.metrics.observe(ctx, plan.Format.Mode(), outcome, elapsed)
	o.logger.Info("generation finished",
		slog.String("generation_id", result.ID),
		slog.String("outcome", outcome),
		slog.Int("script_chars", len(result.Script)),
		slog.Int("audio_bytes", len(result.Audio)),
		slog.Duration("latency", elapsed))

	if len(o.publishers) == 0 {
		return
	}
	evt := protocol.GenerationEvent{
		ID:             result.ID,
		Mode:           string(plan.Format.Mode()),
		Minutes:        plan.Minutes,
		TargetWords:    plan.TargetWords,
		Outcome:        outcome,
		ScriptChars:    len(result.Script),
		AudioBytes:     len(result.Audio),
		SynthesisError: result.SynthesisError,
		LatencyMS:      elapsed.Milliseconds(),
		Timestamp:      o.now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		o.logger.Warn("failed to marshal generation event", slogError(err))
		return
	}
	for _, p := range o.publishers {
		if err := p.Publish(protocol.SubjectGenerationCompleted, data); err != nil {
			o.logger.Warn("failed to publish generation event", slogError(err))
		}
	}
}

func (o *Orchestrator) recordGeneration(ctx context.Context, id string, mode Mode) {
	if o.timeline == nil {
		return
	}
	if err := o.timeline.AppendGeneration(ctx, id, string(mode)); err != nil {
		o.logger.Warn("failed to record generation", slogError(err))
	}
}

func (o *Orchestrator) record(ctx context.Context, id, traceID, eventType string, payload map[string]any) {
	if o.timeline == nil {
		return
	}
	evt := eventstore.Event{GenerationID: id, TraceID: traceID, Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			o.logger.Warn("failed to marshal timeline payload", slogError(err))
			return
		}
		evt.Payload = data
	}
	if err := o.timeline.AppendEvent(ctx, evt); err != nil {
		o.logger.Warn("failed to record timeline event", slog.String("type", eventType), slogError(err))
	}
}

func synthesisReason(err error) string {
	var statusErr *tts.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("speech synthesis failed (status %d)", statusErr.Status)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "speech synthesis timed out"
	}
	return "speech synthesis failed"
}

func withTimeout(ctx context.Context, ms int) (context.Context, context.CancelFunc) {
	if ms <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
