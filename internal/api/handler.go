package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/loqalabs/loqa-podcast/internal/eventstore"
	"github.com/loqalabs/loqa-podcast/internal/podcast"
	"github.com/loqalabs/loqa-podcast/internal/protocol"
	"github.com/loqalabs/loqa-podcast/internal/web"
)

const defaultMaxBodyBytes = 1 << 20

// Generator is satisfied by *podcast.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, req protocol.GenerateRequest) (podcast.Result, error)
}

// Timeline is satisfied by *eventstore.Store.
type Timeline interface {
	ListGenerationEvents(ctx context.Context, generationID string, limit int) ([]eventstore.Event, error)
}

type Handler struct {
	gen          Generator
	timeline     Timeline
	feed         *Feed
	maxBodyBytes int64
	logger       *slog.Logger
}

// New builds the HTTP surface. timeline may be nil, in which case the events
// endpoint always returns an empty list.
func New(gen Generator, timeline Timeline, maxBodyBytes int64, logger *slog.Logger) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		gen:          gen,
		timeline:     timeline,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(slog.String("component", "api")),
	}
}

// SetFeed exposes feed at /api/feed. Call before Register.
func (h *Handler) SetFeed(feed *Feed) { h.feed = feed }

// Register mounts the API and the browser client on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate", h.handleGenerate)
	mux.HandleFunc("GET /api/generations/{id}/events", h.handleEvents)
	if h.feed != nil {
		mux.Handle("GET /api/feed", h.feed)
	}
	mux.Handle("GET /static/", web.StaticHandler())
	mux.Handle("GET /{$}", web.IndexHandler())
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req protocol.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid generate request", slog.String("error", err.Error()))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.gen.Generate(r.Context(), req)
	switch {
	case errors.Is(err, podcast.ErrTopicRequired), errors.Is(err, podcast.ErrSpeakersRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		// Collaborator details stay in the logs.
		http.Error(w, podcast.ErrScriptGeneration.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result.Response(), h.logger)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	events := []eventstore.Event{}
	if h.timeline != nil {
		found, err := h.timeline.ListGenerationEvents(r.Context(), id, limit)
		if err != nil {
			h.logger.Error("failed to list generation events", slog.String("generation_id", id), slog.String("error", err.Error()))
			http.Error(w, "failed to load events", http.StatusInternalServerError)
			return
		}
		if found != nil {
			events = found
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"generation_id": id,
		"events":        events,
	}, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", slog.String("error", err.Error()))
	}
}
