package podcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

// Service answers generation requests received on the bus with the same
// Orchestrator that backs the HTTP endpoint.
type Service struct {
	conn       *nats.Conn
	queueGroup string
	orch       *Orchestrator
	sub        *nats.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     bool
	logger     *slog.Logger
}

func NewService(parent context.Context, conn *nats.Conn, queueGroup string, orch *Orchestrator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		conn:       conn,
		queueGroup: queueGroup,
		orch:       orch,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.With(slog.String("component", "podcast-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.conn.QueueSubscribe(protocol.SubjectGenerate, s.queueGroup, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe generation requests: %w", err)
	}
	s.sub = sub
	return nil
}

// Close stops accepting requests, cancels in-flight generations and waits
// for their replies.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.sub != nil && s.sub.IsValid()
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.GenerateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode generation request", slogError(err))
		s.reply(msg, protocol.GenerateResponse{Error: "invalid request body"})
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.reply(msg, protocol.GenerateResponse{Error: "service shutting down"})
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		result, err := s.orch.Generate(s.ctx, req)
		if err != nil {
			resp := protocol.GenerateResponse{Error: ErrScriptGeneration.Error()}
			if errors.Is(err, ErrTopicRequired) || errors.Is(err, ErrSpeakersRequired) {
				resp.Error = err.Error()
			}
			s.reply(msg, resp)
			return
		}
		s.reply(msg, result.Response())
	}()
}

func (s *Service) reply(msg *nats.Msg, resp protocol.GenerateResponse) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to marshal generation response", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond to generation request", slogError(err))
	}
}
