// Package service is the thin façade cmd/codescout and any future
// transport call into: it owns request-ID/session bookkeeping and the
// single pipeline.Runtime shared by every query.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/codescout/internal/accountant"
	"github.com/kadirpekel/codescout/internal/envelope"
	"github.com/kadirpekel/codescout/internal/pipeline"
	"github.com/kadirpekel/codescout/internal/storage"
)

// Service drives one-shot and streaming queries against a fixed
// pipeline.Runtime.
type Service struct {
	runtime  *pipeline.Runtime
	sessions storage.SessionStore
	eventLog storage.EventLog
	acct     accountant.Accountant
}

// Option configures optional collaborators on a Service.
type Option func(*Service)

// WithSessionStore persists each request's working-memory digest after the
// terminal event, keyed by session id.
func WithSessionStore(s storage.SessionStore) Option {
	return func(svc *Service) { svc.sessions = s }
}

// WithEventLog appends every stage event and the terminal event to an
// append-only log keyed by request id.
func WithEventLog(l storage.EventLog) Option {
	return func(svc *Service) { svc.eventLog = l }
}

// WithAccountant releases a request's usage counters once its terminal
// event has been emitted and recorded.
func WithAccountant(a accountant.Accountant) Option {
	return func(svc *Service) { svc.acct = a }
}

// New wraps runtime in a Service.
func New(runtime *pipeline.Runtime, opts ...Option) *Service {
	svc := &Service{runtime: runtime}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Request is the full inbound shape of one query. Query/QueryStream cover
// the common case; Submit/SubmitStream accept the options too.
type Request struct {
	Query     string
	SessionID string
	// MaxReintent, when non-nil, overrides the default bound on
	// critic-driven re-entries for this request only.
	MaxReintent *int
	// Deadline, when set, bounds the whole request; expiry terminates it
	// cooperatively like any other cancellation.
	Deadline time.Time
}

// Response is the single-shot result of Query: the terminal answer plus
// enough metadata for a caller to judge how the request ended.
type Response struct {
	RequestID         string
	FinalResponse     string
	CitedSources      []string
	TerminationReason envelope.TerminationReason
	Usage             envelope.ResourceUsage
}

// sessionState is the serialized working memory persisted per session: just
// enough for the next request's Perception digest, not a full envelope.
type sessionState struct {
	LastQuery    string   `json:"last_query"`
	LastResponse string   `json:"last_response"`
	Citations    []string `json:"citations"`
	UpdatedAt    string   `json:"updated_at"`
}

// Query runs query to completion and returns its terminal response. A
// caller-supplied sessionID threads session-scoped history into
// Perception; an empty sessionID starts a fresh, history-less session.
func (s *Service) Query(ctx context.Context, query, sessionID string) (*Response, error) {
	return s.run(ctx, Request{Query: query, SessionID: sessionID}, nil)
}

// Submit is Query with the full request shape, including per-request
// options.
func (s *Service) Submit(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, req, nil)
}

// SubmitStream is QueryStream with the full request shape.
func (s *Service) SubmitStream(ctx context.Context, req Request, onEvent func(any)) (*Response, error) {
	return s.run(ctx, req, onEvent)
}

// QueryStream runs query to completion like Query but additionally forwards
// every stage-boundary pipeline.Event (and the final pipeline.TerminalEvent)
// to the caller as they are produced, for a progress-reporting CLI or
// future streaming transport.
func (s *Service) QueryStream(ctx context.Context, query, sessionID string, onEvent func(any)) (*Response, error) {
	return s.run(ctx, Request{Query: query, SessionID: sessionID}, onEvent)
}

func (s *Service) run(ctx context.Context, req Request, onEvent func(any)) (*Response, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("service: query must not be empty")
	}

	requestID := uuid.NewString()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	env := envelope.New(requestID, sessionID, req.Query, time.Now())
	if req.MaxReintent != nil && *req.MaxReintent >= 0 {
		env.ReintentLimit = *req.MaxReintent
	}

	events := make(chan any, 16)
	var terminal pipeline.TerminalEvent

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.runtime.Run(gctx, env, events)
		close(events)
		return nil
	})
	g.Go(func() error {
		for evt := range events {
			if onEvent != nil {
				onEvent(evt)
			}
			s.appendEvent(requestID, evt)
			if t, ok := evt.(pipeline.TerminalEvent); ok {
				terminal = t
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.persistSession(sessionID, req.Query, terminal)
	if s.acct != nil {
		s.acct.Reset(requestID)
	}

	return &Response{
		RequestID:         requestID,
		FinalResponse:     terminal.FinalResponse,
		CitedSources:      terminal.CitedSources,
		TerminationReason: terminal.TerminationReason,
		Usage:             terminal.Usage,
	}, nil
}

// appendEvent records one event in the append-only log. Persistence is
// best-effort: a storage failure never fails the request it describes.
func (s *Service) appendEvent(requestID string, evt any) {
	if s.eventLog == nil {
		return
	}
	eventType := "stage"
	if _, ok := evt.(pipeline.TerminalEvent); ok {
		eventType = "terminal"
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("event log marshal failed", "request_id", requestID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.eventLog.AppendEvent(ctx, requestID, eventType, payload); err != nil {
		slog.Warn("event log append failed", "request_id", requestID, "error", err)
	}
}

// persistSession saves the session's working-memory digest for the next
// request's Perception stage. Best-effort, like appendEvent.
func (s *Service) persistSession(sessionID, query string, terminal pipeline.TerminalEvent) {
	if s.sessions == nil {
		return
	}
	state, err := json.Marshal(sessionState{
		LastQuery:    query,
		LastResponse: terminal.FinalResponse,
		Citations:    terminal.CitedSources,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sessions.SaveSession(ctx, sessionID, state); err != nil {
		slog.Warn("session save failed", "session_id", sessionID, "error", err)
	}
}

// SessionDigest builds the Perception-stage digest function over a session
// store: a one-line summary of the previous exchange, or empty for a fresh
// or unknown session.
func SessionDigest(sessions storage.SessionStore) func(sessionID string) string {
	return func(sessionID string) string {
		if sessions == nil || sessionID == "" {
			return ""
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		raw, err := sessions.LoadSession(ctx, sessionID)
		if err != nil || len(raw) == 0 {
			return ""
		}
		var state sessionState
		if err := json.Unmarshal(raw, &state); err != nil {
			return ""
		}
		return fmt.Sprintf("previous question: %q; %d citation(s) gathered", state.LastQuery, len(state.Citations))
	}
}
