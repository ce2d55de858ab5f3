package pipeline

import (
	"time"

	"github.com/kadirpekel/codescout/internal/envelope"
)

// EventStatus is the finite tagged union a stage-boundary event carries.
type EventStatus string

const (
	EventStarted   EventStatus = "started"
	EventCompleted EventStatus = "completed"
	EventFailed    EventStatus = "failed"
)

// Event is emitted on the outbound channel after each stage boundary. The
// runtime is the sole producer; the service
// façade (or a test) is the sole consumer.
type Event struct {
	RequestID string
	Stage     envelope.Stage
	Status    EventStatus
	Summary   string
	Timestamp time.Time
}

// TerminalEvent is the last event on the channel for a request, carrying
// the same payload shape as Service.Query's single-response mode.
type TerminalEvent struct {
	Event
	FinalResponse     string
	CitedSources      []string
	TerminationReason envelope.TerminationReason
	Usage             envelope.ResourceUsage
}
