package agentloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of agent event.
type EventKind string

const (
	EventSessionStart   EventKind = "session_start"
	EventSessionEnd     EventKind = "session_end"
	EventCycleStart     EventKind = "cycle_start"
	EventThoughts       EventKind = "thoughts"
	EventAction         EventKind = "action"
	EventAuthorized     EventKind = "authorized"
	EventHumanFeedback  EventKind = "human_feedback"
	EventResult         EventKind = "result"
	EventSummaryUpdated EventKind = "summary_updated"
	EventBudgetWarning  EventKind = "budget_warning"
	EventLoopDetection  EventKind = "loop_detection"
	EventWarning        EventKind = "warning"
	EventError          EventKind = "error"
)

// Event is a typed event emitted by the agent loop.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	AgentID   string         `json:"agent_id"`
	Cycle     int            `json:"cycle"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventEmitter delivers events to the host application via a channel.
type EventEmitter struct {
	agentID string
	ch      chan Event
	closed  bool
	mu      sync.Mutex
}

// NewEventEmitter creates an EventEmitter with a buffered channel.
func NewEventEmitter(agentID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		agentID: agentID,
		ch:      make(chan Event, bufferSize),
	}
}

// Emit sends an event. Events are dropped when the emitter is closed or
// the channel is full, so a slow host never stalls the loop.
func (e *EventEmitter) Emit(kind EventKind, cycle int, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- Event{Kind: kind, Timestamp: time.Now(), AgentID: e.agentID, Cycle: cycle, Data: data}:
	default:
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
