package domain

import "encoding/json"

// EventType is the wire event vocabulary of the chat stream.
type EventType string

const (
	EventTypeChunk      EventType = "chunk"
	EventTypeSources    EventType = "sources"
	EventTypeConfidence EventType = "confidence"
	EventTypeDone       EventType = "done"
	EventTypeError      EventType = "error"
)

// StreamEvent is one event on the chat stream. The pipeline emits events on a
// bounded channel; the transport layer serializes them to the wire. Exactly
// one Done or Error terminates the stream and nothing follows it.
type StreamEvent struct {
	Type EventType `json:"type"`

	// chunk
	Content string `json:"content,omitempty"`

	// sources
	Citations []Citation `json:"citations,omitempty"`

	// confidence
	Level ConfidenceLevel `json:"level,omitempty"`

	// done
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`

	// error
	Error      string    `json:"error,omitempty"`
	Code       ErrorCode `json:"code,omitempty"`
	RetryAfter int       `json:"retryAfter,omitempty"` // seconds, rate-limit only
}

// Terminal reports whether no further events may follow this one.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventTypeDone || e.Type == EventTypeError
}

// MarshalJSON emits only the keys that belong to the event's variant. A sources
// event always carries the citations array, empty rather than absent, so
// clients never have to special-case a missing field.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{"type": e.Type}
	switch e.Type {
	case EventTypeChunk:
		m["content"] = e.Content
	case EventTypeSources:
		citations := e.Citations
		if citations == nil {
			citations = []Citation{}
		}
		m["citations"] = citations
	case EventTypeConfidence:
		m["level"] = e.Level
	case EventTypeDone:
		m["conversationId"] = e.ConversationID
		m["messageId"] = e.MessageID
	case EventTypeError:
		m["error"] = e.Error
		m["code"] = e.Code
		if e.RetryAfter > 0 {
			m["retryAfter"] = e.RetryAfter
		}
	}
	return json.Marshal(m)
}

// ChunkEvent builds a chunk event for one model token delta.
func ChunkEvent(content string) StreamEvent {
	return StreamEvent{Type: EventTypeChunk, Content: content}
}

// SourcesEvent builds the sources event. An ungrounded answer still produces
// the event with an empty citations array.
func SourcesEvent(citations []Citation) StreamEvent {
	if citations == nil {
		citations = []Citation{}
	}
	return StreamEvent{Type: EventTypeSources, Citations: citations}
}

// ConfidenceEvent builds the confidence event.
func ConfidenceEvent(level ConfidenceLevel) StreamEvent {
	return StreamEvent{Type: EventTypeConfidence, Level: level}
}

// DoneEvent builds the terminal success event.
func DoneEvent(conversationID, messageID string) StreamEvent {
	return StreamEvent{Type: EventTypeDone, ConversationID: conversationID, MessageID: messageID}
}

// ErrorEvent builds the terminal error event.
func ErrorEvent(code ErrorCode, msg string) StreamEvent {
	return StreamEvent{Type: EventTypeError, Code: code, Error: msg}
}
