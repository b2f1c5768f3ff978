package models

import "time"

// ChangeEventType identifies the mutation behind a change event
type ChangeEventType string

const (
	EventMessageCreated   ChangeEventType = "message.created"
	EventStatusMoved      ChangeEventType = "message.moved"
	EventTagToggled       ChangeEventType = "message.tag_toggled"
	EventResponseAppended ChangeEventType = "message.response_appended"
)

// ChangeEvent is emitted after every successful mutation of a message.
// It carries the full post-mutation snapshot so consumers never need to
// read back from the store.
type ChangeEvent struct {
	Type       ChangeEventType `json:"type"`
	BoardID    string          `json:"boardId"`
	MessageID  string          `json:"messageId"`
	Version    int             `json:"version"`
	FromStatus string          `json:"fromStatus,omitempty"`
	ToStatus   string          `json:"toStatus,omitempty"`
	TagID      string          `json:"tagId,omitempty"`
	Message    Message         `json:"message"`
	// BucketOrder holds the complete order of every bucket the mutation
	// touched, keyed by status.
	BucketOrder map[string][]string `json:"bucketOrder,omitempty"`
	OccurredAt  time.Time           `json:"occurredAt"`
}

// StatusChanged reports whether the event moved the message between buckets
func (e *ChangeEvent) StatusChanged() bool {
	return e.FromStatus != "" && e.ToStatus != "" && e.FromStatus != e.ToStatus
}
