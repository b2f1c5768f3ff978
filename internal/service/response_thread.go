package service

import (
	"strings"
	"time"

	"crmtriage/internal/models"
)

// ResponseThread is the append-only reply log of one message. Appending
// never modifies a previously returned thread.
type ResponseThread struct {
	entries []models.Response
}

// NewResponseThread wraps existing entries
func NewResponseThread(entries []models.Response) ResponseThread {
	return ResponseThread{entries: entries}
}

// Append returns the thread with a new entry after the last one
func (t ResponseThread) Append(text, author string, at time.Time) (ResponseThread, error) {
	if strings.TrimSpace(text) == "" {
		return t, &ValidationError{Message: "response text is required"}
	}

	next := make([]models.Response, len(t.entries), len(t.entries)+1)
	copy(next, t.entries)
	next = append(next, models.Response{
		Text:       text,
		Author:     author,
		AuthoredAt: at,
	})
	return ResponseThread{entries: next}, nil
}

// Entries returns a copy of the entries in append order
func (t ResponseThread) Entries() []models.Response {
	return append([]models.Response{}, t.entries...)
}

// Len returns the number of entries
func (t ResponseThread) Len() int {
	return len(t.entries)
}
