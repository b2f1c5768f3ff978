package models

import (
	"fmt"
	"strings"
	"time"
)

// Response is one entry of a message's reply thread. Entries are ordered by
// append sequence only.
type Response struct {
	Text       string    `json:"text" db:"text"`
	Author     string    `json:"author,omitempty" db:"author"`
	AuthoredAt time.Time `json:"authoredAt" db:"authored_at"`
}

// Message represents a customer interaction being triaged.
type Message struct {
	ID         string     `json:"id" db:"id"`
	CustomerID string     `json:"customerId" db:"customer_id"`
	CampaignID string     `json:"campaignId" db:"campaign_id"`
	BrandID    string     `json:"brandId" db:"brand_id"`
	Body       string     `json:"body" db:"body"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	Status     string     `json:"status" db:"status"`
	Tags       TagSet     `json:"tags" db:"tags"`
	Responses  []Response `json:"responses" db:"-"`
	Version    int        `json:"version" db:"version"`
}

// Validate checks if the message fields are valid for creation
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("message body is required")
	}
	return nil
}

// Clone returns a deep copy so that callers never share slices with the store.
func (m Message) Clone() Message {
	cloned := m
	cloned.Tags = m.Tags.Clone()
	if m.Responses != nil {
		cloned.Responses = append([]Response(nil), m.Responses...)
	} else {
		cloned.Responses = []Response{}
	}
	return cloned
}

// ResponseCount returns the number of responses in the thread
func (m *Message) ResponseCount() int {
	return len(m.Responses)
}

// MessageView is a message joined with the display names of its references.
// Names are resolved at read time and never written back.
type MessageView struct {
	Message
	CustomerName string `json:"customerName"`
	CampaignName string `json:"campaignName"`
}

// Column is one status bucket of a board, in bucket order.
type Column struct {
	Status   string        `json:"status"`
	Messages []MessageView `json:"messages"`
}
