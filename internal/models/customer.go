package models

import (
	"time"
)

// Segment represents the customer value segment
type Segment string

const (
	SegmentPremium  Segment = "Premium"
	SegmentStandard Segment = "Standard"
	SegmentBasic    Segment = "Basic"
)

// IsValid checks if the segment is one of the known values
func (s Segment) IsValid() bool {
	switch s {
	case SegmentPremium, SegmentStandard, SegmentBasic:
		return true
	}
	return false
}

// CustomerStatus represents the sales status of a customer. It is a
// separate vocabulary from the message triage statuses.
type CustomerStatus string

const (
	CustomerStatusInterested  CustomerStatus = "Interested"
	CustomerStatusAppointment CustomerStatus = "Appointment"
	CustomerStatusSold        CustomerStatus = "Sold"
)

// CampaignInteraction records one contact between a customer and a campaign
type CampaignInteraction struct {
	CampaignID   string    `json:"campaignId" db:"campaign_id"`
	Channel      string    `json:"channel,omitempty" db:"channel"`
	Outcome      string    `json:"outcome,omitempty" db:"outcome"`
	InteractedAt time.Time `json:"interactedAt" db:"interacted_at"`
}

// Customer represents a customer in the system
type Customer struct {
	ID              string                `json:"id" db:"id"`
	Name            string                `json:"name" db:"name"`
	Email           string                `json:"email" db:"email"`
	Phone           string                `json:"phone" db:"phone"`
	Segment         Segment               `json:"segment" db:"segment"`
	Status          CustomerStatus        `json:"status" db:"status"`
	Tags            TagSet                `json:"tags" db:"tags"`
	CampaignHistory []CampaignInteraction `json:"campaignHistory" db:"-"`
	CreatedAt       time.Time             `json:"createdAt" db:"created_at"`
}

// DisplayName returns the customer's name, falling back to phone or email
func (c *Customer) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Phone != "" {
		return c.Phone
	}
	if c.Email != "" {
		return c.Email
	}
	return "Customer"
}

// CampaignIDs returns the campaigns this customer has interacted with, in
// history order
func (c *Customer) CampaignIDs() []string {
	ids := make([]string, 0, len(c.CampaignHistory))
	for _, h := range c.CampaignHistory {
		ids = append(ids, h.CampaignID)
	}
	return ids
}

// Clone returns a deep copy
func (c Customer) Clone() Customer {
	cloned := c
	cloned.Tags = c.Tags.Clone()
	cloned.CampaignHistory = append([]CampaignInteraction(nil), c.CampaignHistory...)
	return cloned
}
