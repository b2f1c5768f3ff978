package repository

import (
	"context"

	"crmtriage/internal/models"
)

// TagRepository defines tag vocabulary data access operations
type TagRepository interface {
	List(ctx context.Context) ([]*models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) error
}

// CustomerRepository defines customer data access operations
type CustomerRepository interface {
	List(ctx context.Context) ([]*models.Customer, error)
	SetTags(ctx context.Context, customerID string, tags models.TagSet) error
}

// CampaignRepository defines campaign lookup operations
type CampaignRepository interface {
	List(ctx context.Context) ([]*models.Campaign, error)
}

// MessageRepository defines triage message data access operations
type MessageRepository interface {
	// ListByBoard returns a board's messages ordered by bucket position,
	// with their response threads.
	ListByBoard(ctx context.Context, boardID string) ([]models.Message, error)
	// SaveSnapshot applies a change event. It reports false when the
	// stored version is already at or past the event's version.
	SaveSnapshot(ctx context.Context, event *models.ChangeEvent) (bool, error)
}
