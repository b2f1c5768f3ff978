package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"crmtriage/internal/models"
)

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// List retrieves every customer with tags and campaign history
func (r *customerRepository) List(ctx context.Context) ([]*models.Customer, error) {
	query := `
		SELECT id, name, email, phone, segment, status, tags, created_at
		FROM customers
		ORDER BY created_at DESC, id
	`

	// Execute query
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []*models.Customer{}
	byID := make(map[string]*models.Customer)
	for rows.Next() {
		customer := &models.Customer{}
		var tags pq.StringArray
		err := rows.Scan(
			&customer.ID,
			&customer.Name,
			&customer.Email,
			&customer.Phone,
			&customer.Segment,
			&customer.Status,
			&tags,
			&customer.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customer.Tags = models.NewTagSet(tags...)
		customer.CampaignHistory = []models.CampaignInteraction{}
		customers = append(customers, customer)
		byID[customer.ID] = customer
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}

	// Get campaign history
	if err := r.attachHistory(ctx, byID); err != nil {
		return nil, err
	}
	return customers, nil
}

// attachHistory loads campaign interactions in interaction order
func (r *customerRepository) attachHistory(ctx context.Context, byID map[string]*models.Customer) error {
	query := `
		SELECT customer_id, campaign_id, channel, outcome, interacted_at
		FROM customer_campaigns
		ORDER BY customer_id, interacted_at, campaign_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list campaign history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var customerID string
		var h models.CampaignInteraction
		if err := rows.Scan(&customerID, &h.CampaignID, &h.Channel, &h.Outcome, &h.InteractedAt); err != nil {
			return fmt.Errorf("failed to scan campaign history: %w", err)
		}
		if customer, ok := byID[customerID]; ok {
			customer.CampaignHistory = append(customer.CampaignHistory, h)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate campaign history: %w", err)
	}
	return nil
}

// SetTags replaces a customer's tag set
func (r *customerRepository) SetTags(ctx context.Context, customerID string, tags models.TagSet) error {
	query := `UPDATE customers SET tags = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, customerID, pq.Array([]string(tags)))
	if err != nil {
		return fmt.Errorf("failed to update customer tags: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("customer %s not found", customerID)
	}

	return nil
}
