package service

import (
	"context"
	"fmt"
	"sync"

	"crmtriage/internal/models"
)

// Directory resolves customer and campaign IDs to their display records.
// Views join names through it at read time.
type Directory interface {
	CustomerName(id string) (string, bool)
	CampaignName(id string) (string, bool)
	Campaign(id string) (models.Campaign, bool)
}

// StaticDirectory is an in-memory Directory that is replaced wholesale on
// refresh, so readers never see a half-loaded state.
type StaticDirectory struct {
	mu        sync.RWMutex
	customers map[string]string
	campaigns map[string]models.Campaign
}

// NewStaticDirectory creates a directory from customers and campaigns
func NewStaticDirectory(customers []models.Customer, campaigns []models.Campaign) *StaticDirectory {
	d := &StaticDirectory{}
	d.Replace(customers, campaigns)
	return d
}

// Replace swaps the directory contents
func (d *StaticDirectory) Replace(customers []models.Customer, campaigns []models.Campaign) {
	names := make(map[string]string, len(customers))
	for i := range customers {
		names[customers[i].ID] = customers[i].DisplayName()
	}
	byID := make(map[string]models.Campaign, len(campaigns))
	for _, c := range campaigns {
		byID[c.ID] = c
	}

	d.mu.Lock()
	d.customers = names
	d.campaigns = byID
	d.mu.Unlock()
}

// CustomerName returns the customer's display name
func (d *StaticDirectory) CustomerName(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.customers[id]
	return name, ok
}

// CampaignName returns the campaign's display name
func (d *StaticDirectory) CampaignName(id string) (string, bool) {
	c, ok := d.Campaign(id)
	return c.Name, ok
}

// Campaign returns the campaign record
func (d *StaticDirectory) Campaign(id string) (models.Campaign, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.campaigns[id]
	return c, ok
}

// CustomerLister lists customers for a directory refresh
type CustomerLister interface {
	List(ctx context.Context) ([]*models.Customer, error)
}

// CampaignLister lists campaigns for a directory refresh
type CampaignLister interface {
	List(ctx context.Context) ([]*models.Campaign, error)
}

// RefreshDirectory reloads d from the lookup repositories and returns the
// customers it loaded. On error the previous contents are kept.
func RefreshDirectory(ctx context.Context, d *StaticDirectory, customers CustomerLister, campaigns CampaignLister) ([]models.Customer, error) {
	custs, err := customers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	camps, err := campaigns.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	cs := make([]models.Customer, 0, len(custs))
	for _, c := range custs {
		cs = append(cs, *c)
	}
	ps := make([]models.Campaign, 0, len(camps))
	for _, c := range camps {
		ps = append(ps, *c)
	}
	d.Replace(cs, ps)
	return cs, nil
}
