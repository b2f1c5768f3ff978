package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"crmtriage/internal/models"
)

// CustomerTagWriter persists a customer's tag set
type CustomerTagWriter interface {
	SetTags(ctx context.Context, customerID string, tags models.TagSet) error
}

// CustomerBook is the in-memory customer collection behind the customer
// list and detail screens.
type CustomerBook struct {
	mu        sync.RWMutex
	customers map[string]models.Customer
	order     []string

	tags   *TagRegistry
	engine *FilterEngine
	writer CustomerTagWriter
	logger zerolog.Logger
}

// NewCustomerBook creates an empty customer book. writer may be nil, in
// which case tag changes are kept in memory only.
func NewCustomerBook(tags *TagRegistry, engine *FilterEngine, writer CustomerTagWriter, logger zerolog.Logger) *CustomerBook {
	if engine == nil {
		engine = NewFilterEngine(nil, nil)
	}
	return &CustomerBook{
		customers: make(map[string]models.Customer),
		tags:      tags,
		engine:    engine,
		writer:    writer,
		logger:    logger,
	}
}

// Load replaces the book contents. Customers are listed newest first, then
// by ID.
func (b *CustomerBook) Load(customers []models.Customer) error {
	byID := make(map[string]models.Customer, len(customers))
	for i := range customers {
		c := customers[i].Clone()
		if c.ID == "" {
			return &ValidationError{Message: "customer without id"}
		}
		if _, dup := byID[c.ID]; dup {
			return &ConflictError{Resource: "customer", Message: fmt.Sprintf("duplicate customer id %s", c.ID)}
		}
		c.Tags = models.NewTagSet(c.Tags...)
		byID[c.ID] = c
	}

	order := make([]string, 0, len(byID))
	for id := range byID {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		a, c := byID[order[i]], byID[order[j]]
		if !a.CreatedAt.Equal(c.CreatedAt) {
			return a.CreatedAt.After(c.CreatedAt)
		}
		return a.ID < c.ID
	})

	b.mu.Lock()
	b.customers = byID
	b.order = order
	b.mu.Unlock()
	return nil
}

// Len returns the number of customers
func (b *CustomerBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Get returns a customer by ID
func (b *CustomerBook) Get(ctx context.Context, id string) (models.Customer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.customers[id]
	if !ok {
		return models.Customer{}, &NotFoundError{Resource: "customer", ID: id}
	}
	return c.Clone(), nil
}

// List returns the customers matching criteria. An empty tag mode means ALL.
func (b *CustomerBook) List(ctx context.Context, criteria models.FilterCriteria) []models.Customer {
	b.mu.RLock()
	all := make([]models.Customer, 0, len(b.order))
	for _, id := range b.order {
		all = append(all, b.customers[id].Clone())
	}
	b.mu.RUnlock()

	return Apply(b.engine, all, criteria.WithDefaultTagMode(models.TagModeAll), CustomerFields)
}

// ListStrict validates criteria before listing
func (b *CustomerBook) ListStrict(ctx context.Context, criteria models.FilterCriteria) ([]models.Customer, error) {
	if err := criteria.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return b.List(ctx, criteria), nil
}

// ToggleTag adds or removes a tag on a customer. The new set is persisted
// before it becomes visible.
func (b *CustomerBook) ToggleTag(ctx context.Context, customerID, tagID string) (models.Customer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.customers[customerID]
	if !ok {
		return models.Customer{}, &NotFoundError{Resource: "customer", ID: customerID}
	}
	tags, err := b.tags.Toggle(c.Tags, tagID)
	if err != nil {
		return models.Customer{}, err
	}

	if b.writer != nil {
		if err := b.writer.SetTags(ctx, customerID, tags); err != nil {
			return models.Customer{}, fmt.Errorf("failed to save customer tags: %w", err)
		}
	}

	c = c.Clone()
	c.Tags = tags
	b.customers[customerID] = c

	b.logger.Debug().Str("customer_id", customerID).Str("tag_id", tagID).Msg("customer tag toggled")
	return c.Clone(), nil
}
