package service

import (
	"fmt"
	"sort"
	"sync"

	"crmtriage/internal/models"
)

// TagRegistry holds the tag vocabulary shared by messages and customers and
// performs tag toggles on any taggable entity's set.
type TagRegistry struct {
	mu   sync.RWMutex
	tags map[string]models.Tag
}

// NewTagRegistry creates a registry seeded with tags
func NewTagRegistry(tags ...models.Tag) (*TagRegistry, error) {
	r := &TagRegistry{tags: make(map[string]models.Tag, len(tags))}
	for _, t := range tags {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tag to the vocabulary
func (r *TagRegistry) Register(tag models.Tag) error {
	if err := tag.Validate(); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tags[tag.ID]; exists {
		return &ConflictError{Resource: "tag", Message: fmt.Sprintf("tag %s already exists", tag.ID)}
	}
	r.tags[tag.ID] = tag
	return nil
}

// Get returns a tag by ID
func (r *TagRegistry) Get(id string) (models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag, ok := r.tags[id]
	if !ok {
		return models.Tag{}, &NotFoundError{Resource: "tag", ID: id}
	}
	return tag, nil
}

// Exists reports whether id is registered
func (r *TagRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tags[id]
	return ok
}

// List returns all tags sorted by ID
func (r *TagRegistry) List() []models.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]models.Tag, 0, len(r.tags))
	for _, t := range r.tags {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags
}

// Toggle returns set with id added if absent or removed if present.
// Unknown tags are rejected rather than created.
func (r *TagRegistry) Toggle(set models.TagSet, id string) (models.TagSet, error) {
	if !r.Exists(id) {
		return nil, &NotFoundError{Resource: "tag", ID: id}
	}
	return set.Toggle(id), nil
}

// Normalize validates every id of ids and returns them as a set
func (r *TagRegistry) Normalize(ids []string) (models.TagSet, error) {
	set := models.NewTagSet(ids...)
	for _, id := range set {
		if !r.Exists(id) {
			return nil, &NotFoundError{Resource: "tag", ID: id}
		}
	}
	return set, nil
}
