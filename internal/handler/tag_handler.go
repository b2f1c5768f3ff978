package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"crmtriage/internal/models"
	"crmtriage/internal/repository"
	"crmtriage/internal/service"
)

// TagWriter persists new tags
type TagWriter interface {
	Create(ctx context.Context, tag *models.Tag) error
}

// TagHandler handles HTTP requests for the tag vocabulary
type TagHandler struct {
	registry *service.TagRegistry
	writer   TagWriter
}

// NewTagHandler creates a new tag handler. writer may be nil, in which case
// new tags live in memory only.
func NewTagHandler(registry *service.TagRegistry, writer TagWriter) *TagHandler {
	return &TagHandler{registry: registry, writer: writer}
}

// List handles GET /tags
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, h.registry.List())
}

// Create handles POST /tags
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var tag models.Tag
	if !decodeJSON(w, r, &tag) {
		return
	}
	if err := tag.Validate(); err != nil {
		WriteValidationError(w, err.Error())
		return
	}
	if h.registry.Exists(tag.ID) {
		HandleServiceError(w, r, &service.ConflictError{Resource: "tag", Message: fmt.Sprintf("tag %s already exists", tag.ID)})
		return
	}

	if h.writer != nil {
		if err := h.writer.Create(r.Context(), &tag); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				err = &service.ConflictError{Resource: "tag", Message: fmt.Sprintf("tag %s already exists", tag.ID)}
			}
			HandleServiceError(w, r, err)
			return
		}
	}

	if err := h.registry.Register(tag); err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteCreated(w, tag)
}
