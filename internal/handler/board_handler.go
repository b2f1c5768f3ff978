package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"crmtriage/internal/models"
	"crmtriage/internal/service"
)

// BoardHandler handles HTTP requests for the triage boards
type BoardHandler struct {
	boards    map[string]*service.MessageStore
	customers CustomerReader
	templates *service.TemplateService
}

// CustomerReader looks up customers for response templates
type CustomerReader interface {
	Get(ctx context.Context, id string) (models.Customer, error)
}

// NewBoardHandler creates a new board handler. customers may be nil.
func NewBoardHandler(stores []*service.MessageStore, customers CustomerReader, templates *service.TemplateService) *BoardHandler {
	boards := make(map[string]*service.MessageStore, len(stores))
	for _, s := range stores {
		boards[s.Board()] = s
	}
	if templates == nil {
		templates = service.NewTemplateService()
	}
	return &BoardHandler{boards: boards, customers: customers, templates: templates}
}

// MessageListResponse is the body of GET /boards/{board}/messages
type MessageListResponse struct {
	Messages   []models.MessageView `json:"messages"`
	Pagination *PaginationInfo      `json:"pagination,omitempty"`
}

// CreateMessageRequest is the body of POST /boards/{board}/messages
type CreateMessageRequest struct {
	ID         string    `json:"id,omitempty"`
	CustomerID string    `json:"customerId"`
	CampaignID string    `json:"campaignId"`
	BrandID    string    `json:"brandId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
}

// MoveRequest is the body of POST .../move. A missing targetIndex appends.
type MoveRequest struct {
	MessageID    string `json:"messageId,omitempty"`
	TargetStatus string `json:"targetStatus"`
	TargetIndex  *int   `json:"targetIndex,omitempty"`
}

// ToggleTagRequest is the body of POST .../tags
type ToggleTagRequest struct {
	MessageID string `json:"messageId,omitempty"`
	TagID     string `json:"tagId"`
}

// AppendResponseRequest is the body of POST .../responses and .../responses/preview
type AppendResponseRequest struct {
	MessageID string `json:"messageId,omitempty"`
	Text      string `json:"text"`
	Author    string `json:"author,omitempty"`
}

// PreviewResponse is the rendered text of a response template
type PreviewResponse struct {
	Text         string   `json:"text"`
	Placeholders []string `json:"placeholders"`
}

func (h *BoardHandler) store(w http.ResponseWriter, r *http.Request) (*service.MessageStore, bool) {
	board := mux.Vars(r)["board"]
	s, ok := h.boards[board]
	if !ok {
		HandleServiceError(w, r, &service.NotFoundError{Resource: "board", ID: board})
		return nil, false
	}
	return s, true
}

// messageID returns the path message ID, rejecting a differing body ID
func messageID(w http.ResponseWriter, r *http.Request, bodyID string) (string, bool) {
	id := mux.Vars(r)["id"]
	if bodyID != "" && bodyID != id {
		WriteValidationError(w, "messageId does not match the URL")
		return "", false
	}
	return id, true
}

// List handles GET /boards/{board}/messages
func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	views, err := s.ViewStrict(r.Context(), ParseCriteria(r))
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	resp := MessageListResponse{Messages: views}
	if page, perPage, paged := parsePage(r); paged {
		resp.Messages, resp.Pagination = paginate(views, page, perPage)
	}
	WriteOK(w, resp)
}

// Columns handles GET /boards/{board}/columns
func (h *BoardHandler) Columns(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	criteria := ParseCriteria(r)
	if err := criteria.Validate(); err != nil {
		WriteValidationError(w, err.Error())
		return
	}
	WriteOK(w, s.Columns(r.Context(), criteria))
}

// Create handles POST /boards/{board}/messages
func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req CreateMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := s.Append(r.Context(), models.Message{
		ID:         req.ID,
		CustomerID: req.CustomerID,
		CampaignID: req.CampaignID,
		BrandID:    req.BrandID,
		Body:       req.Body,
		CreatedAt:  req.CreatedAt,
		Tags:       models.TagSet(req.Tags),
	})
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteCreated(w, view)
}

// Get handles GET /boards/{board}/messages/{id}
func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	view, err := s.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, view)
}

// Move handles POST /boards/{board}/messages/{id}/move
func (h *BoardHandler) Move(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := messageID(w, r, req.MessageID)
	if !ok {
		return
	}

	cmd := models.MoveCommand{MessageID: id, TargetStatus: req.TargetStatus, TargetIndex: models.AppendIndex}
	if req.TargetIndex != nil {
		cmd.TargetIndex = *req.TargetIndex
	}

	view, err := s.MoveStatus(r.Context(), cmd)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, view)
}

// ToggleTag handles POST /boards/{board}/messages/{id}/tags
func (h *BoardHandler) ToggleTag(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req ToggleTagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := messageID(w, r, req.MessageID)
	if !ok {
		return
	}
	if req.TagID == "" {
		WriteValidationError(w, "tagId is required")
		return
	}

	view, err := s.ToggleTag(r.Context(), models.ToggleTagCommand{MessageID: id, TagID: req.TagID})
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, view)
}

// AppendResponse handles POST /boards/{board}/messages/{id}/responses.
// Template placeholders in text are rendered before the reply is stored.
func (h *BoardHandler) AppendResponse(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req AppendResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := messageID(w, r, req.MessageID)
	if !ok {
		return
	}

	text, err := h.render(r, s, id, req.Text)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	view, err := s.AppendResponse(r.Context(), models.AppendResponseCommand{
		MessageID: id,
		Text:      text,
		Author:    req.Author,
	})
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteCreated(w, view)
}

// PreviewResponse handles POST /boards/{board}/messages/{id}/responses/preview.
// It renders the reply text for the message without storing it.
func (h *BoardHandler) PreviewResponse(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req AppendResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := messageID(w, r, req.MessageID)
	if !ok {
		return
	}
	if err := h.templates.ValidateTemplate(req.Text); err != nil {
		WriteValidationError(w, err.Error())
		return
	}

	text, err := h.render(r, s, id, req.Text)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, PreviewResponse{
		Text:         text,
		Placeholders: h.templates.GetPlaceholders(req.Text),
	})
}

// render fills template placeholders from the message and its customer.
// Blank text is passed through so the store reports the validation error.
func (h *BoardHandler) render(r *http.Request, s *service.MessageStore, id, text string) (string, error) {
	view, err := s.Get(r.Context(), id)
	if err != nil {
		return "", err
	}
	if len(h.templates.GetPlaceholders(text)) == 0 {
		return text, nil
	}

	var customer *models.Customer
	if h.customers != nil {
		if c, err := h.customers.Get(r.Context(), view.CustomerID); err == nil {
			customer = &c
		}
	}
	return h.templates.Render(text, service.DataFor(view, customer))
}
