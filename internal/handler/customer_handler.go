package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"crmtriage/internal/models"
	"crmtriage/internal/service"
)

// CustomerHandler handles HTTP requests for the customer screens
type CustomerHandler struct {
	book *service.CustomerBook
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(book *service.CustomerBook) *CustomerHandler {
	return &CustomerHandler{book: book}
}

// CustomerListResponse is the body of GET /customers
type CustomerListResponse struct {
	Customers  []models.Customer `json:"customers"`
	Pagination *PaginationInfo   `json:"pagination,omitempty"`
}

// CustomerTagRequest is the body of POST /customers/{id}/tags
type CustomerTagRequest struct {
	TagID string `json:"tagId"`
}

// List handles GET /customers
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.book.ListStrict(r.Context(), ParseCriteria(r))
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}

	resp := CustomerListResponse{Customers: customers}
	if page, perPage, paged := parsePage(r); paged {
		resp.Customers, resp.Pagination = paginate(customers, page, perPage)
	}
	WriteOK(w, resp)
}

// Get handles GET /customers/{id}
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	customer, err := h.book.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, customer)
}

// ToggleTag handles POST /customers/{id}/tags
func (h *CustomerHandler) ToggleTag(w http.ResponseWriter, r *http.Request) {
	var req CustomerTagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TagID == "" {
		WriteValidationError(w, "tagId is required")
		return
	}

	customer, err := h.book.ToggleTag(r.Context(), mux.Vars(r)["id"], req.TagID)
	if err != nil {
		HandleServiceError(w, r, err)
		return
	}
	WriteOK(w, customer)
}
