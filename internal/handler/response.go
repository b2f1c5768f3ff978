package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"crmtriage/internal/logging"
	"crmtriage/internal/service"
)

// Error codes of the error envelope
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "RESOURCE_NOT_FOUND"
	CodeInvalidState = "INVALID_STATE"
	CodeConflict     = "CONFLICT"
	CodeInvalidJSON  = "INVALID_JSON"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Allowed []string `json:"allowed,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger := logging.Component("http")
		logger.Error().Err(err).Msg("failed to encode JSON response")
		return err
	}
	return nil
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetail(w, status, ErrorDetail{Code: code, Message: message})
}

func writeErrorDetail(w http.ResponseWriter, status int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: detail}); err != nil {
		logger := logging.Component("http")
		logger.Error().Err(err).Msg("failed to write error response")
	}
}

// WriteCreated writes a 201 Created response with the given data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteOK writes a 200 OK response with the given data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteValidationError writes a 400 Bad Request response with VALIDATION_ERROR code
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidation, message)
}

// WriteInvalidJSON writes a 400 Bad Request response with INVALID_JSON code
func WriteInvalidJSON(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidJSON, message)
}

// WriteInternalError writes a 500 response without exposing internal details
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, "An internal error occurred")
}

// HandleServiceError maps service layer errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *service.NotFoundError
		validation   *service.ValidationError
		invalidState *service.InvalidStateError
		conflict     *service.ConflictError
	)

	switch {
	case errors.As(err, &notFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, notFound.Error())
	case errors.As(err, &validation):
		WriteValidationError(w, validation.Message)
	case errors.As(err, &invalidState):
		writeErrorDetail(w, http.StatusUnprocessableEntity, ErrorDetail{
			Code:    CodeInvalidState,
			Message: invalidState.Error(),
			Allowed: invalidState.Allowed,
		})
	case errors.As(err, &conflict):
		WriteError(w, http.StatusConflict, CodeConflict, conflict.Message)
	default:
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("unhandled service error")
		WriteInternalError(w)
	}
}

// decodeJSON decodes the request body into v, writing INVALID_JSON on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			WriteInvalidJSON(w, "Request body is empty")
			return false
		}
		WriteInvalidJSON(w, "Invalid JSON format")
		return false
	}
	return true
}
