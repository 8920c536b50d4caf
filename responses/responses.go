// Package responses provides the canonical response envelopes used across
// the HTTP surface: created/accepted/no-content/validation/list pagination.
package responses

import (
	"encoding/json"
	"net/http"
)

// Success writes a 200 response with the given body.
func Success(w http.ResponseWriter, body interface{}) {
	write(w, http.StatusOK, body)
}

// Created writes a 201 response, optionally setting a Location header.
func Created(w http.ResponseWriter, body interface{}, location string) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	write(w, http.StatusCreated, body)
}

// Accepted writes a 202 response with the given body.
func Accepted(w http.ResponseWriter, body interface{}) {
	write(w, http.StatusAccepted, body)
}

// NoContent writes a bare 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Conflict writes a 409 response with the given body.
func Conflict(w http.ResponseWriter, body interface{}) {
	write(w, http.StatusConflict, body)
}

// FieldError describes a single field-validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationErrorBody is the body shape for a 422 field-validation response.
type ValidationErrorBody struct {
	Errors []FieldError `json:"errors"`
}

// ValidationError writes a 422 response carrying field-level errors.
func ValidationError(w http.ResponseWriter, fieldErrors []FieldError) {
	write(w, http.StatusUnprocessableEntity, ValidationErrorBody{Errors: fieldErrors})
}

func write(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// Pagination carries page/offset metadata for a list response.
type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPagination computes a Pagination block from a page/per_page/total.
func NewPagination(page, perPage, totalItems int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	totalPages := (totalItems + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: totalItems,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// ListResponse is the generic paginated list envelope.
type ListResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// NewListResponse builds a ListResponse from items and pagination inputs.
func NewListResponse[T any](data []T, page, perPage, totalItems int) ListResponse[T] {
	return ListResponse[T]{
		Data:       data,
		Pagination: NewPagination(page, perPage, totalItems),
	}
}

// List writes a 200 response carrying a ListResponse envelope.
func List[T any](w http.ResponseWriter, data []T, page, perPage, totalItems int) {
	Success(w, NewListResponse(data, page, perPage, totalItems))
}
