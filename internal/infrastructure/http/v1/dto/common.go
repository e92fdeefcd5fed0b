// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain"
)

// --- Pagination ---

// PaginationRequest contains limit/offset query parameters.
type PaginationRequest struct {
	Search string `form:"search"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// ToListFilter converts to the domain list filter.
func (p *PaginationRequest) ToListFilter() domain.ListFilter {
	f := domain.ListFilter{Search: p.Search, Limit: p.Limit, Offset: p.Offset}
	f.Normalize()
	return f
}

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse maps a domain list result with fn.
func NewListResponse[E, T any](r domain.ListResult[E], fn func(E) T) ListResponse[T] {
	items := make([]T, len(r.Items))
	for i, e := range r.Items {
		items[i] = fn(e)
	}
	return ListResponse[T]{Items: items, TotalCount: r.TotalCount, Limit: r.Limit, Offset: r.Offset}
}

// MapSlice maps every element with fn.
func MapSlice[E, T any](in []E, fn func(E) T) []T {
	out := make([]T, len(in))
	for i, e := range in {
		out[i] = fn(e)
	}
	return out
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Parsing helpers ---

// ParseID parses a UUID field, returning a validation error naming the field.
func ParseID(field, value string) (id.ID, error) {
	v, err := id.Parse(value)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return v, nil
}

// ParseIDs parses a list of UUID fields.
func ParseIDs(field string, values []string) ([]id.ID, error) {
	out := make([]id.ID, 0, len(values))
	for _, v := range values {
		parsed, err := ParseID(field, v)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

// ParseOptionalID parses an optional UUID field. Empty yields nil.
func ParseOptionalID(field, value string) (*id.ID, error) {
	if value == "" {
		return nil, nil
	}
	v, err := ParseID(field, value)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339. Empty yields the zero time.
func ParseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperror.NewValidation("invalid date").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return t.UTC(), nil
}

// ParseOptionalDate is ParseDate returning nil for an empty value.
func ParseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := ParseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
