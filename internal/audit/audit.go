// Package audit defines the immutable request trail: one entry per handled
// HTTP request, written after the response body is known.
package audit

import (
	"context"
	"strings"
	"time"

	"credvault.org/internal/apperr"
)

// Entry is a single audit record. Entries are append-only; nothing in the
// system updates or deletes them.
type Entry struct {
	ID              string    `json:"id"`
	UserID          *string   `json:"user_id"`
	APIEndpoint     string    `json:"api_endpoint"`
	HTTPMethod      string    `json:"http_method"`
	RequestPayload  string    `json:"request_payload"`
	Response        string    `json:"response"`
	ResponseMessage string    `json:"response_message"`
	ResponseStatus  int       `json:"response_status"`
	UserAgent       string    `json:"user_agent"`
	IPAddress       string    `json:"ip_address"`
	ExecutionMillis float64   `json:"execution_duration"`
	CreatedAt       time.Time `json:"created_at"`
}

// Query filters and paginates an audit search. Zero-valued filters are
// ignored.
type Query struct {
	UserID          string
	APIEndpoint     string
	HTTPMethod      string
	ResponseStatus  int
	ResponseMessage string
	IPAddress       string
	DateFrom        *time.Time
	DateTo          *time.Time
	MaxExecutionMs  float64
	CurrentPage     int
	RecordsPerPage  int
	SortBy          string
	SortDescending  bool
}

// Page is one page of search results with the total match count.
type Page struct {
	Entries        []Entry `json:"records"`
	TotalRecords   int     `json:"total_records"`
	CurrentPage    int     `json:"current_page"`
	RecordsPerPage int     `json:"record_per_page"`
}

// Store persists and searches entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Search(ctx context.Context, q Query) (Page, error)
}

// Columns the caller may sort by; anything else is rejected before the query
// reaches SQL.
var sortColumns = map[string]struct{}{
	"api_endpoint":       {},
	"http_method":        {},
	"response_status":    {},
	"response_message":   {},
	"execution_duration": {},
	"created_at":         {},
}

const (
	defaultRecordsPerPage = 10
	maxRecordsPerPage     = 100
)

// Service validates search parameters and delegates to the store.
type Service struct {
	store Store
}

// NewService wires a Service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Search returns one page of audit entries matching the query. Pagination
// defaults are applied here so the store always sees bounded values.
func (s *Service) Search(ctx context.Context, q Query) (Page, error) {
	if q.CurrentPage <= 0 {
		q.CurrentPage = 1
	}
	if q.RecordsPerPage <= 0 {
		q.RecordsPerPage = defaultRecordsPerPage
	}
	if q.RecordsPerPage > maxRecordsPerPage {
		q.RecordsPerPage = maxRecordsPerPage
	}
	q.SortBy = strings.TrimSpace(q.SortBy)
	if q.SortBy != "" {
		if _, ok := sortColumns[q.SortBy]; !ok {
			return Page{}, apperr.Validation("sort_by", "unknown sort column")
		}
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		return Page{}, apperr.Validation("date_to", "date_to precedes date_from")
	}
	if q.MaxExecutionMs < 0 {
		return Page{}, apperr.Validation("max_execution_duration", "must not be negative")
	}
	return s.store.Search(ctx, q)
}
