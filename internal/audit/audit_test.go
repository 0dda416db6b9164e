package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"credvault.org/internal/apperr"
)

type captureStore struct {
	lastQuery Query
}

func (c *captureStore) Append(context.Context, Entry) error { return nil }

func (c *captureStore) Search(_ context.Context, q Query) (Page, error) {
	c.lastQuery = q
	return Page{CurrentPage: q.CurrentPage, RecordsPerPage: q.RecordsPerPage}, nil
}

func TestSearchAppliesPaginationDefaults(t *testing.T) {
	store := &captureStore{}
	svc := NewService(store)

	page, err := svc.Search(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.CurrentPage != 1 || page.RecordsPerPage != 10 {
		t.Fatalf("defaults = page %d size %d, want 1 and 10", page.CurrentPage, page.RecordsPerPage)
	}

	if _, err := svc.Search(context.Background(), Query{RecordsPerPage: 1000}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.lastQuery.RecordsPerPage != 100 {
		t.Fatalf("page size = %d, want clamped to 100", store.lastQuery.RecordsPerPage)
	}
}

func TestSearchRejectsUnknownSortColumn(t *testing.T) {
	svc := NewService(&captureStore{})
	_, err := svc.Search(context.Background(), Query{SortBy: "password_hash"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSearchAcceptsKnownSortColumns(t *testing.T) {
	svc := NewService(&captureStore{})
	for _, col := range []string{"api_endpoint", "http_method", "response_status", "response_message", "execution_duration", "created_at"} {
		if _, err := svc.Search(context.Background(), Query{SortBy: col}); err != nil {
			t.Errorf("Search(sort_by=%s): %v", col, err)
		}
	}
}

func TestSearchRejectsInvertedDateRange(t *testing.T) {
	svc := NewService(&captureStore{})
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err := svc.Search(context.Background(), Query{DateFrom: &from, DateTo: &to})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}
