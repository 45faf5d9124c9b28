// Package memory provides an in-memory document store for development/testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// DocumentStore keeps review records in process memory. Search results are
// ordered by indexed_at then id so pagination is stable.
type DocumentStore struct {
	mu      sync.RWMutex
	records map[string]reviews.ReviewRecord
}

// New constructs a DocumentStore.
func New() *DocumentStore {
	return &DocumentStore{
		records: make(map[string]reviews.ReviewRecord),
	}
}

// Exists reports whether a record with the given id is stored.
func (s *DocumentStore) Exists(_ context.Context, reviewID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[reviewID]
	return ok, nil
}

// Create writes a record; an existing id is a conflict.
func (s *DocumentStore) Create(_ context.Context, record reviews.ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ReviewID]; ok {
		return fmt.Errorf("review %s: %w", record.ReviewID, reviews.ErrAlreadyExists)
	}
	s.records[record.ReviewID] = record
	return nil
}

// Search filters, sorts, and slices the stored records.
func (s *DocumentStore) Search(
	_ context.Context,
	filters reviews.SearchFilters,
	offset, limit int,
) (reviews.SearchResult, error) {
	s.mu.RLock()
	var matched []reviews.ReviewRecord
	for _, record := range s.records {
		if matches(record, filters) {
			matched = append(matched, record)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].IndexedAt.Equal(matched[j].IndexedAt) {
			return matched[i].IndexedAt.Before(matched[j].IndexedAt)
		}
		return matched[i].ReviewID < matched[j].ReviewID
	})

	result := reviews.SearchResult{Total: len(matched)}
	if offset >= len(matched) || limit <= 0 {
		return result, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	result.Reviews = matched[offset:end]
	return result, nil
}

func matches(record reviews.ReviewRecord, f reviews.SearchFilters) bool {
	if f.ProductName != "" &&
		!strings.Contains(strings.ToLower(record.ProductName), strings.ToLower(f.ProductName)) {
		return false
	}
	if f.SiteName != "" && record.SiteName != f.SiteName {
		return false
	}
	if f.Reviewer != "" && record.Reviewer != f.Reviewer {
		return false
	}
	if f.TokenID != "" && record.TokenID != f.TokenID {
		return false
	}
	if f.Rating != nil && record.Rating != *f.Rating {
		return false
	}
	return true
}
