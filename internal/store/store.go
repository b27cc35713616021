// Package store provides the in-memory vector record store and similarity search.
package store

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hyperjump/styleseek/internal/models"
)

// ErrDuplicateID is returned by Upsert under PolicyFailOnDuplicate when the id already exists.
var ErrDuplicateID = errors.New("record id already exists")

// Policy controls how Upsert treats an existing id.
type Policy int

const (
	// PolicyFailOnDuplicate rejects inserts whose id is already present.
	PolicyFailOnDuplicate Policy = iota
	// PolicyOverwrite replaces the existing record in place, keeping its
	// original insertion position for deterministic tie-breaking.
	PolicyOverwrite
)

// Store holds all indexed records. It is created empty, populated by checkpoint
// restore and the indexing pipeline, and read concurrently by queries. Writes
// are mutex-guarded so a reader never observes a partially written batch.
type Store struct {
	mu         sync.RWMutex
	records    []*models.Record
	byID       map[string]int // id -> position in records
	dimensions int            // fixed by the first inserted record
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make([]*models.Record, 0),
		byID:    make(map[string]int),
	}
}

// Upsert inserts or replaces a record per policy.
// All records in a store must share one embedding dimensionality; the first
// insert fixes it.
func (s *Store) Upsert(rec *models.Record, policy Policy) error {
	if rec.ID == "" {
		return fmt.Errorf("record id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions == 0 {
		s.dimensions = len(rec.Embedding)
	} else if len(rec.Embedding) != s.dimensions {
		return fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(rec.Embedding), s.dimensions)
	}
	if pos, ok := s.byID[rec.ID]; ok {
		if policy == PolicyFailOnDuplicate {
			return fmt.Errorf("upsert %s: %w", rec.ID, ErrDuplicateID)
		}
		s.records[pos] = rec
		return nil
	}
	s.byID[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// Exists reports whether a record with the given id is present.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// All returns a snapshot of all records in insertion order.
func (s *Store) All() []*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns the number of records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimensions returns the embedding dimensionality, or 0 for an empty store.
func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// Hit is a single similarity-search result.
type Hit struct {
	Record *models.Record
	Score  float64
}

// Query computes cosine similarity between query and every stored embedding and
// returns the topK highest-scoring records in descending score order. Ties keep
// insertion order (first inserted wins). An empty store yields an empty slice.
// Brute force O(n*d) over catalog-sized n.
func (s *Store) Query(query []float32, topK int) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 || len(s.records) == 0 {
		return nil, nil
	}
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dimensions)
	}
	hits := make([]*Hit, len(s.records))
	for i, rec := range s.records {
		hits[i] = &Hit{Record: rec, Score: CosineSimilarity(query, rec.Embedding)}
	}
	// Stable sort over insertion order implements the tie-break rule.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|). A zero-norm vector on either
// side scores 0 rather than dividing by zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
