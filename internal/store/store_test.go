package store

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/styleseek/internal/models"
)

func rec(id string, emb []float32) *models.Record {
	return &models.Record{
		ID:        id,
		Embedding: emb,
		Content:   "content of " + id,
		Metadata:  map[string]string{models.MetaName: id},
	}
}

func TestUpsertPolicies(t *testing.T) {
	s := New()
	if err := s.Upsert(rec("a", []float32{1, 0}), PolicyFailOnDuplicate); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(rec("a", []float32{0, 1}), PolicyFailOnDuplicate)
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	// Overwrite replaces the embedding and leaves exactly one record.
	if err := s.Upsert(rec("a", []float32{0, 1}), PolicyOverwrite); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 1 {
		t.Fatalf("Count = %d, want 1", s.Count())
	}
	got := s.All()[0]
	if got.Embedding[0] != 0 || got.Embedding[1] != 1 {
		t.Errorf("overwrite did not replace embedding: %v", got.Embedding)
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	s := New()
	if err := s.Upsert(rec("a", []float32{1, 0}), PolicyOverwrite); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(rec("b", []float32{1, 0, 0}), PolicyOverwrite); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestUpsertEmptyID(t *testing.T) {
	s := New()
	if err := s.Upsert(rec("", []float32{1}), PolicyOverwrite); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestExistsAndCount(t *testing.T) {
	s := New()
	_ = s.Upsert(rec("x", []float32{1, 0}), PolicyOverwrite)
	if !s.Exists("x") {
		t.Error("Exists(x) = false")
	}
	if s.Exists("y") {
		t.Error("Exists(y) = true")
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d", s.Count())
	}
}

func TestQueryRanking(t *testing.T) {
	s := New()
	_ = s.Upsert(rec("A", []float32{1, 0}), PolicyOverwrite)
	_ = s.Upsert(rec("B", []float32{0, 1}), PolicyOverwrite)
	_ = s.Upsert(rec("C", []float32{0.9, 0.1}), PolicyOverwrite)

	hits, err := s.Query([]float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Record.ID != "A" || hits[1].Record.ID != "C" {
		t.Errorf("order = [%s %s], want [A C]", hits[0].Record.ID, hits[1].Record.ID)
	}
	if math.Abs(hits[0].Score-1.0) > 1e-9 {
		t.Errorf("score A = %f, want 1.0", hits[0].Score)
	}
	wantC := 0.9 / math.Sqrt(0.81+0.01)
	if math.Abs(hits[1].Score-wantC) > 1e-6 {
		t.Errorf("score C = %f, want %f", hits[1].Score, wantC)
	}
}

func TestQueryTieBreakInsertionOrder(t *testing.T) {
	s := New()
	_ = s.Upsert(rec("first", []float32{1, 0}), PolicyOverwrite)
	_ = s.Upsert(rec("second", []float32{2, 0}), PolicyOverwrite) // same direction, same cosine

	hits, err := s.Query([]float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Record.ID != "first" {
		t.Errorf("tie should keep insertion order, got %s first", hits[0].Record.ID)
	}
}

func TestQueryEmptyStore(t *testing.T) {
	s := New()
	hits, err := s.Query([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestQueryTopKLargerThanStore(t *testing.T) {
	s := New()
	_ = s.Upsert(rec("a", []float32{1, 0}), PolicyOverwrite)
	hits, err := s.Query([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector left", []float32{0, 0}, []float32{1, 0}, 0},
		{"zero vector right", []float32{1, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}
