package embedding

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
)

// countingEmbedder wraps MockEmbedder and counts EmbedText calls.
type countingEmbedder struct {
	*MockEmbedder
	textCalls atomic.Int64
}

func (c *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.textCalls.Add(1)
	return c.MockEmbedder.EmbedText(ctx, text)
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(16)}
	e := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	first, err := e.EmbedText(ctx, "red dress")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.EmbedText(ctx, "red dress")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached embedding differs")
	}
	if n := inner.textCalls.Load(); n != 1 {
		t.Errorf("inner called %d times, want 1", n)
	}
	if e.CacheLen() != 1 {
		t.Errorf("cache len = %d, want 1", e.CacheLen())
	}
}

func TestCachedEmbedderEviction(t *testing.T) {
	e := NewCachedEmbedder(NewMockEmbedder(8), 2)
	ctx := context.Background()
	for _, q := range []string{"a", "b", "c"} {
		if _, err := e.EmbedText(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	if e.CacheLen() != 2 {
		t.Errorf("cache len = %d, want 2 after eviction", e.CacheLen())
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()
	a, _ := e.EmbedText(ctx, "jacket")
	b, _ := e.EmbedText(ctx, "jacket")
	c, _ := e.EmbedText(ctx, "socks")
	if !reflect.DeepEqual(a, b) {
		t.Error("same text produced different embeddings")
	}
	if reflect.DeepEqual(a, c) {
		t.Error("different texts produced identical embeddings")
	}
	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if norm < 0.99 || norm > 1.01 {
		t.Errorf("embedding not unit length: %f", norm)
	}
}
