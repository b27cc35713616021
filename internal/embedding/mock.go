package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"path/filepath"

	"github.com/hyperjump/styleseek/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and keyless development.
// The same text (or image filename) always gets the same unit vector.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions}
}

// EmbedText returns a deterministic embedding derived from the text hash.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.fromSeed(text), nil
}

// EmbedImage returns a deterministic embedding derived from the image filename,
// so the same cached image always maps to the same vector without reading it.
func (e *MockEmbedder) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	return e.fromSeed(filepath.Base(imagePath)), nil
}

// EmbedImageBatch calls EmbedImage for each path.
func (e *MockEmbedder) EmbedImageBatch(ctx context.Context, imagePaths []string) ([][]float32, error) {
	out := make([][]float32, len(imagePaths))
	for i, p := range imagePaths {
		emb, err := e.EmbedImage(ctx, p)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

func (e *MockEmbedder) fromSeed(seed string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	x := h.Sum32()
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(x)*float64(i+1))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}
