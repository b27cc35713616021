// Package embedding provides text and image embedding via an external
// multimodal embedding service, with caching and a deterministic mock.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable wraps any embedding-capability failure, including timeouts.
// Callers treat it as a normal failure: queries surface it, indexing skips the batch.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder produces vector embeddings for text and images.
// Text and image embeddings must share one dimensionality so they can be fused.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, imagePath string) ([]float32, error)
	EmbedImageBatch(ctx context.Context, imagePaths []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
