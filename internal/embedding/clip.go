package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ClipClient calls an external CLIP-style embedding service over HTTP.
// The service exposes POST /embed/text, /embed/image, and /embed/images and
// returns fixed-dimension vectors consistent across both modalities.
type ClipClient struct {
	baseURL    string
	dimensions int
	httpClient *http.Client
}

// NewClipClient creates a client for the embedding service at baseURL.
// timeout bounds every call; a timed-out call reports ErrUnavailable.
func NewClipClient(baseURL string, dimensions int, timeout time.Duration) (*ClipClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("embedding service URL is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClipClient{
		baseURL:    baseURL,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type textRequest struct {
	Text string `json:"text"`
}

type imageRequest struct {
	ImageB64 string `json:"image_b64"`
}

type imageBatchRequest struct {
	ImagesB64 []string `json:"images_b64"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type embedBatchResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedText returns the embedding for text.
func (c *ClipClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "/embed/text", textRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return c.checkVector(resp.Embedding)
}

// EmbedImage reads the image at imagePath and returns its embedding.
func (c *ClipClient) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	b64, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}
	var resp embedResponse
	if err := c.post(ctx, "/embed/image", imageRequest{ImageB64: b64}, &resp); err != nil {
		return nil, err
	}
	return c.checkVector(resp.Embedding)
}

// EmbedImageBatch embeds all images in one service call. The response must
// contain one vector per input, in order.
func (c *ClipClient) EmbedImageBatch(ctx context.Context, imagePaths []string) ([][]float32, error) {
	if len(imagePaths) == 0 {
		return nil, nil
	}
	images := make([]string, len(imagePaths))
	for i, p := range imagePaths {
		b64, err := encodeImage(p)
		if err != nil {
			return nil, err
		}
		images[i] = b64
	}
	var resp embedBatchResponse
	if err := c.post(ctx, "/embed/images", imageBatchRequest{ImagesB64: images}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(imagePaths) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d images", ErrUnavailable, len(resp.Embeddings), len(imagePaths))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vec, err := c.checkVector(emb)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured embedding dimensionality.
func (c *ClipClient) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the underlying http.Client needs no teardown.
func (c *ClipClient) Close() error {
	return nil
}

func (c *ClipClient) post(ctx context.Context, path string, reqBody, out interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: service returned %d: %s", ErrUnavailable, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *ClipClient) checkVector(vec []float32) ([]float32, error) {
	if len(vec) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d dimensions, expected %d", ErrUnavailable, len(vec), c.dimensions)
	}
	return vec, nil
}

func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
