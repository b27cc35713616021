package models

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned when a search supplies neither text nor an image.
var ErrEmptyQuery = errors.New("query must include text or an image")

// SearchQuery represents a search request with optional text and image inputs.
type SearchQuery struct {
	Text string `json:"query_text,omitempty"`
	// ImagePath points at a transient local copy of the uploaded query image.
	// Empty means no image input.
	ImagePath string `json:"-"`
	TopK      int    `json:"top_k,omitempty"`
}

// Validate ensures at least one of text/image is present and normalizes TopK.
// maxK caps TopK; maxK <= 0 means no cap.
func (q *SearchQuery) Validate(defaultK, maxK int) error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" && q.ImagePath == "" {
		return ErrEmptyQuery
	}
	if q.TopK <= 0 {
		q.TopK = defaultK
	}
	if maxK > 0 && q.TopK > maxK {
		q.TopK = maxK
	}
	return nil
}
