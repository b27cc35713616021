// Package keyword provides an exact keyword lookup over product names and
// brands, separate from the embedding-based search ranking.
package keyword

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/styleseek/internal/models"
)

// Index wraps a Bleve index of product text fields.
type Index struct {
	index bleve.Index
}

// productDoc is the shape Bleve indexes per record.
type productDoc struct {
	Name    string `json:"name"`
	Brand   string `json:"brand"`
	Content string `json:"content"`
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// reopened so lookup survives restarts without re-indexing.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open keyword index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so brand names
	// match exactly as typed.
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textField)
	docMapping.AddFieldMappingsAt("brand", textField)
	docMapping.AddFieldMappingsAt("content", textField)
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &Index{index: index}, nil
}

// Add indexes one record, replacing any prior entry for the same id.
func (b *Index) Add(rec *models.Record) error {
	return b.index.Index(rec.ID, &productDoc{
		Name:    rec.Metadata[models.MetaName],
		Brand:   rec.Metadata[models.MetaBrand],
		Content: rec.Content,
	})
}

// Result is one keyword lookup hit.
type Result struct {
	ID    string  `json:"product_id"`
	Score float64 `json:"score"`
}

// Lookup runs a match query over name, brand, and content, name weighted
// highest, and returns up to limit hits by descending Bleve score.
func (b *Index) Lookup(query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	nameQuery := bleve.NewMatchQuery(query)
	nameQuery.SetField("name")
	nameQuery.SetBoost(3.0)
	brandQuery := bleve.NewMatchQuery(query)
	brandQuery.SetField("brand")
	brandQuery.SetBoost(2.0)
	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")

	req := bleve.NewSearchRequestOptions(
		bleve.NewDisjunctionQuery(nameQuery, brandQuery, contentQuery),
		limit, 0, false,
	)
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword lookup: %w", err)
	}
	out := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, &Result{ID: hit.ID, Score: hit.Score})
	}
	return out, nil
}

// Count returns the number of indexed products.
func (b *Index) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *Index) Close() error {
	return b.index.Close()
}
