// Package models defines core data structures for catalog rows, records, queries, and results.
package models

import "time"

// CatalogRow is one raw product row as read from the catalog file.
type CatalogRow struct {
	ID          string `json:"p_id"`
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	Colour      string `json:"colour"`
	Description string `json:"description"`
	ImageURL    string `json:"img"`
}

// Record is one indexed catalog item: identity, embedding, searchable content, metadata.
type Record struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"-"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
	IndexedAt time.Time         `json:"indexed_at"`
}

// Metadata keys present on every record.
const (
	MetaName     = "name"
	MetaBrand    = "brand"
	MetaFilePath = "file_path"
)

// Content builds the record text that is embedded and returned as the result description.
func (r *CatalogRow) Content() string {
	return r.Name + " by " + r.Brand + ". Color: " + r.Colour + ". Description: " + r.Description
}
