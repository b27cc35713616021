// Package catalog loads product rows from the catalog file (CSV or XLSX).
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/styleseek/internal/models"
)

// Required and optional column names. Matching is case-insensitive.
const (
	colID          = "p_id"
	colName        = "name"
	colBrand       = "brand"
	colColour      = "colour"
	colDescription = "description"
	colImageURL    = "img"
)

// Load reads catalog rows from path, dispatching on the file extension.
// maxProducts caps the number of returned rows (0 = all). Rows with a missing
// id are skipped, matching the ingestion contract.
func Load(path string, maxProducts int) ([]*models.CatalogRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, maxProducts)
	case ".xlsx":
		return LoadXLSX(path, maxProducts)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// columnIndex maps lower-cased header names to their position.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx[colID]; !ok {
		return nil, fmt.Errorf("catalog header missing required column %q", colID)
	}
	return idx, nil
}

func cell(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func rowFromCells(cells []string, idx map[string]int) *models.CatalogRow {
	id := cell(cells, idx, colID)
	if id == "" {
		return nil
	}
	return &models.CatalogRow{
		ID:          id,
		Name:        cell(cells, idx, colName),
		Brand:       cell(cells, idx, colBrand),
		Colour:      cell(cells, idx, colColour),
		Description: cell(cells, idx, colDescription),
		ImageURL:    cell(cells, idx, colImageURL),
	}
}
