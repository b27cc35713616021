package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/styleseek/internal/models"
)

// LoadCSV reads catalog rows from a CSV file with a header row.
func LoadCSV(path string, maxProducts int) ([]*models.CatalogRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Product descriptions contain commas and quotes; be lenient about field counts.
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []*models.CatalogRow
	for {
		cells, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row: %w", err)
		}
		if row := rowFromCells(cells, idx); row != nil {
			rows = append(rows, row)
			if maxProducts > 0 && len(rows) >= maxProducts {
				break
			}
		}
	}
	return rows, nil
}
