package catalog

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/styleseek/internal/models"
)

// LoadXLSX reads catalog rows from the first sheet of an XLSX workbook.
// The sheet follows the same header contract as the CSV catalog.
func LoadXLSX(path string, maxProducts int) ([]*models.CatalogRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("catalog workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read catalog sheet: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("catalog sheet is empty")
	}
	idx, err := columnIndex(all[0])
	if err != nil {
		return nil, err
	}

	var rows []*models.CatalogRow
	for _, cells := range all[1:] {
		if row := rowFromCells(cells, idx); row != nil {
			rows = append(rows, row)
			if maxProducts > 0 && len(rows) >= maxProducts {
				break
			}
		}
	}
	return rows, nil
}
