// Package cli provides CLI output helpers for styleseek.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/styleseek/internal/models"
	"github.com/hyperjump/styleseek/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
	// OutputCompact is one result per line, for piping into other tools.
	OutputCompact SearchOutputFormat = "compact"
)

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms\n", response.Total, response.QueryTime)
	if response.Expanded != "" {
		fmt.Fprintf(w, "Expanded query: %s\n", response.Expanded)
	}
	fmt.Fprintln(w)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, result.Score)
		fmt.Fprintf(w, "ID: %s\n", result.ProductID)
		fmt.Fprintf(w, "Name: %s\n", result.ProductName)
		if result.Brand != "" {
			fmt.Fprintf(w, "Brand: %s\n", result.Brand)
		}
		if result.Image != "" {
			fmt.Fprintf(w, "Image: %s\n", result.Image)
		}
		if result.Description != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Description, 200))
		}
		fmt.Fprintln(w)
	}
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, result := range response.Results {
		fmt.Fprintf(w, "%.4f\t%s\t%s\t%s\n", result.Score, result.ProductID, result.Brand, result.ProductName)
	}
}
