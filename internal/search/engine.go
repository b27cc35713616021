package search

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/styleseek/internal/config"
	"github.com/hyperjump/styleseek/internal/embedding"
	"github.com/hyperjump/styleseek/internal/models"
	"github.com/hyperjump/styleseek/internal/store"
	"github.com/hyperjump/styleseek/internal/vibe"
	"github.com/hyperjump/styleseek/pkg/utils"
)

// Engine answers multimodal product queries against the record store.
// The store is populated before the engine serves traffic; the engine reads only.
type Engine struct {
	store    *store.Store
	embedder embedding.Embedder
	expander *vibe.Expander // optional; nil disables vibe expansion
	config   *config.SearchConfig
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for query diagnostics.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithExpander routes long free-form queries through vibe expansion.
func WithExpander(x *vibe.Expander) EngineOption {
	return func(e *Engine) { e.expander = x }
}

// NewEngine creates a search engine over the given store and embedder.
func NewEngine(s *store.Store, embedder embedding.Embedder, cfg *config.SearchConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    s,
		embedder: embedder,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search validates the query, embeds its inputs, fuses them, and ranks the
// store. Neither text nor image returns models.ErrEmptyQuery before the store
// is touched. Embedding failures surface as embedding.ErrUnavailable; an empty
// store yields an empty result list.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.config.DefaultTopK, e.config.MaxTopK); err != nil {
		return nil, err
	}

	text := query.Text
	expanded := ""
	if text != "" && e.shouldExpand(text) {
		if out := e.expander.Expand(ctx, text); out != text {
			expanded = out
			text = out
		}
	}

	var textEmb, imageEmb []float32
	var err error
	if text != "" {
		textEmb, err = e.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query text: %w", err)
		}
	}
	if query.ImagePath != "" {
		imageEmb, err = e.embedder.EmbedImage(ctx, query.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("embed query image: %w", err)
		}
	}

	fused := Fuse(textEmb, imageEmb)
	hits, err := e.store.Query(fused, query.TopK)
	if err != nil {
		return nil, fmt.Errorf("store query: %w", err)
	}

	results := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, toResult(hit))
	}
	e.logger.Debug("search served",
		zap.String("query", utils.Truncate(query.Text, 80)),
		zap.Bool("has_image", query.ImagePath != ""),
		zap.Bool("expanded", expanded != ""),
		zap.Int("results", len(results)),
	)
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Text,
		Expanded:  expanded,
	}, nil
}

// shouldExpand applies the vibe routing policy: only free-form text above the
// word threshold goes to the expander.
func (e *Engine) shouldExpand(text string) bool {
	if e.expander == nil {
		return false
	}
	return utils.CountWords(text) > e.config.VibeWordThreshold
}

// StoreCount reports the number of searchable records.
func (e *Engine) StoreCount() int {
	return e.store.Count()
}

// VibeDegradedCount reports how many expansions fell back to pass-through.
func (e *Engine) VibeDegradedCount() int64 {
	if e.expander == nil {
		return 0
	}
	return e.expander.DegradedCount()
}

func toResult(hit *store.Hit) *models.SearchResult {
	rec := hit.Record
	image := ""
	if p := rec.Metadata[models.MetaFilePath]; p != "" {
		// Emit the bare filename; the HTTP layer maps it under /static/.
		image = filepath.Base(p)
	}
	return &models.SearchResult{
		ProductID:   rec.ID,
		ProductName: rec.Metadata[models.MetaName],
		Brand:       rec.Metadata[models.MetaBrand],
		Description: rec.Content,
		Score:       hit.Score,
		Image:       image,
	}
}
