// Package indexer converts catalog rows with cached images into store records,
// batching embedding calls and checkpointing after every batch so an
// interrupted run resumes from its last completed batch.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/styleseek/internal/checkpoint"
	"github.com/hyperjump/styleseek/internal/embedding"
	"github.com/hyperjump/styleseek/internal/imagecache"
	"github.com/hyperjump/styleseek/internal/keyword"
	"github.com/hyperjump/styleseek/internal/models"
	"github.com/hyperjump/styleseek/internal/store"
)

// DefaultBatchSize is used when no batch size is configured.
const DefaultBatchSize = 64

// Indexer owns all writes to the store and the checkpoint.
// A deployment runs a single indexer instance.
type Indexer struct {
	store     *store.Store
	embedder  embedding.Embedder
	ckpt      *checkpoint.Manager
	images    *imagecache.Cache
	keywords  *keyword.Index // optional; nil disables keyword lookup indexing
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for per-batch progress and failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex mirrors indexed records into the keyword lookup index.
func WithKeywordIndex(k *keyword.Index) IndexerOption {
	return func(idx *Indexer) { idx.keywords = k }
}

// WithBatchSize overrides the embedding batch size.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	s *store.Store,
	embedder embedding.Embedder,
	ckpt *checkpoint.Manager,
	images *imagecache.Cache,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		store:     s,
		embedder:  embedder,
		ckpt:      ckpt,
		images:    images,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Summary is the end-of-run report. Skip reasons are kept separate so an
// operator can tell "no image yet" from "embedding failed".
type Summary struct {
	TotalRows           int `json:"total_rows"`
	Candidates          int `json:"candidates"`
	Indexed             int `json:"indexed"`
	SkippedExisting     int `json:"skipped_existing"`
	SkippedMissingImage int `json:"skipped_missing_image"`
	FailedBatches       int `json:"failed_batches"`
	FailedRows          int `json:"failed_rows"`
}

// Restore loads the checkpoint (if any) into the store.
// A checkpoint read failure is fatal to the caller: indexing cannot safely
// resume without the durable base.
func (idx *Indexer) Restore() (int, error) {
	records, ok, err := idx.ckpt.Load()
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return 0, nil
	}
	for _, rec := range records {
		if err := idx.store.Upsert(rec, store.PolicyOverwrite); err != nil {
			return 0, fmt.Errorf("restore record %s: %w", rec.ID, err)
		}
		if idx.keywords != nil {
			if err := idx.keywords.Add(rec); err != nil {
				idx.logger.Warn("keyword index restore failed", zap.String("id", rec.ID), zap.Error(err))
			}
		}
	}
	idx.logger.Info("checkpoint restored", zap.Int("records", len(records)))
	return len(records), nil
}

// Run restores the checkpoint and indexes every eligible catalog row that is
// not yet in the store. A failed batch is logged, counted, and skipped; the
// run continues. A checkpoint write failure aborts the run.
func (idx *Indexer) Run(ctx context.Context, rows []*models.CatalogRow) (*Summary, error) {
	if _, err := idx.Restore(); err != nil {
		return nil, err
	}
	summary := &Summary{TotalRows: len(rows)}

	candidates := idx.collectCandidates(rows, summary)
	summary.Candidates = len(candidates)
	if len(candidates) == 0 {
		// Normal completion: everything already indexed or not yet fetchable.
		idx.logger.Info("indexing complete, no new candidates",
			zap.Int("total_rows", summary.TotalRows),
			zap.Int("skipped_existing", summary.SkippedExisting),
			zap.Int("skipped_missing_image", summary.SkippedMissingImage),
		)
		return summary, nil
	}

	for start := 0; start < len(candidates); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		if err := idx.indexBatch(ctx, batch); err != nil {
			var cerr *checkpointError
			if errors.As(err, &cerr) {
				return summary, fmt.Errorf("checkpoint after batch: %w", cerr.err)
			}
			summary.FailedBatches++
			summary.FailedRows += len(batch)
			idx.logger.Warn("batch skipped",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			continue
		}
		summary.Indexed += len(batch)
		idx.logger.Debug("batch indexed",
			zap.Int("batch_start", start),
			zap.Int("batch_size", len(batch)),
			zap.Int("store_count", idx.store.Count()),
		)
	}

	idx.logger.Info("indexing complete",
		zap.Int("candidates", summary.Candidates),
		zap.Int("indexed", summary.Indexed),
		zap.Int("failed_batches", summary.FailedBatches),
		zap.Int("skipped_existing", summary.SkippedExisting),
		zap.Int("skipped_missing_image", summary.SkippedMissingImage),
	)
	return summary, nil
}

// IndexRow indexes a single catalog row whose image is already cached.
// Used by the image watcher for rows that become indexable after startup.
func (idx *Indexer) IndexRow(ctx context.Context, row *models.CatalogRow) error {
	if row.ID == "" {
		return fmt.Errorf("row has no id")
	}
	if !idx.images.Has(row.ID) {
		return fmt.Errorf("image not cached for %s", row.ID)
	}
	if err := idx.indexBatch(ctx, []*models.CatalogRow{row}); err != nil {
		var cerr *checkpointError
		if errors.As(err, &cerr) {
			return fmt.Errorf("checkpoint: %w", cerr.err)
		}
		return err
	}
	return nil
}

// collectCandidates filters rows to those with a cached image and an id not
// yet in the store, deduplicating repeated ids within the input.
func (idx *Indexer) collectCandidates(rows []*models.CatalogRow, summary *Summary) []*models.CatalogRow {
	seen := make(map[string]bool, len(rows))
	var candidates []*models.CatalogRow
	for _, row := range rows {
		if row.ID == "" || seen[row.ID] {
			continue
		}
		seen[row.ID] = true
		if !idx.images.Has(row.ID) {
			summary.SkippedMissingImage++
			continue
		}
		if idx.store.Exists(row.ID) {
			summary.SkippedExisting++
			continue
		}
		candidates = append(candidates, row)
	}
	return candidates
}

// checkpointError marks a checkpoint failure so Run can distinguish it from a
// skippable embedding failure.
type checkpointError struct {
	err error
}

func (e *checkpointError) Error() string { return e.err.Error() }

func (e *checkpointError) Unwrap() error { return e.err }

func (idx *Indexer) indexBatch(ctx context.Context, batch []*models.CatalogRow) error {
	paths := make([]string, len(batch))
	for i, row := range batch {
		paths[i] = idx.images.ImagePath(row.ID)
	}
	embeddings, err := idx.embedder.EmbedImageBatch(ctx, paths)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embed batch: got %d embeddings for %d rows", len(embeddings), len(batch))
	}
	now := time.Now()
	for i, row := range batch {
		rec := &models.Record{
			ID:        row.ID,
			Embedding: embeddings[i],
			Content:   row.Content(),
			Metadata: map[string]string{
				models.MetaName:     row.Name,
				models.MetaBrand:    row.Brand,
				models.MetaFilePath: paths[i],
			},
			IndexedAt: now,
		}
		if err := idx.store.Upsert(rec, store.PolicyOverwrite); err != nil {
			return fmt.Errorf("upsert %s: %w", row.ID, err)
		}
		if idx.keywords != nil {
			if err := idx.keywords.Add(rec); err != nil {
				idx.logger.Warn("keyword index add failed", zap.String("id", rec.ID), zap.Error(err))
			}
		}
	}
	if err := idx.ckpt.Save(idx.store.All()); err != nil {
		return &checkpointError{err: err}
	}
	return nil
}
