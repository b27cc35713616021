package imagecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hyperjump/styleseek/internal/models"
)

// Cache downloads and serves the local image files consumed by indexing.
type Cache struct {
	dir         string
	manifest    *Manifest
	concurrency int
	limiter     *rate.Limiter
	httpClient  *http.Client
	logger      *zap.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets a logger for download progress and failures.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// WithHTTPClient replaces the download client (tests).
func WithHTTPClient(hc *http.Client) CacheOption {
	return func(c *Cache) { c.httpClient = hc }
}

// NewCache creates an image cache rooted at dir. concurrency bounds parallel
// downloads; ratePerSec bounds request rate against the image host.
func NewCache(dir string, manifest *Manifest, concurrency, ratePerSec int, opts ...CacheOption) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	return &Cache{
		dir:         dir,
		manifest:    manifest,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      zap.NewNop(),
	}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// ImagePath returns the local path for a product id. One image per product,
// named by id, as the indexing pipeline expects.
func (c *Cache) ImagePath(id string) string {
	return filepath.Join(c.dir, id+".jpg")
}

// ManifestCounts returns download outcome counts by status.
func (c *Cache) ManifestCounts(ctx context.Context) (map[string]int64, error) {
	return c.manifest.Counts(ctx)
}

// Has reports whether the image for id is already on disk.
func (c *Cache) Has(id string) bool {
	_, err := os.Stat(c.ImagePath(id))
	return err == nil
}

// FetchSummary aggregates the outcome of a FetchAll run.
type FetchSummary struct {
	Downloaded      int64 `json:"downloaded"`
	SkippedExisting int64 `json:"skipped_existing"`
	SkippedKnownBad int64 `json:"skipped_known_bad"`
	SkippedNoURL    int64 `json:"skipped_no_url"`
	Failed          int64 `json:"failed"`
}

// FetchAll downloads every row's image that is not already cached.
// Individual download failures are recorded in the manifest and counted, never
// fatal; rows whose URL previously failed are skipped on re-runs.
func (c *Cache) FetchAll(ctx context.Context, rows []*models.CatalogRow) (*FetchSummary, error) {
	var summary FetchSummary
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, row := range rows {
		row := row
		if row.ImageURL == "" {
			atomic.AddInt64(&summary.SkippedNoURL, 1)
			continue
		}
		if c.Has(row.ID) {
			atomic.AddInt64(&summary.SkippedExisting, 1)
			continue
		}
		if c.manifest != nil {
			status, known, err := c.manifest.Status(gctx, row.ID)
			if err == nil && known && status == StatusFailed {
				atomic.AddInt64(&summary.SkippedKnownBad, 1)
				continue
			}
		}
		g.Go(func() error {
			if err := c.limiter.Wait(gctx); err != nil {
				return err
			}
			if err := c.fetchOne(gctx, row); err != nil {
				atomic.AddInt64(&summary.Failed, 1)
				c.logger.Warn("image download failed",
					zap.String("product_id", row.ID),
					zap.String("url", row.ImageURL),
					zap.Error(err),
				)
				if c.manifest != nil {
					_ = c.manifest.RecordFailed(gctx, row.ID, row.ImageURL, err.Error())
				}
				return nil
			}
			atomic.AddInt64(&summary.Downloaded, 1)
			if c.manifest != nil {
				_ = c.manifest.RecordFetched(gctx, row.ID, row.ImageURL)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &summary, err
	}
	c.logger.Info("image fetch complete",
		zap.Int64("downloaded", summary.Downloaded),
		zap.Int64("skipped_existing", summary.SkippedExisting),
		zap.Int64("skipped_known_bad", summary.SkippedKnownBad),
		zap.Int64("failed", summary.Failed),
	)
	return &summary, nil
}

func (c *Cache) fetchOne(ctx context.Context, row *models.CatalogRow) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, row.ImageURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image host returned %d", resp.StatusCode)
	}

	// Download to a temp name first so a partial body never looks like a
	// cached image to the indexer.
	target := c.ImagePath(row.ID)
	tmp, err := os.CreateTemp(c.dir, ".fetch-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename image: %w", err)
	}
	return nil
}
