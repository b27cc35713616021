// Package main is the styleseek CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/styleseek/internal/catalog"
	"github.com/hyperjump/styleseek/internal/checkpoint"
	"github.com/hyperjump/styleseek/internal/cli"
	"github.com/hyperjump/styleseek/internal/config"
	"github.com/hyperjump/styleseek/internal/embedding"
	"github.com/hyperjump/styleseek/internal/imagecache"
	"github.com/hyperjump/styleseek/internal/indexer"
	"github.com/hyperjump/styleseek/internal/keyword"
	"github.com/hyperjump/styleseek/internal/models"
	"github.com/hyperjump/styleseek/internal/search"
	"github.com/hyperjump/styleseek/internal/server"
	"github.com/hyperjump/styleseek/internal/store"
	"github.com/hyperjump/styleseek/internal/vibe"
	"github.com/hyperjump/styleseek/internal/watcher"
	"github.com/hyperjump/styleseek/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/styleseek/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists it
// is used, so that "styleseek server" from the project dir uses the project's
// config (including debug).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "index":
		runIndex()
	case "fetch-images":
		runFetchImages()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("styleseek version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (queries, indexing, image downloads)")
	skipIndex := fs.Bool("skip-index", false, "serve from the checkpoint only, without re-indexing the catalog")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	rows, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.MaxProducts)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	logger.Info("catalog loaded", zap.Int("rows", len(rows)))

	if *skipIndex {
		restored, err := components.Indexer.Restore()
		if err != nil {
			logger.Fatal("Failed to restore checkpoint", zap.Error(err))
		}
		logger.Info("serving from checkpoint", zap.Int("restored", restored))
	} else {
		summary, err := components.Indexer.Run(ctx, rows)
		if err != nil {
			logger.Fatal("Startup indexing failed", zap.Error(err))
		}
		logger.Info("startup indexing complete",
			zap.Int("indexed", summary.Indexed),
			zap.Int("skipped_existing", summary.SkippedExisting),
			zap.Int("skipped_missing_image", summary.SkippedMissingImage),
			zap.Int("failed_rows", summary.FailedRows),
		)
	}

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if cfg.Images.Watch {
		rowsByID := make(map[string]*models.CatalogRow, len(rows))
		for _, row := range rows {
			rowsByID[row.ID] = row
		}
		idx := components.Indexer
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			cfg.Images.Dir,
			func(productID string) {
				row, ok := rowsByID[productID]
				if !ok {
					return
				}
				if err := idx.IndexRow(context.Background(), row); err != nil {
					logger.Warn("watch index row failed", zap.String("product_id", productID), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start image watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.KeywordIndex,
		components.Images,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	fetch := fs.Bool("fetch", false, "download missing product images before indexing")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	rows, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.MaxProducts)
	if err != nil {
		fmt.Printf("Failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	if *fetch {
		fetchSummary, err := components.Images.FetchAll(ctx, rows)
		if err != nil {
			fmt.Printf("Image fetch failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Images: %d downloaded, %d already cached, %d failed\n",
			fetchSummary.Downloaded, fetchSummary.SkippedExisting, fetchSummary.Failed)
	}

	summary, err := components.Indexer.Run(ctx, rows)
	if err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d of %d candidate product(s)\n", summary.Indexed, summary.Candidates)
	if summary.SkippedExisting > 0 {
		fmt.Printf("  %d already indexed\n", summary.SkippedExisting)
	}
	if summary.SkippedMissingImage > 0 {
		fmt.Printf("  %d skipped (no cached image; run fetch-images first)\n", summary.SkippedMissingImage)
	}
	if summary.FailedRows > 0 {
		fmt.Printf("  %d failed across %d batch(es)\n", summary.FailedRows, summary.FailedBatches)
	}
}

func runFetchImages() {
	fs := flag.NewFlagSet("fetch-images", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rows, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.MaxProducts)
	if err != nil {
		fmt.Printf("Failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	manifest, err := imagecache.OpenManifest(cfg.Images.ManifestPath)
	if err != nil {
		fmt.Printf("Failed to open image manifest: %v\n", err)
		os.Exit(1)
	}
	defer manifest.Close()
	images, err := imagecache.NewCache(cfg.Images.Dir, manifest, cfg.Images.Concurrency, cfg.Images.RatePerSec,
		imagecache.WithLogger(logger))
	if err != nil {
		fmt.Printf("Failed to create image cache: %v\n", err)
		os.Exit(1)
	}

	summary, err := images.FetchAll(context.Background(), rows)
	if err != nil {
		fmt.Printf("Image fetch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("downloaded:        %d\n", summary.Downloaded)
	fmt.Printf("already cached:    %d\n", summary.SkippedExisting)
	fmt.Printf("known bad URLs:    %d\n", summary.SkippedKnownBad)
	fmt.Printf("missing URLs:      %d\n", summary.SkippedNoURL)
	fmt.Printf("failed:            %d\n", summary.Failed)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: styleseek search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  styleseek search blue slim jeans
  styleseek search "blue slim jeans"               # same as above
  styleseek search --image query.jpg                # image-only search
  styleseek search --image query.jpg summer dress   # text + image
  styleseek search --top-k 20 --output json dress
`)
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = search the local checkpoint directly)")
	imagePath := fs.String("image", "", "path to a query image")
	topK := fs.Int("top-k", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" && *imagePath == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	case "compact":
		format = cli.OutputCompact
	default:
		fmt.Printf("Unknown output format %q; use text, compact, or json\n", *outputFormat)
		os.Exit(1)
	}

	if *serverURL != "" {
		// Use the HTTP API when a server is running (avoids checkpoint and
		// keyword index lock conflicts).
		response, err := searchViaHTTP(*serverURL, queryStr, *imagePath, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct checkpoint access (when the server is not running).
	cfg, _, err := loadConfig(*configPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if _, err := components.Indexer.Restore(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to restore checkpoint: %v\n", err)
		os.Exit(1)
	}

	query := &models.SearchQuery{Text: queryStr, ImagePath: *imagePath, TopK: *topK}
	response, err := components.Engine.Search(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// searchViaHTTP posts a multipart search request, attaching the query image
// when one was given.
func searchViaHTTP(serverURL, queryText, imagePath string, topK int) (*models.SearchResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if queryText != "" {
		if err := mw.WriteField("query_text", queryText); err != nil {
			return nil, err
		}
	}
	if topK > 0 {
		if err := mw.WriteField("top_k", strconv.Itoa(topK)); err != nil {
			return nil, err
		}
	}
	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return nil, fmt.Errorf("open query image: %w", err)
		}
		defer f.Close()
		part, err := mw.CreateFormFile("query_image", filepath.Base(imagePath))
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := http.Post(serverURL+"/api/v1/search", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if n, ok := status["indexed_products"]; ok {
			fmt.Printf("indexed_products:     %v\n", n)
		}
		if n, ok := status["keyword_indexed"]; ok {
			fmt.Printf("keyword_indexed:      %v\n", n)
		}
		if n, ok := status["vibe_degraded_count"]; ok {
			fmt.Printf("vibe_degraded_count:  %v\n", n)
		}
		if images, ok := status["images"].(map[string]interface{}); ok {
			fmt.Println()
			fmt.Println("# image cache")
			for k, v := range images {
				fmt.Printf("%-20s  %v\n", k+":", v)
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Manifest     *imagecache.Manifest
	Images       *imagecache.Cache
	Embedder     embedding.Embedder
	KeywordIndex *keyword.Index
	Engine       *search.Engine
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Manifest != nil {
		_ = c.Manifest.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	manifest, err := imagecache.OpenManifest(cfg.Images.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image manifest: %w", err)
	}
	images, err := imagecache.NewCache(cfg.Images.Dir, manifest, cfg.Images.Concurrency, cfg.Images.RatePerSec,
		imagecache.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.ServiceURL == "mock" {
		// Development mode: deterministic embeddings, no external service.
		logger.Warn("using mock embedder; results are not semantically meaningful")
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		clip, err := embedding.NewClipClient(
			cfg.Embedding.ServiceURL,
			cfg.Embedding.Dimensions,
			time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		embedder = clip
	}
	embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	keywordIndex, err := keyword.NewIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	st := store.New()
	ckpt := checkpoint.NewManager(cfg.Storage.CheckpointPath)

	idxOpts := []indexer.IndexerOption{
		indexer.WithKeywordIndex(keywordIndex),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
	}
	if debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	idx := indexer.NewIndexer(st, embedder, ckpt, images, idxOpts...)

	engineOpts := []search.EngineOption{}
	if debug {
		engineOpts = append(engineOpts, search.WithLogger(logger))
	}
	if cfg.Vibe.Enabled {
		expander, err := vibe.NewExpander(context.Background(), cfg.Vibe.APIKey, cfg.Vibe.Model,
			vibe.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vibe expander: %w", err)
		}
		if !expander.Enabled() {
			logger.Warn("vibe expansion enabled but no API key set; long queries pass through unexpanded")
		}
		engineOpts = append(engineOpts, search.WithExpander(expander))
	}
	engine := search.NewEngine(st, embedder, &cfg.Search, engineOpts...)

	return &Components{
		Manifest:     manifest,
		Images:       images,
		Embedder:     embedder,
		KeywordIndex: keywordIndex,
		Engine:       engine,
		Indexer:      idx,
	}, nil
}

func printUsage() {
	fmt.Println(`styleseek - Multimodal product search over a fashion catalog

Usage:
  styleseek server [flags]           Start the HTTP server (indexes the catalog on startup)
  styleseek index [flags]            Index the catalog into the checkpoint
  styleseek fetch-images [flags]     Download missing product images
  styleseek search [flags] <query>   Search products by text and/or image
  styleseek status [flags]           Show index and image cache status
  styleseek version                  Show version
  styleseek help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/styleseek/config.yaml)
  --debug            Enable debug logging (queries, indexing, image downloads)
  --skip-index       Serve from the checkpoint only, without re-indexing the catalog

Index Flags:
  --config string    Config file path
  --fetch            Download missing product images before indexing

Search Flags:
  --config string    Config file path (for direct checkpoint mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to search the local checkpoint.
  --image string     Path to a query image
  --top-k int        Number of results (default: server default)
  --output string    Output format: text, compact, or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  styleseek server
  styleseek fetch-images
  styleseek index --fetch
  styleseek search blue slim jeans
  styleseek search --image looks/outfit.jpg
  styleseek search --output json "dress for a summer brunch in Goa"
  styleseek status`)
}
