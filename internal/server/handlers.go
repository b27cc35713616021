package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/styleseek/internal/embedding"
	"github.com/hyperjump/styleseek/internal/models"
)

// maxUploadBytes bounds the in-memory portion of a multipart search request.
const maxUploadBytes = 10 << 20

// handleSearch accepts a multipart form with query_text, top_k, and an
// optional query_image file. An uploaded image is written to a temp file for
// the duration of the request and always removed afterwards.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	query := &models.SearchQuery{
		Text: r.FormValue("query_text"),
	}
	if raw := r.FormValue("top_k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		query.TopK = k
	}

	imagePath, cleanup, err := s.saveQueryImage(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()
	query.ImagePath = imagePath

	s.logger.Debug("search request",
		zap.String("query", query.Text),
		zap.Int("top_k", query.TopK),
		zap.Bool("has_image", imagePath != ""))

	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyQuery):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, embedding.ErrUnavailable):
			s.logger.Error("embedding service unavailable", zap.Error(err))
			s.respondError(w, http.StatusBadGateway, "embedding service unavailable")
		default:
			s.logger.Error("search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// saveQueryImage extracts the query_image part, if present, into a uniquely
// named temp file. The returned cleanup is safe to call unconditionally.
func (s *Server) saveQueryImage(r *http.Request) (string, func(), error) {
	noop := func() {}
	file, header, err := r.FormFile("query_image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", noop, nil
		}
		return "", noop, errors.New("invalid query_image upload")
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(os.TempDir(), "styleseek-query-"+uuid.NewString()+ext)
	out, err := os.Create(path)
	if err != nil {
		return "", noop, errors.New("failed to store query image")
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", noop, errors.New("failed to store query image")
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", noop, errors.New("failed to store query image")
	}
	return path, func() { os.Remove(path) }, nil
}

// handleLookup is the exact-keyword companion to semantic search: it matches
// the query against product names, brands, and descriptions.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if s.keywords == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword lookup not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := s.config.Search.DefaultTopK
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > s.config.Search.MaxTopK {
			n = s.config.Search.MaxTopK
		}
		limit = n
	}
	results, err := s.keywords.Lookup(q, limit)
	if err != nil {
		s.logger.Error("keyword lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   q,
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"indexed_products":    s.engine.StoreCount(),
		"vibe_degraded_count": s.engine.VibeDegradedCount(),
	}
	if s.keywords != nil {
		if n, err := s.keywords.Count(); err == nil {
			resp["keyword_indexed"] = n
		}
	}
	if counts, err := s.images.ManifestCounts(r.Context()); err == nil {
		resp["images"] = counts
	}
	resp["config"] = map[string]interface{}{
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"default_top_k":        s.config.Search.DefaultTopK,
		"max_top_k":            s.config.Search.MaxTopK,
		"vibe_enabled":         s.config.Vibe.Enabled,
		"checkpoint_path":      s.config.Storage.CheckpointPath,
		"keyword_index_path":   s.config.Storage.KeywordIndexPath,
		"image_dir":            s.config.Images.Dir,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
