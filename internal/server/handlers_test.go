package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/styleseek/internal/config"
	"github.com/hyperjump/styleseek/internal/embedding"
	"github.com/hyperjump/styleseek/internal/imagecache"
	"github.com/hyperjump/styleseek/internal/keyword"
	"github.com/hyperjump/styleseek/internal/models"
	"github.com/hyperjump/styleseek/internal/search"
	"github.com/hyperjump/styleseek/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Images.Dir = t.TempDir()
	cfg.Storage.KeywordIndexPath = filepath.Join(t.TempDir(), "keyword.bleve")

	embedder := embedding.NewMockEmbedder(32)
	st := store.New()
	kw, err := keyword.NewIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { kw.Close() })

	rows := []struct {
		id, name, brand string
	}{
		{"1001", "Blue Slim Jeans", "Denimco"},
		{"1002", "Red Summer Dress", "Floralis"},
		{"1003", "Navy Linen Shirt", "Denimco"},
	}
	for _, row := range rows {
		vec, err := embedder.EmbedText(context.Background(), row.name)
		if err != nil {
			t.Fatalf("EmbedText: %v", err)
		}
		rec := &models.Record{
			ID:        row.id,
			Embedding: vec,
			Content:   row.name + " by " + row.brand,
			Metadata: map[string]string{
				models.MetaName:     row.name,
				models.MetaBrand:    row.brand,
				models.MetaFilePath: filepath.Join(cfg.Images.Dir, row.id+".jpg"),
			},
		}
		if err := st.Upsert(rec, store.PolicyOverwrite); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if err := kw.Add(rec); err != nil {
			t.Fatalf("keyword Add: %v", err)
		}
	}

	manifest, err := imagecache.OpenManifest(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatalf("OpenManifest: %v", err)
	}
	t.Cleanup(func() { manifest.Close() })
	images, err := imagecache.NewCache(cfg.Images.Dir, manifest, 1, 1)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	engine := search.NewEngine(st, embedder, &cfg.Search)
	return NewServer(engine, kw, images, cfg, zap.NewNop())
}

func postSearch(t *testing.T, handler http.Handler, fields map[string]string, imagePath string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if imagePath != "" {
		part, err := mw.CreateFormFile("query_image", filepath.Base(imagePath))
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		data, err := os.ReadFile(imagePath)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write image part: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSearchTextQuery(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	rec := postSearch(t, handler, map[string]string{"query_text": "Blue Slim Jeans", "top_k": "2"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 results, got %d", resp.Total)
	}
	if resp.Results[0].ProductID != "1001" {
		t.Errorf("expected product 1001 first, got %s", resp.Results[0].ProductID)
	}
	if resp.Results[0].Image != "1001.jpg" {
		t.Errorf("expected bare image filename, got %q", resp.Results[0].Image)
	}
}

func TestSearchImageQuery(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	imgPath := filepath.Join(t.TempDir(), "query.jpg")
	if err := os.WriteFile(imgPath, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rec := postSearch(t, handler, nil, imgPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected results for image-only query")
	}
}

func TestSearchRemovesQueryImageTempFile(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	imgPath := filepath.Join(t.TempDir(), "query.jpg")
	if err := os.WriteFile(imgPath, []byte("fake image bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rec := postSearch(t, handler, nil, imgPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "styleseek-query-") {
			t.Errorf("temp query image left behind: %s", e.Name())
		}
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	rec := postSearch(t, handler, map[string]string{"query_text": "   "}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSearchBadTopK(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	rec := postSearch(t, handler, map[string]string{"query_text": "jeans", "top_k": "lots"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLookup(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lookup?q=Denimco", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Total   int `json:"total"`
		Results []struct {
			ID string `json:"product_id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 brand matches, got %d", resp.Total)
	}
}

func TestLookupMissingQuery(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lookup", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := resp["indexed_products"].(float64); got != 3 {
		t.Errorf("expected 3 indexed products, got %v", got)
	}
	if _, ok := resp["config"]; !ok {
		t.Error("expected config section in status")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStaticServesImages(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Router()

	imgPath := filepath.Join(srv.images.Dir(), "1001.jpg")
	if err := os.WriteFile(imgPath, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/static/1001.jpg", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "jpeg bytes" {
		t.Errorf("unexpected static body: %q", rec.Body.String())
	}
}
