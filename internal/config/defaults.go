package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "/usr/local/var/styleseek/data/products.csv"
	}
	if cfg.Images.Dir == "" {
		cfg.Images.Dir = "/usr/local/var/styleseek/data/images"
	}
	if cfg.Images.ManifestPath == "" {
		cfg.Images.ManifestPath = "/usr/local/var/styleseek/data/images.db"
	}
	if cfg.Images.Concurrency == 0 {
		cfg.Images.Concurrency = 8
	}
	if cfg.Images.RatePerSec == 0 {
		cfg.Images.RatePerSec = 20
	}
	if cfg.Storage.CheckpointPath == "" {
		cfg.Storage.CheckpointPath = "/usr/local/var/styleseek/data/index.ckpt"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/styleseek/data/indices/bleve"
	}
	if cfg.Embedding.ServiceURL == "" {
		cfg.Embedding.ServiceURL = "http://localhost:8501"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 4096
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 10
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.VibeWordThreshold == 0 {
		cfg.Search.VibeWordThreshold = 3
	}
	if cfg.Vibe.Model == "" {
		cfg.Vibe.Model = "gemini-2.0-flash"
	}
}
