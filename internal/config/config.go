package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Raster    RasterConfig    `yaml:"raster" mapstructure:"raster"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Vector    VectorConfig    `yaml:"vector" mapstructure:"vector"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Retriever RetrieverConfig `yaml:"retriever" mapstructure:"retriever"`
	Concepts  ConceptsConfig  `yaml:"concepts" mapstructure:"concepts"`
	Gamify    GamifyConfig    `yaml:"gamify" mapstructure:"gamify"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// StorageConfig configures the binary asset host.
type StorageConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
	Folder  string `yaml:"folder" mapstructure:"folder"`
}

// OCRConfig configures text extraction.
type OCRConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Key      string `yaml:"key" mapstructure:"key"`
	// PdfToTextPath is the poppler binary used by the local provider.
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// RasterConfig configures PDF page rasterization.
type RasterConfig struct {
	PdfToPpmPath string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	PdfInfoPath  string `yaml:"pdfinfo_path" mapstructure:"pdfinfo_path"`
	DPI          int    `yaml:"dpi" mapstructure:"dpi"`
	MaxPages     int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string  `yaml:"provider" mapstructure:"provider"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	Dimension int     `yaml:"dimension" mapstructure:"dimension"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// VectorConfig configures the vector index backend.
type VectorConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	URL        string `yaml:"url" mapstructure:"url"`
	Key        string `yaml:"key" mapstructure:"key"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// AnthropicConfig holds generation backend settings. FallbackModels are
// tried in order after Model fails.
type AnthropicConfig struct {
	Key            string   `yaml:"key" mapstructure:"key"`
	Model          string   `yaml:"model" mapstructure:"model"`
	FallbackModels []string `yaml:"fallback_models" mapstructure:"fallback_models"`
	MaxTokens      int64    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// RetrieverConfig configures context retrieval.
type RetrieverConfig struct {
	TopK       int     `yaml:"top_k" mapstructure:"top_k"`
	ScoreFloor float64 `yaml:"score_floor" mapstructure:"score_floor"`
}

// ConceptsConfig configures the keyword concept tagger.
type ConceptsConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// GamifyConfig configures the streak/points webhook.
type GamifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOUBT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("storage.folder", "doubts")
	v.SetDefault("ocr.provider", "http")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("raster.pdftoppm_path", "pdftoppm")
	v.SetDefault("raster.pdfinfo_path", "pdfinfo")
	v.SetDefault("raster.dpi", 150)
	v.SetDefault("raster.max_pages", 50)
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.rps", 5)
	v.SetDefault("vector.driver", "qdrant")
	v.SetDefault("vector.url", "http://localhost:6333")
	v.SetDefault("vector.collection", "reference_chunks")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.fallback_models", []string{"claude-haiku-4-5-20251001"})
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("retriever.top_k", 5)
	v.SetDefault("retriever.score_floor", 0.5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
