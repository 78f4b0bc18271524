// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "microfinance-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RequestsPerSecond bounds calls to any single host (0 = unlimited).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Burst is the token bucket size for RequestsPerSecond.
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// BreakerTimeout is how long a tripped circuit stays open.
	BreakerTimeout time.Duration `json:"breaker_timeout" yaml:"breaker_timeout" mapstructure:"breaker_timeout"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// KYCConfig holds settings for document verification.
type KYCConfig struct {
	// OCR enables text extraction through the tesseract container.
	OCR bool `json:"ocr" yaml:"ocr" mapstructure:"ocr"`

	// OCRImage is the container image used for OCR (default "tesseract:latest").
	OCRImage string `json:"ocr_image" yaml:"ocr_image" mapstructure:"ocr_image"`

	// MaxDocumentBytes rejects documents larger than this (default 10 MiB).
	MaxDocumentBytes int64 `json:"max_document_bytes" yaml:"max_document_bytes" mapstructure:"max_document_bytes"`
}

// SentimentBackendName selects the polarity scorer.
type SentimentBackendName string

const (
	SentimentLexicon SentimentBackendName = "lexicon"
	SentimentClaude  SentimentBackendName = "claude"
)

// FeedProvider is an HTTP endpoint returning posts for a social handle.
type FeedProvider struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// URL is a template; "{handle}" is replaced with the escaped handle.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// APIKeySecret names the secret sent as a bearer token, if any.
	APIKeySecret string `json:"api_key_secret,omitempty" yaml:"api_key_secret,omitempty" mapstructure:"api_key_secret"`
}

// SocialConfig holds settings for social media analysis.
type SocialConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	Sentiment SentimentBackendName `json:"sentiment" yaml:"sentiment" mapstructure:"sentiment"`
	AI        AIConfig             `json:"ai" yaml:"ai" mapstructure:"ai"`

	// Providers are queried when an application has a handle but no posts.
	Providers []FeedProvider `json:"providers,omitempty" yaml:"providers,omitempty" mapstructure:"providers"`

	// MaxPosts caps the number of fetched posts analysed (default 50).
	MaxPosts int `json:"max_posts" yaml:"max_posts" mapstructure:"max_posts"`
}

// CacheConfig selects the polarity cache.
type CacheConfig struct {
	// Addr is the Redis address; empty selects the in-memory cache.
	Addr     string        `json:"addr,omitempty" yaml:"addr,omitempty" mapstructure:"addr"`
	Password string        `json:"password,omitempty" yaml:"password,omitempty" mapstructure:"password"`
	DB       int           `json:"db" yaml:"db" mapstructure:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// StoreConfig holds settings for the assessment store.
type StoreConfig struct {
	// Driver is "sqlite3" (default) or "postgres".
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// DSN is the postgres connection string. Ignored for sqlite3.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn"`

	// DataDir is the base directory (contains index/, applications/, reports/).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	RateLimit       int           `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`
	RateWindow      time.Duration `json:"rate_window" yaml:"rate_window" mapstructure:"rate_window"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Tier is one row of the loan policy. Applications whose final score is at
// least MinScore receive these terms; tiers are checked in descending order.
type Tier struct {
	MinScore     float64  `json:"min_score" yaml:"min_score" mapstructure:"min_score"`
	LoanAmount   float64  `json:"loan_amount" yaml:"loan_amount" mapstructure:"loan_amount"`
	InterestRate float64  `json:"interest_rate" yaml:"interest_rate" mapstructure:"interest_rate"`
	TermMonths   int      `json:"term_months" yaml:"term_months" mapstructure:"term_months"`
	Requirements []string `json:"requirements,omitempty" yaml:"requirements,omitempty" mapstructure:"requirements"`
}

// Weights combines stage scores into the final score.
type Weights struct {
	Credit    float64 `json:"credit" yaml:"credit" mapstructure:"credit"`
	ESG       float64 `json:"esg" yaml:"esg" mapstructure:"esg"`
	Sentiment float64 `json:"sentiment" yaml:"sentiment" mapstructure:"sentiment"`
}

// PolicyConfig holds the lending policy.
type PolicyConfig struct {
	Weights Weights `json:"weights" yaml:"weights" mapstructure:"weights"`
	Tiers   []Tier  `json:"tiers" yaml:"tiers" mapstructure:"tiers"`

	// RevenueTarget is the annual revenue that earns a full revenue score.
	RevenueTarget float64 `json:"revenue_target" yaml:"revenue_target" mapstructure:"revenue_target"`
}

// EngineConfig groups all stage configurations.
type EngineConfig struct {
	HTTP   HTTPConfig   `json:"http" yaml:"http" mapstructure:"http"`
	KYC    KYCConfig    `json:"kyc" yaml:"kyc" mapstructure:"kyc"`
	Social SocialConfig `json:"social" yaml:"social" mapstructure:"social"`
	Cache  CacheConfig  `json:"cache" yaml:"cache" mapstructure:"cache"`
	Store  StoreConfig  `json:"store" yaml:"store" mapstructure:"store"`
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Policy PolicyConfig `json:"policy" yaml:"policy" mapstructure:"policy"`

	// Concurrency bounds parallel assessments in batch mode (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}
