// Package config loads and validates the geese configuration. All recognized
// options are enumerated here; nothing reads configuration ad hoc at runtime.
// Credentials never live in the YAML file, they come from the environment.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Weights is the fit-score weight vector. The four components must sum to 1.
type Weights struct {
	KeywordMatch       float64 `yaml:"keyword_match"`
	SemanticCoverage   float64 `yaml:"semantic_coverage"`
	SemanticStrength   float64 `yaml:"semantic_strength"`
	SeniorityAlignment float64 `yaml:"seniority_alignment"`
}

// MatcherConfig configures the scoring engine.
type MatcherConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TopK                int     `yaml:"top_k"`
	Weights             Weights `yaml:"weights"`
	MinMatchScore       float64 `yaml:"min_match_score"`
	AutoSaveThreshold   float64 `yaml:"auto_save_threshold"`
}

// EmbeddingConfig selects and pins the embedding backend.
type EmbeddingConfig struct {
	// Provider: "ollama" or "genai"
	Provider string `yaml:"provider"`

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIModel string `yaml:"genai_model"`

	// ModelID is the opaque identifier folded into the engine version hash.
	ModelID string `yaml:"model_id"`
}

// PortalConfig configures the browser-driven portal session.
type PortalConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Folder         string        `yaml:"folder"`
	Headless       bool          `yaml:"headless"`
	DetailTimeout  time.Duration `yaml:"detail_timeout"`
	ElementTimeout time.Duration `yaml:"element_timeout"`
}

// FiltersConfig holds the post-score predicates.
type FiltersConfig struct {
	PreferredLocations []string `yaml:"preferred_locations"`
	KeywordsToMatch    []string `yaml:"keywords_to_match"`
	CompaniesToAvoid   []string `yaml:"companies_to_avoid"`
}

// PathsConfig holds on-disk locations for the store and derived artifacts.
type PathsConfig struct {
	DatabasePath        string `yaml:"database_path"`
	ResumePath          string `yaml:"resume_path"`
	ResumeIndexDir      string `yaml:"resume_index_dir"`
	TechLexiconPath     string `yaml:"tech_lexicon_path"`
	NoiseSkipPhrasesPath string `yaml:"noise_skip_phrases_path"`
	ReportPath          string `yaml:"report_path"`
	CoverLetterDir      string `yaml:"cover_letter_dir"`
	CoverLetterTemplate string `yaml:"cover_letter_template"`
}

// LLMConfig configures the generation client.
type LLMConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Config is the full application configuration, built once at startup and
// passed down as an explicit handle.
type Config struct {
	Matcher   MatcherConfig   `yaml:"matcher"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Portal    PortalConfig    `yaml:"portal"`
	Filters   FiltersConfig   `yaml:"filters"`
	Paths     PathsConfig     `yaml:"paths"`
	LLM       LLMConfig       `yaml:"llm"`

	// ScrapeCheckpointEvery is the incremental commit interval during scraping.
	ScrapeCheckpointEvery int `yaml:"scrape_checkpoint_every"`

	// MaxItems caps how many postings one run processes. Zero means no cap.
	MaxItems int `yaml:"max_items"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Matcher: MatcherConfig{
			SimilarityThreshold: 0.30,
			TopK:                8,
			Weights: Weights{
				KeywordMatch:       0.35,
				SemanticCoverage:   0.40,
				SemanticStrength:   0.10,
				SeniorityAlignment: 0.15,
			},
			MinMatchScore:     0,
			AutoSaveThreshold: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "all-minilm",
			GenAIModel:     "gemini-embedding-001",
			ModelID:        "all-minilm-l6-v2",
		},
		Portal: PortalConfig{
			BaseURL:        "https://waterlooworks.uwaterloo.ca",
			Folder:         "geese",
			Headless:       true,
			DetailTimeout:  30 * time.Second,
			ElementTimeout: 10 * time.Second,
		},
		Paths: PathsConfig{
			DatabasePath:         "data/geese.db",
			ResumePath:           "input/resume.pdf",
			ResumeIndexDir:       "data/resume_index",
			TechLexiconPath:      "configs/lexicon.yaml",
			NoiseSkipPhrasesPath: "configs/skip_phrases.yaml",
			ReportPath:           "data/matches.json",
			CoverLetterDir:       "data/cover_letters",
		},
		LLM: LLMConfig{
			Model:     "gemini-2.0-flash",
			MaxTokens: 1024,
		},
		ScrapeCheckpointEvery: 5,
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// A missing file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate enforces the invariants the engine relies on. Called before any
// side effects; a failure here aborts startup.
func (c *Config) Validate() error {
	if c.Matcher.SimilarityThreshold < -1 || c.Matcher.SimilarityThreshold > 1 {
		return fmt.Errorf("matcher.similarity_threshold %.2f outside [-1,1]", c.Matcher.SimilarityThreshold)
	}
	if c.Matcher.TopK <= 0 {
		return fmt.Errorf("matcher.top_k must be positive, got %d", c.Matcher.TopK)
	}
	w := c.Matcher.Weights
	sum := w.KeywordMatch + w.SemanticCoverage + w.SemanticStrength + w.SeniorityAlignment
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("matcher.weights must sum to 1.0, got %.4f", sum)
	}
	if w.KeywordMatch < 0 || w.SemanticCoverage < 0 || w.SemanticStrength < 0 || w.SeniorityAlignment < 0 {
		return fmt.Errorf("matcher.weights must be non-negative")
	}
	if c.Matcher.MinMatchScore < 0 || c.Matcher.MinMatchScore > 100 {
		return fmt.Errorf("matcher.min_match_score %.1f outside [0,100]", c.Matcher.MinMatchScore)
	}
	if c.ScrapeCheckpointEvery <= 0 {
		return fmt.Errorf("scrape_checkpoint_every must be positive, got %d", c.ScrapeCheckpointEvery)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("max_items must be non-negative, got %d", c.MaxItems)
	}
	switch c.Embedding.Provider {
	case "ollama", "genai":
	default:
		return fmt.Errorf("embedding.provider %q not supported (use 'ollama' or 'genai')", c.Embedding.Provider)
	}
	if c.Embedding.ModelID == "" {
		return fmt.Errorf("embedding.model_id is required (it pins the engine version)")
	}
	if c.Paths.DatabasePath == "" {
		return fmt.Errorf("paths.database_path is required")
	}
	return nil
}

// PortalCredentials returns the portal login from the environment.
func PortalCredentials() (username, password string, err error) {
	username = os.Getenv("WATERLOOWORKS_USERNAME")
	password = os.Getenv("WATERLOOWORKS_PASSWORD")
	if username == "" || password == "" {
		return "", "", fmt.Errorf("portal credentials not configured: set WATERLOOWORKS_USERNAME and WATERLOOWORKS_PASSWORD")
	}
	return username, password, nil
}

// GenAIAPIKey returns the Gemini API key from the environment, if set.
func GenAIAPIKey() string {
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}
