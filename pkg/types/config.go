// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is a logrus level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// LLMConfig holds settings for the text-generation backend.
type LLMConfig struct {
	// Provider selects the backend: gemini, openai, or anthropic.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the generation model identifier (e.g. "gemini-2.5-pro").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxRetries is the number of extra attempts on transient transport
	// errors. Zero disables transport retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryDelay is the fixed delay between transport retries.
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`
}

// EmbeddingConfig holds settings for the embedding backend.
type EmbeddingConfig struct {
	// Provider selects the backend: gemini or openai.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Dimensions is the requested vector length; zero keeps the model default.
	Dimensions int `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`
}

// RetrievalBackend identifies the knowledge-retrieval oracle.
type RetrievalBackend string

const (
	BackendLightRAG RetrievalBackend = "lightrag"
	BackendSQLite   RetrievalBackend = "sqlite"
)

// RetrievalConfig holds settings for the knowledge-retrieval adapter.
type RetrievalConfig struct {
	Backend RetrievalBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Endpoint is the base URL of the LightRAG server.
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// OnlyNeedContext asks LightRAG for raw context instead of a generated answer.
	OnlyNeedContext bool `json:"only_need_context" yaml:"only_need_context" mapstructure:"only_need_context"`

	// DefaultMode is the retrieval mode used when a run does not name one.
	DefaultMode RetrievalMode `json:"default_mode" yaml:"default_mode" mapstructure:"default_mode"`

	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxResults limits chunks per query for the SQLite backend.
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// IndexPath is the SQLite chunk index built by the ingestion step.
	IndexPath string `json:"index_path" yaml:"index_path" mapstructure:"index_path"`
}

// Weights are the composite-score weights of the skill matcher.
type Weights struct {
	Domain  float64 `json:"domain" yaml:"domain" mapstructure:"domain"`
	Keyword float64 `json:"keyword" yaml:"keyword" mapstructure:"keyword"`
	Intent  float64 `json:"intent" yaml:"intent" mapstructure:"intent"`
}

// MatcherConfig holds skill matching settings.
type MatcherConfig struct {
	Weights Weights `json:"weights" yaml:"weights" mapstructure:"weights"`

	// DefaultThreshold applies to skills whose trigger omits a threshold.
	DefaultThreshold float64 `json:"default_threshold" yaml:"default_threshold" mapstructure:"default_threshold"`

	// CacheSize bounds the domain-label embedding cache.
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
}

// AgentConfig holds orchestration settings for the topic agent.
type AgentConfig struct {
	// MaxConcurrentRetrievals bounds the retrieval fan-out.
	MaxConcurrentRetrievals int `json:"max_concurrent_retrievals" yaml:"max_concurrent_retrievals" mapstructure:"max_concurrent_retrievals"`

	// StageRetries is the number of extra attempts for the decomposition and
	// outline stages after an unparseable response.
	StageRetries int `json:"stage_retries" yaml:"stage_retries" mapstructure:"stage_retries"`

	// MaxSkills caps how many matched skills are applied, highest score
	// first. Zero means no cap.
	MaxSkills int `json:"max_skills" yaml:"max_skills" mapstructure:"max_skills"`

	// MaxContextChars truncates knowledge context embedded in prompts.
	MaxContextChars int `json:"max_context_chars" yaml:"max_context_chars" mapstructure:"max_context_chars"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Sampler string  `json:"sampler" yaml:"sampler" mapstructure:"sampler"`
	Ratio   float64 `json:"ratio" yaml:"ratio" mapstructure:"ratio"`
}

// Config groups all settings for the kbskills CLI.
type Config struct {
	DataDir   string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	SkillsDir string `json:"skills_dir" yaml:"skills_dir" mapstructure:"skills_dir"`

	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	LLM       LLMConfig       `json:"llm" yaml:"llm" mapstructure:"llm"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Matcher   MatcherConfig   `json:"matcher" yaml:"matcher" mapstructure:"matcher"`
	Agent     AgentConfig     `json:"agent" yaml:"agent" mapstructure:"agent"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// DefaultWeights are the composite weights used when none are configured.
var DefaultWeights = Weights{Domain: 0.5, Keyword: 0.3, Intent: 0.2}

// DefaultConfig returns the configuration used when no file or env overrides it.
func DefaultConfig() Config {
	return Config{
		DataDir:   "./data",
		SkillsDir: "./skills",
		Log:       LogConfig{Level: "info", Format: "text"},
		LLM: LLMConfig{
			Provider:  "gemini",
			Model:     "gemini-2.5-pro",
			MaxTokens: 8192,
		},
		Embedding: EmbeddingConfig{
			Provider: "gemini",
			Model:    "gemini-embedding-001",
		},
		Retrieval: RetrievalConfig{
			Backend:     BackendLightRAG,
			Endpoint:    "http://localhost:9621",
			DefaultMode: DefaultMode,
			Timeout:     120 * time.Second,
			MaxResults:  10,
			IndexPath:   "./data/index/chunks.db",
		},
		Matcher: MatcherConfig{
			Weights:          DefaultWeights,
			DefaultThreshold: 0.6,
			CacheSize:        1024,
		},
		Agent: AgentConfig{
			MaxConcurrentRetrievals: 5,
			StageRetries:            1,
			MaxSkills:               3,
			MaxContextChars:         12000,
		},
		Tracing: TracingConfig{Sampler: "ratio", Ratio: 1},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	w := c.Matcher.Weights
	if w.Domain < 0 || w.Keyword < 0 || w.Intent < 0 {
		return fmt.Errorf("matcher weights must be non-negative, got %+v", w)
	}
	if w.Domain+w.Keyword+w.Intent == 0 {
		return fmt.Errorf("matcher weights must not all be zero")
	}
	if t := c.Matcher.DefaultThreshold; t < 0 || t > 1 {
		return fmt.Errorf("matcher default_threshold %v out of range [0,1]", t)
	}
	if _, err := ParseRetrievalMode(string(c.Retrieval.DefaultMode)); err != nil {
		return err
	}
	switch c.Retrieval.Backend {
	case BackendLightRAG, BackendSQLite:
	default:
		return fmt.Errorf("unknown retrieval backend %q: use lightrag or sqlite", c.Retrieval.Backend)
	}
	if c.Agent.MaxConcurrentRetrievals < 0 || c.Agent.StageRetries < 0 || c.Agent.MaxSkills < 0 {
		return fmt.Errorf("agent limits must be non-negative")
	}
	return nil
}
