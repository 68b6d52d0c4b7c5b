package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	defaultAPIKeyEnv   = "OPENAI_API_KEY"
	defaultModel       = "gpt-3.5-turbo"
	defaultTemperature = 0.7
	defaultMaxTokens   = 500
	defaultMaxContext  = 5
	defaultLLMTimeout  = 60
	defaultCacheSize   = 256
	defaultCacheTTL    = 600
	defaultDebounceMS  = 500
	defaultSentences   = 5
	defaultOverlap     = 1
)

type Config struct {
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	Source    SourceConfig     `json:"source"`
	Chunker   ChunkerConfig    `json:"chunker"`
	LLM       LLMConfig        `json:"llm"`
	Cache     CacheConfig      `json:"cache"`
	Reload    ReloadConfig     `json:"reload"`
	CORS      CORSConfig       `json:"cors"`
	RateLimit RateLimitConfig  `json:"rate_limit"`
}

// SourceConfig selects a document source by type; Data is handed to the
// source factory as is.
type SourceConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ChunkerConfig struct {
	SentencesPerChunk int  `json:"sentences_per_chunk"`
	OverlapSentences  *int `json:"overlap_sentences"`
}

type LLMConfig struct {
	Enabled            bool     `json:"enabled"`
	Provider           string   `json:"provider"`
	APIKey             string   `json:"api_key"`
	APIKeyEnv          string   `json:"api_key_env"`
	APIURL             string   `json:"api_url"`
	Model              string   `json:"model"`
	Temperature        *float64 `json:"temperature"`
	MaxTokens          int      `json:"max_tokens"`
	MaxContextSegments int      `json:"max_context_segments"`
	Timeout            int      `json:"timeout"`
}

type CacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type ReloadConfig struct {
	OnStart    *bool  `json:"on_start"`
	Cron       string `json:"cron"`
	Watch      bool   `json:"watch"`
	DebounceMS int    `json:"debounce_ms"`
}

// RateLimitConfig bounds how often one client may ask questions. Zero disables it.
type RateLimitConfig struct {
	ChatIntervalMS int `json:"chat_interval_ms"`
}

type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins"`
}

// Load reads a JSON config, or a YAML one when the file ends in .yaml/.yml.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

func Parse(raw []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var tree map[string]interface{}
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
		data, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("convert yaml config: %w", err)
		}
		raw = data
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Source.Type == "" {
		c.Source.Type = "local"
	}
	switch c.Source.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("source.type must be local or s3")
	}
	if c.Source.Data == nil {
		return fmt.Errorf("source.data is required")
	}
	if c.Chunker.SentencesPerChunk <= 0 {
		c.Chunker.SentencesPerChunk = defaultSentences
	}
	if c.Chunker.OverlapSentences == nil {
		v := defaultOverlap
		c.Chunker.OverlapSentences = &v
	}
	if *c.Chunker.OverlapSentences < 0 || *c.Chunker.OverlapSentences >= c.Chunker.SentencesPerChunk {
		return fmt.Errorf("chunker.overlap_sentences must be in [0, sentences_per_chunk)")
	}
	if err := c.LLM.applyDefaults(); err != nil {
		return err
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative")
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = defaultCacheSize
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = defaultCacheTTL
	}
	if c.Reload.OnStart == nil {
		v := true
		c.Reload.OnStart = &v
	}
	if c.Reload.DebounceMS <= 0 {
		c.Reload.DebounceMS = defaultDebounceMS
	}
	if c.RateLimit.ChatIntervalMS < 0 {
		return fmt.Errorf("rate_limit.chat_interval_ms must not be negative")
	}
	if c.Reload.Watch && c.Source.Type != "local" {
		return fmt.Errorf("reload.watch is only supported for local source")
	}
	return nil
}

func (l *LLMConfig) applyDefaults() error {
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if l.APIKeyEnv == "" {
		l.APIKeyEnv = defaultAPIKeyEnv
	}
	if l.Model == "" {
		l.Model = defaultModel
	}
	if l.Temperature == nil {
		v := defaultTemperature
		l.Temperature = &v
	}
	if *l.Temperature < 0 || *l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2]")
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = defaultMaxTokens
	}
	if l.MaxContextSegments <= 0 {
		l.MaxContextSegments = defaultMaxContext
	}
	if l.Timeout <= 0 {
		l.Timeout = defaultLLMTimeout
	}
	return nil
}

// ResolvedAPIKey returns api_key, falling back to the api_key_env variable.
func (l LLMConfig) ResolvedAPIKey() string {
	if key := strings.TrimSpace(l.APIKey); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(l.APIKeyEnv))
}
