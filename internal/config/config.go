package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lunar-stra95/coach-coral-mistral/internal/llm"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Interview InterviewConfig `yaml:"interview"`
	LLM       LLMConfig       `yaml:"llm"`
	Questions QuestionsConfig `yaml:"questions"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Health    HealthConfig    `yaml:"health"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
}

type InterviewConfig struct {
	MaxQuestions     int           `yaml:"max_questions"`
	StartDifficulty  string        `yaml:"start_difficulty"`
	PromoteThreshold int           `yaml:"promote_threshold"`
	DemoteThreshold  int           `yaml:"demote_threshold"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	MaxAnswerChars   int           `yaml:"max_answer_chars"`
}

type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	MaxTokens       uint32        `yaml:"max_tokens"`
	Temperature     float32       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	MaxAnswerTokens int           `yaml:"max_answer_tokens"`
	OllamaHost      string        `yaml:"ollama_host"`
	AWSRegion       string        `yaml:"aws_region"`
}

// QuestionsConfig points at an optional YAML question bank that replaces
// the built-in one.
type QuestionsConfig struct {
	File string `yaml:"file"`
}

type PrivacyConfig struct {
	RedactContactInfo  bool `yaml:"redact_contact_info"`
	MaskCandidateNames bool `yaml:"mask_candidate_names"`
	MaskSessionIDs     bool `yaml:"mask_session_ids"`
}

type BroadcastConfig struct {
	Throttle         time.Duration `yaml:"throttle"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	// MaxConnections caps concurrent WebSocket clients; 0 means unlimited.
	MaxConnections int `yaml:"max_connections"`
}

type HealthConfig struct {
	// FailureThreshold is the number of consecutive fallback analyses after
	// which the analyzer is reported as failed.
	FailureThreshold int `yaml:"failure_threshold"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "127.0.0.1",
			MaxBodyBytes: 64 << 10,
		},
		Interview: InterviewConfig{
			MaxQuestions:     5,
			StartDifficulty:  "easy",
			PromoteThreshold: 8,
			DemoteThreshold:  4,
			SessionTTL:       30 * time.Minute,
			SweepInterval:    time.Minute,
			MaxAnswerChars:   8000,
		},
		LLM: LLMConfig{
			Provider:        "mistral",
			MaxTokens:       1024,
			Temperature:     0.3,
			Timeout:         30 * time.Second,
			RetryDelay:      2 * time.Second,
			MaxAnswerTokens: 1500,
			AWSRegion:       "us-east-1",
		},
		Privacy: PrivacyConfig{
			RedactContactInfo: true,
		},
		Broadcast: BroadcastConfig{
			Throttle:         100 * time.Millisecond,
			SnapshotInterval: 5 * time.Second,
			MaxConnections:   64,
		},
		Health: HealthConfig{
			FailureThreshold: 3,
		},
	}
}

// Default returns the built-in configuration with environment overrides
// applied.
func Default() *Config {
	cfg := defaultConfig()
	cfg.applyEnv()
	return cfg
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COACH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("COACH_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("COACH_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("COACH_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && c.LLM.OllamaHost == "" {
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.LLM.AWSRegion = v
	}
}

// Validate rejects configurations the coach cannot run with.
func (c *Config) Validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Interview.MaxQuestions < 1 {
		errs = append(errs, "interview.max_questions must be at least 1")
	}
	if _, err := questions.ParseDifficulty(c.Interview.StartDifficulty); err != nil {
		errs = append(errs, "interview.start_difficulty: "+err.Error())
	}
	if !inScoreRange(c.Interview.PromoteThreshold) || !inScoreRange(c.Interview.DemoteThreshold) {
		errs = append(errs, "interview thresholds must be between 0 and 10")
	}
	if c.Interview.PromoteThreshold <= c.Interview.DemoteThreshold {
		errs = append(errs, "interview.promote_threshold must be greater than demote_threshold")
	}
	if _, err := llm.ParseProviderType(c.LLM.Provider); err != nil {
		errs = append(errs, "llm.provider: "+err.Error())
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.Interview.SessionTTL < 0 || c.Interview.SweepInterval < 0 {
		errs = append(errs, "interview.session_ttl and sweep_interval must not be negative (0 disables expiry)")
	}
	if c.Broadcast.Throttle < 0 {
		errs = append(errs, "broadcast.throttle must not be negative")
	}
	if c.Broadcast.SnapshotInterval <= 0 {
		errs = append(errs, "broadcast.snapshot_interval must be positive")
	}
	if c.Broadcast.MaxConnections < 0 {
		errs = append(errs, "broadcast.max_connections must not be negative")
	}
	if c.Health.FailureThreshold < 1 {
		errs = append(errs, "health.failure_threshold must be at least 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func inScoreRange(n int) bool {
	return n >= 0 && n <= 10
}

// StartDifficulty returns the parsed interview.start_difficulty.
func (c *Config) StartDifficulty() questions.Difficulty {
	d, err := questions.ParseDifficulty(c.Interview.StartDifficulty)
	if err != nil {
		return questions.Easy
	}
	return d
}

// ProviderType returns the parsed llm.provider.
func (c *Config) ProviderType() llm.ProviderType {
	p, err := llm.ParseProviderType(c.LLM.Provider)
	if err != nil {
		return llm.ProviderMistral
	}
	return p
}

// ProviderBuilder returns a builder configured from the llm section.
func (c *Config) ProviderBuilder() *llm.ProviderBuilder {
	pt := c.ProviderType()
	b := llm.NewProviderBuilder(pt).
		Model(c.LLM.Model).
		MaxTokens(c.LLM.MaxTokens).
		Temperature(c.LLM.Temperature).
		Region(c.LLM.AWSRegion)

	baseURL := c.LLM.BaseURL
	if pt == llm.ProviderOllama && c.LLM.OllamaHost != "" {
		baseURL = c.LLM.OllamaHost
	}
	return b.BaseURL(baseURL)
}
