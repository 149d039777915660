// Package config loads the process configuration once at start. The pipeline
// never reads ambient environment state: every component receives an
// immutable snapshot taken from this struct.
package config

import (
	"fmt"
	"time"

	"github.com/skillsenselab/scribe/internal/chunk"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/observability"
)

// Config is the root configuration for the scribed service.
type Config struct {
	Base     BaseConfig                 `yaml:"base" mapstructure:"base"`
	Logging  logger.Config              `yaml:"logging" mapstructure:"logging"`
	Server   ServerConfig               `yaml:"server" mapstructure:"server"`
	Tracing  observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Pipeline PipelineConfig             `yaml:"pipeline" mapstructure:"pipeline"`
	Engines  EnginesConfig              `yaml:"engines" mapstructure:"engines"`
	LLM      LLMConfig                  `yaml:"llm" mapstructure:"llm"`
	Media    MediaConfig                `yaml:"media" mapstructure:"media"`
	Callback CallbackConfig             `yaml:"callback" mapstructure:"callback"`
}

// BaseConfig contains essential service fields.
type BaseConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// PipelineConfig holds chunking and dispatch settings.
type PipelineConfig struct {
	Chunking chunk.Policy `yaml:"chunking" mapstructure:"chunking"`
	// MaxConcurrentChunks bounds chunks in flight: 0 or 1 sequential, N>1
	// capped at N, -1 unlimited.
	MaxConcurrentChunks int `yaml:"max_concurrent_chunks" mapstructure:"max_concurrent_chunks"`
	// FlatTrimRunes is the character window trimmed per flat-text seam.
	FlatTrimRunes int `yaml:"flat_trim_runes" mapstructure:"flat_trim_runes"`
	// CorrectionEnabled is the default for the per-job correction toggle.
	CorrectionEnabled bool `yaml:"correction_enabled" mapstructure:"correction_enabled"`
	// VerificationEnabled is the default for audio-grounded verification.
	VerificationEnabled bool `yaml:"verification_enabled" mapstructure:"verification_enabled"`
	// KeytermsEnabled is the default for vocabulary-hint extraction.
	KeytermsEnabled bool `yaml:"keyterms_enabled" mapstructure:"keyterms_enabled"`
	// RetryAttempts is the per-chunk transcribe attempt count.
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// EnginesConfig enables and configures the transcription engines.
type EnginesConfig struct {
	// Enabled lists engine names to run, in order.
	Enabled []string      `yaml:"enabled" mapstructure:"enabled"`
	Clova   ClovaConfig   `yaml:"clova" mapstructure:"clova"`
	Whisper WhisperConfig `yaml:"whisper" mapstructure:"whisper"`
}

// ClovaConfig holds Clova engine settings.
type ClovaConfig struct {
	InvokeURL   string `yaml:"invoke_url" mapstructure:"invoke_url"`
	SecretKey   string `yaml:"secret_key" mapstructure:"secret_key"`
	CallbackURL string `yaml:"callback_url" mapstructure:"callback_url"`
}

// WhisperConfig holds Whisper sidecar settings.
type WhisperConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	Model  string `yaml:"model" mapstructure:"model"`
	Refine bool   `yaml:"refine" mapstructure:"refine"`
}

// LLMConfig holds the shared multimodal LLM client settings, used by the
// gemini engine, the keyterm extractor, the corrector, and the whisper
// refine stage.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// MediaConfig holds media handling settings.
type MediaConfig struct {
	// MaxUploadBytes caps uploaded and fetched media size.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	// NormalizerURL points at the normalization sidecar; empty disables it.
	NormalizerURL string `yaml:"normalizer_url" mapstructure:"normalizer_url"`
	// TmpDir is where ffmpeg staging files are written.
	TmpDir string `yaml:"tmp_dir" mapstructure:"tmp_dir"`
}

// CallbackConfig holds async-completion callback settings.
type CallbackConfig struct {
	// Secret signs callback payloads (HMAC-SHA256). Empty disables the
	// callback path.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// WindowSeconds bounds how long a caller waits for a callback.
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds"`
	// ReaperIntervalSeconds is how often stale pending jobs are reaped.
	ReaperIntervalSeconds int `yaml:"reaper_interval_seconds" mapstructure:"reaper_interval_seconds"`
}

// Window returns the callback wait window as a duration.
func (c CallbackConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// ReaperInterval returns the reap interval as a duration.
func (c CallbackConfig) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSeconds) * time.Second
}

// ApplyDefaults applies default values across all sections.
func (c *Config) ApplyDefaults() {
	if c.Base.Name == "" {
		c.Base.Name = "scribed"
	}
	if c.Base.Environment == "" {
		c.Base.Environment = "development"
	}
	c.Logging.ApplyDefaults()
	c.Tracing.ApplyDefaults()

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 300
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 300
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120
	}

	c.Pipeline.Chunking.ApplyDefaults()
	if c.Pipeline.MaxConcurrentChunks == 0 {
		c.Pipeline.MaxConcurrentChunks = 3
	}
	if c.Pipeline.FlatTrimRunes == 0 {
		c.Pipeline.FlatTrimRunes = 80
	}
	if c.Pipeline.RetryAttempts == 0 {
		c.Pipeline.RetryAttempts = 3
	}

	if len(c.Engines.Enabled) == 0 {
		c.Engines.Enabled = []string{"clova", "gemini", "whisper"}
	}

	if c.Media.MaxUploadBytes == 0 {
		c.Media.MaxUploadBytes = 2 << 30 // 2 GiB
	}

	if c.Callback.WindowSeconds == 0 {
		c.Callback.WindowSeconds = 600
	}
	if c.Callback.ReaperIntervalSeconds == 0 {
		c.Callback.ReaperIntervalSeconds = 60
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535] (got: %d)", c.Server.Port)
	}
	if c.Pipeline.Chunking.OverlapSeconds >= c.Pipeline.Chunking.ChunkSeconds {
		return fmt.Errorf("pipeline.chunking.overlap_seconds must be smaller than chunk_seconds")
	}
	for _, engine := range c.Engines.Enabled {
		switch engine {
		case "clova", "gemini", "whisper":
		default:
			return fmt.Errorf("engines.enabled contains unknown engine %q", engine)
		}
	}
	return nil
}
