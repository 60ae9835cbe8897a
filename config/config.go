package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// Config mirrors config/config.yaml. Every scalar can also be overridden from the
// environment with the STV_ prefix, e.g. STV_MYSQL_DSN or STV_PIPELINE_WORKERS.
type Config struct {
	Server struct {
		Port      string `yaml:"port" env:"PORT"`
		StaticURL string `yaml:"static_url" env:"STATIC_URL"`
	} `yaml:"server" envPrefix:"SERVER_"`
	MySQL struct {
		DSN string `yaml:"dsn" env:"DSN"`
	} `yaml:"mysql" envPrefix:"MYSQL_"`
	Redis struct {
		Addr     string `yaml:"addr" env:"ADDR"`
		Password string `yaml:"password" env:"PASSWORD"`
	} `yaml:"redis" envPrefix:"REDIS_"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
		AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
		Bucket    string `yaml:"bucket" env:"BUCKET"`
		UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
	} `yaml:"minio" envPrefix:"MINIO_"`
	RabbitMQ struct {
		URL   string `yaml:"url" env:"URL"`
		Queue string `yaml:"queue" env:"QUEUE"`
	} `yaml:"rabbitmq" envPrefix:"RABBITMQ_"`
	Storage struct {
		// Backend is "memory" (snapshot file) or "mysql".
		Backend      string `yaml:"backend" env:"BACKEND"`
		Root         string `yaml:"root" env:"ROOT"`
		SnapshotPath string `yaml:"snapshot_path" env:"SNAPSHOT_PATH"`
	} `yaml:"storage" envPrefix:"STORAGE_"`
	Pipeline    PipelineConfig    `yaml:"pipeline" envPrefix:"PIPELINE_"`
	TTS         TTSConfig         `yaml:"tts" envPrefix:"TTS_"`
	LLM         LLMConfig         `yaml:"llm" envPrefix:"LLM_"`
	TalkingHead TalkingHeadConfig `yaml:"talking_head" envPrefix:"TALKING_HEAD_"`
	FFmpeg      struct {
		Bin      string `yaml:"bin" env:"BIN"`
		ProbeBin string `yaml:"probe_bin" env:"PROBE_BIN"`
		Preset   string `yaml:"preset" env:"PRESET"`
		FPS      int    `yaml:"fps" env:"FPS"`
	} `yaml:"ffmpeg" envPrefix:"FFMPEG_"`
	Log struct {
		Level string `yaml:"level" env:"LEVEL"`
		JSON  bool   `yaml:"json" env:"JSON"`
	} `yaml:"log" envPrefix:"LOG_"`
}

type PipelineConfig struct {
	Workers            int           `yaml:"workers" env:"WORKERS"`
	StageTimeout       time.Duration `yaml:"stage_timeout" env:"STAGE_TIMEOUT"`
	AssembleTimeout    time.Duration `yaml:"assemble_timeout" env:"ASSEMBLE_TIMEOUT"`
	TrailingBuffer     float64       `yaml:"trailing_buffer" env:"TRAILING_BUFFER"`
	TransitionDuration float64       `yaml:"transition_duration" env:"TRANSITION_DURATION"`
	CanvasWidth        int           `yaml:"canvas_width" env:"CANVAS_WIDTH"`
	CanvasHeight       int           `yaml:"canvas_height" env:"CANVAS_HEIGHT"`
	ModelSlots         int64         `yaml:"model_slots" env:"MODEL_SLOTS"`
	ScriptLanguage     string        `yaml:"script_language" env:"SCRIPT_LANGUAGE"`
}

type TTSConfig struct {
	ForceFallback bool    `yaml:"force_fallback" env:"FORCE_FALLBACK"`
	Detector      string  `yaml:"detector" env:"DETECTOR"`
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
	Native        struct {
		Name       string   `yaml:"name" env:"NAME"`
		Command    string   `yaml:"command" env:"COMMAND"`
		Args       []string `yaml:"args" env:"ARGS"`
		WorkDir    string   `yaml:"work_dir" env:"WORK_DIR"`
		Languages  []string `yaml:"languages" env:"LANGUAGES"`
		VoiceClone bool     `yaml:"voice_clone" env:"VOICE_CLONE"`
		// Voices are preset voice ids, optionally "Display Name=id".
		Voices []string `yaml:"voices" env:"VOICES"`
	} `yaml:"native" envPrefix:"NATIVE_"`
	Universal struct {
		BaseURL string `yaml:"base_url" env:"BASE_URL"`
		APIKey  string `yaml:"api_key" env:"API_KEY"`
		Model   string `yaml:"model" env:"MODEL"`
		Voice   string `yaml:"voice" env:"VOICE"`
	} `yaml:"universal" envPrefix:"UNIVERSAL_"`
}

type LLMConfig struct {
	// Provider is "openai" or "anthropic".
	Provider          string  `yaml:"provider" env:"PROVIDER"`
	APIKey            string  `yaml:"api_key" env:"API_KEY"`
	BaseURL           string  `yaml:"base_url" env:"BASE_URL"`
	Model             string  `yaml:"model" env:"MODEL"`
	RequestsPerMinute float64 `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

type TalkingHeadConfig struct {
	Command   string        `yaml:"command" env:"COMMAND"`
	Args      []string      `yaml:"args" env:"ARGS"`
	WorkDir   string        `yaml:"work_dir" env:"WORK_DIR"`
	ResultDir string        `yaml:"result_dir" env:"RESULT_DIR"`
	UseCPU    bool          `yaml:"use_cpu" env:"USE_CPU"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Mode is "pip" (corner picture-in-picture) or "full".
	Mode   string  `yaml:"mode" env:"MODE"`
	Scale  float64 `yaml:"scale" env:"SCALE"`
	Margin int     `yaml:"margin" env:"MARGIN"`
}

var AppConfig *Config

// Default returns the values used when a key is missing from the file.
func Default() *Config {
	c := &Config{}
	c.Server.Port = ":8080"
	c.Server.StaticURL = "/static"
	c.Storage.Backend = "memory"
	c.Storage.Root = "static"
	c.Storage.SnapshotPath = "data/presentations.json"
	c.RabbitMQ.Queue = "slides.events"

	c.Pipeline.Workers = 4
	c.Pipeline.StageTimeout = 10 * time.Minute
	c.Pipeline.AssembleTimeout = 30 * time.Minute
	c.Pipeline.TrailingBuffer = 5
	c.Pipeline.TransitionDuration = 0.5
	c.Pipeline.CanvasWidth = 1920
	c.Pipeline.CanvasHeight = 1080
	c.Pipeline.ModelSlots = 1
	c.Pipeline.ScriptLanguage = "vi"

	c.TTS.Detector = "lingua"
	c.TTS.MinConfidence = 0.5
	c.TTS.Native.Name = "vieneu"
	c.TTS.Native.Languages = []string{"vi"}
	c.TTS.Universal.Model = "tts-1"
	c.TTS.Universal.Voice = "alloy"

	c.LLM.Provider = "openai"
	c.LLM.Model = "gpt-4o-mini"
	c.LLM.RequestsPerMinute = 30

	c.TalkingHead.ResultDir = "static/results"
	c.TalkingHead.Timeout = 60 * time.Minute
	c.TalkingHead.Mode = "pip"
	c.TalkingHead.Scale = 0.28
	c.TalkingHead.Margin = 32

	c.FFmpeg.Bin = "ffmpeg"
	c.FFmpeg.ProbeBin = "ffprobe"
	c.FFmpeg.Preset = "ultrafast"
	c.FFmpeg.FPS = 24

	c.Log.Level = "info"
	return c
}

// Load reads the YAML file at path over the defaults, then applies STV_* environment
// overrides. A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "STV_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.ModelSlots <= 0 {
		return fmt.Errorf("pipeline.model_slots must be positive, got %d", c.Pipeline.ModelSlots)
	}
	if c.Pipeline.TrailingBuffer < c.Pipeline.TransitionDuration*2 {
		return fmt.Errorf("pipeline.trailing_buffer (%.2fs) must cover both fades (%.2fs each)",
			c.Pipeline.TrailingBuffer, c.Pipeline.TransitionDuration)
	}
	if c.Pipeline.CanvasWidth <= 0 || c.Pipeline.CanvasHeight <= 0 {
		return fmt.Errorf("pipeline canvas must be positive, got %dx%d", c.Pipeline.CanvasWidth, c.Pipeline.CanvasHeight)
	}
	switch c.Storage.Backend {
	case "memory", "mysql":
	default:
		return fmt.Errorf("storage.backend must be memory or mysql, got %q", c.Storage.Backend)
	}
	switch c.TalkingHead.Mode {
	case "pip", "full":
	default:
		return fmt.Errorf("talking_head.mode must be pip or full, got %q", c.TalkingHead.Mode)
	}
	return nil
}

// InitConfig loads path into AppConfig. Only the CLI entry point uses the global;
// everything below it receives the *Config explicitly.
func InitConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}
