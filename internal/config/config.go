package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/koscakluka/ema-live/core/transport"
)

const envPrefix = "EMA"

// Audio backends.
const (
	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
	BackendNone      = "none"
)

// Config holds everything the terminal client needs to start a session.
// Every field is read from an EMA_ prefixed environment variable.
type Config struct {
	// Speech service
	URL             string        `envconfig:"URL" required:"true"`
	Token           string        `envconfig:"TOKEN" required:"true"`
	ScenarioID      string        `envconfig:"SCENARIO_ID" required:"true"`
	Mode            string        `envconfig:"MODE" default:"train"` // train, exam
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`
	AuthInvalidCode int           `envconfig:"AUTH_INVALID_CODE" default:"4001"`

	// Audio
	AudioBackend    string `envconfig:"AUDIO_BACKEND" default:"miniaudio"` // miniaudio, portaudio, none
	ChunkSamples    int    `envconfig:"CHUNK_SAMPLES" default:"1600"`      // 16kHz samples per upstream chunk
	FramesPerBuffer int    `envconfig:"FRAMES_PER_BUFFER" default:"480"`   // portaudio only

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error
	LogFile  string `envconfig:"LOG_FILE" default:"ema-live.log"`
}

// Load reads configuration from environment variables. It first loads the
// given .env files, or ./.env when none are given; missing files are
// ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else {
		for _, file := range files {
			if err := godotenv.Load(file); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", file, err)
			}
		}
	}
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from the environment only.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Token) == "" {
		errs = append(errs, errors.New("EMA_TOKEN is required"))
	}
	if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		errs = append(errs, fmt.Errorf("EMA_URL must be a ws:// or wss:// URL, got %q", c.URL))
	}
	if !transport.Mode(c.Mode).Valid() {
		errs = append(errs, fmt.Errorf("EMA_MODE must be %q or %q, got %q", transport.ModeTrain, transport.ModeExam, c.Mode))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("EMA_CONNECT_TIMEOUT must be positive"))
	}
	if c.ChunkSamples <= 0 {
		errs = append(errs, errors.New("EMA_CHUNK_SAMPLES must be positive"))
	}
	switch c.AudioBackend {
	case BackendMiniaudio, BackendPortaudio, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("EMA_AUDIO_BACKEND must be one of miniaudio, portaudio or none, got %q", c.AudioBackend))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) Params() transport.Params {
	return transport.Params{
		Token:      c.Token,
		ScenarioID: c.ScenarioID,
		Mode:       transport.Mode(c.Mode),
	}
}

func (c *Config) Dialer() *transport.Dialer {
	return &transport.Dialer{
		URL:             c.URL,
		Timeout:         c.ConnectTimeout,
		AuthInvalidCode: c.AuthInvalidCode,
	}
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("EMA_LOG_LEVEL: %w", err)
	}
	return level, nil
}
