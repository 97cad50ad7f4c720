package client

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/NicolasHaas/gowhisper/pkg/audio"
)

// EnvPrefix prefixes every client environment variable.
const EnvPrefix = "GOWHISPER"

var validate = validator.New()

// Config is the client configuration, read from GOWHISPER_* variables and
// overridable by flags.
type Config struct {
	Addr      string `envconfig:"ADDR" default:"localhost:4242" validate:"required,hostname_port"`
	Transport string `envconfig:"TRANSPORT" default:"tls" validate:"oneof=tls ws"`

	AudioBackend   string  `envconfig:"AUDIO_BACKEND" default:"portaudio" validate:"oneof=portaudio null"`
	InputDevice    string  `envconfig:"INPUT_DEVICE"`
	OutputDevice   string  `envconfig:"OUTPUT_DEVICE"`
	Channels       int     `envconfig:"CHANNELS" default:"1" validate:"min=1,max=2"`
	SampleRate     int     `envconfig:"SAMPLE_RATE" default:"16000" validate:"min=8000,max=192000"`
	FramesPerBlock int     `envconfig:"FRAMES_PER_BLOCK" default:"320" validate:"min=16,max=8192"`
	GateThreshold  float64 `envconfig:"GATE_THRESHOLD" default:"0" validate:"gte=0"`

	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5ms" validate:"gt=0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
	Color     bool   `envconfig:"COLOR" default:"true"`
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("client: config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("client: config: %w", err)
	}
	return nil
}

// Format returns the capture format.
func (c Config) Format() audio.Format {
	return audio.Format{
		Channels:       c.Channels,
		SampleRate:     c.SampleRate,
		FramesPerBlock: c.FramesPerBlock,
	}
}

// Options returns the client tuning described by c.
func (c Config) Options() Options {
	return Options{
		PollInterval:  c.PollInterval,
		Format:        c.Format(),
		GateThreshold: c.GateThreshold,
	}
}
