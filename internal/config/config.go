package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Converter modes.
const (
	ConvertModeRename = "rename"
	ConvertModeFFmpeg = "ffmpeg"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Video   VideoConfig   `yaml:"video"`
	Convert ConvertConfig `yaml:"convert"`
	Client  ClientConfig  `yaml:"client"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `yaml:"port" envconfig:"SERVER_PORT" default:"8787"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"30m"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// FetchConfig holds outbound HTTP configuration for probes and transfers.
type FetchConfig struct {
	UserAgent     string        `yaml:"user_agent" envconfig:"FETCH_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" envconfig:"FETCH_PROBE_TIMEOUT" default:"15s"`
	HeaderTimeout time.Duration `yaml:"header_timeout" envconfig:"FETCH_HEADER_TIMEOUT" default:"30s"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" envconfig:"FETCH_IDLE_TIMEOUT" default:"60s"`
	ChunkSize     int           `yaml:"chunk_size" envconfig:"FETCH_CHUNK_SIZE" default:"32768"`
}

// VideoConfig holds video platform extractor configuration.
type VideoConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"VIDEO_ENABLED" default:"true"`
	Timeout time.Duration `yaml:"timeout" envconfig:"VIDEO_TIMEOUT" default:"30s"`
}

// ConvertConfig selects how output format hints are honoured.
// The rename mode only changes the file extension and never touches bytes.
type ConvertConfig struct {
	Mode       string `yaml:"mode" envconfig:"CONVERT_MODE" default:"rename"`
	FFmpegPath string `yaml:"ffmpeg_path" envconfig:"CONVERT_FFMPEG_PATH"`
}

// ClientConfig holds configuration for the command-line client.
type ClientConfig struct {
	ServerURL   string        `yaml:"server_url" envconfig:"FILEGRAB_SERVER_URL" default:"http://localhost:8787"`
	HistoryPath string        `yaml:"history_path" envconfig:"FILEGRAB_HISTORY_PATH" default:"filegrab-history.db"`
	Debounce    time.Duration `yaml:"debounce" envconfig:"FILEGRAB_DEBOUNCE" default:"500ms"`
}

// Load reads configuration from file and environment variables.
// Precedence is defaults, then the YAML file, then environment variables
// that are set.
func Load(configPath string) (*Config, error) {
	// Defaults plus whatever the environment sets
	fromEnv := &Config{}
	if err := envconfig.Process("", fromEnv); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg := *fromEnv
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		// The file replaced env values too; put back the ones actually set.
		overrideFromEnv(reflect.ValueOf(&cfg).Elem(), reflect.ValueOf(fromEnv).Elem())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// overrideFromEnv copies into dst every field of src whose envconfig
// variable is present in the environment.
func overrideFromEnv(dst, src reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Struct {
			overrideFromEnv(dst.Field(i), src.Field(i))
			continue
		}
		key := f.Tag.Get("envconfig")
		if key == "" {
			continue
		}
		if _, ok := os.LookupEnv(key); ok {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("FETCH_USER_AGENT is required")
	}
	if c.Fetch.ChunkSize <= 0 {
		return fmt.Errorf("FETCH_CHUNK_SIZE must be positive")
	}
	switch c.Convert.Mode {
	case ConvertModeRename, ConvertModeFFmpeg:
	default:
		return fmt.Errorf("CONVERT_MODE must be %q or %q, got %q", ConvertModeRename, ConvertModeFFmpeg, c.Convert.Mode)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
