package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8787},
		Fetch:   FetchConfig{UserAgent: "test-agent", ChunkSize: 32 * 1024},
		Convert: ConvertConfig{Mode: ConvertModeRename},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() should pass, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ffmpeg mode", func(c *Config) { c.Convert.Mode = ConvertModeFFmpeg }, false},
		{"unknown convert mode", func(c *Config) { c.Convert.Mode = "transcode" }, true},
		{"empty convert mode", func(c *Config) { c.Convert.Mode = "" }, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"missing user agent", func(c *Config) { c.Fetch.UserAgent = "" }, true},
		{"zero chunk size", func(c *Config) { c.Fetch.ChunkSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{
			name: "default",
			cfg:  ServerConfig{Host: "0.0.0.0", Port: 8787},
			want: "0.0.0.0:8787",
		},
		{
			name: "localhost",
			cfg:  ServerConfig{Host: "localhost", Port: 8080},
			want: "localhost:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8787 {
		t.Errorf("Port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Fetch.ProbeTimeout != 15*time.Second {
		t.Errorf("ProbeTimeout = %v, want 15s", cfg.Fetch.ProbeTimeout)
	}
	if cfg.Fetch.IdleTimeout != time.Minute {
		t.Errorf("IdleTimeout = %v, want 1m", cfg.Fetch.IdleTimeout)
	}
	if cfg.Convert.Mode != ConvertModeRename {
		t.Errorf("Convert.Mode = %q, want rename", cfg.Convert.Mode)
	}
	if !cfg.Video.Enabled {
		t.Error("Video.Enabled should default to true")
	}
	if cfg.Client.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", cfg.Client.Debounce)
	}
	if cfg.Fetch.UserAgent == "" {
		t.Error("UserAgent should have a browser-like default")
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  port: 9000
fetch:
  probe_timeout: 5s
video:
  enabled: false
convert:
  mode: ffmpeg
  ffmpeg_path: "/opt/ffmpeg/bin/ffmpeg"
client:
  history_path: /tmp/h.json
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Fetch.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.Fetch.ProbeTimeout)
	}
	if cfg.Video.Enabled {
		t.Error("Video.Enabled should be false from YAML")
	}
	if cfg.Convert.Mode != ConvertModeFFmpeg {
		t.Errorf("Convert.Mode = %q, want ffmpeg", cfg.Convert.Mode)
	}
	if cfg.Convert.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath = %q", cfg.Convert.FFmpegPath)
	}
	if cfg.Client.HistoryPath != "/tmp/h.json" {
		t.Errorf("HistoryPath = %q", cfg.Client.HistoryPath)
	}

	// Keys absent from the file keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Fetch.IdleTimeout != time.Minute {
		t.Errorf("IdleTimeout = %v, want default 1m", cfg.Fetch.IdleTimeout)
	}
	if cfg.Client.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want default 500ms", cfg.Client.Debounce)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  port: 9000
convert:
  mode: rename
  ffmpeg_path: "/yaml/ffmpeg"
video:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CONVERT_FFMPEG_PATH", "/env/ffmpeg")
	t.Setenv("CONVERT_MODE", "ffmpeg")
	t.Setenv("FILEGRAB_SERVER_URL", "http://files.internal:8080")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Convert.FFmpegPath != "/env/ffmpeg" {
		t.Errorf("FFmpegPath should be from env, got %q", cfg.Convert.FFmpegPath)
	}
	if cfg.Convert.Mode != ConvertModeFFmpeg {
		t.Errorf("Mode = %q, want ffmpeg", cfg.Convert.Mode)
	}
	if cfg.Client.ServerURL != "http://files.internal:8080" {
		t.Errorf("ServerURL = %q", cfg.Client.ServerURL)
	}
	// Unset env vars leave YAML values alone.
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000 from YAML", cfg.Server.Port)
	}
	if cfg.Video.Enabled {
		t.Error("Video.Enabled should stay false from YAML")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
server:
  host: "localhost
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load should fail for nonexistent file")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("CONVERT_MODE", "transcode")

	_, err := Load("")
	if err == nil {
		t.Error("Load should fail validation for an unknown convert mode")
	}
}
