package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DirPreset is one selectable download destination offered to the user.
type DirPreset struct {
	Label string
	Path  string
}

// DirPresets decodes a "Label:/path,Label2:/path2" environment value while
// keeping the configured order (a map would shuffle the keyboard buttons).
type DirPresets []DirPreset

// Decode implements envconfig.Decoder.
func (d *DirPresets) Decode(value string) error {
	var presets DirPresets

	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		label, path, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(path) == "" {
			return fmt.Errorf("invalid download dir preset %q, expected Label:/path", pair)
		}

		presets = append(presets, DirPreset{Label: strings.TrimSpace(label), Path: strings.TrimSpace(path)})
	}

	if len(presets) == 0 {
		return fmt.Errorf("no download dir presets configured")
	}

	*d = presets

	return nil
}

// Config struct for environment variables.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	Torznab struct {
		URL            string        `split_words:"true" required:"true"`
		APIKey         string        `envconfig:"API_KEY" required:"true"`
		RequestTimeout time.Duration `split_words:"true" default:"12s"`
		RequestDelay   time.Duration `split_words:"true" default:"600ms"`
		Debug          bool          `split_words:"true"`
	}

	Transmission struct {
		Transport   string `split_words:"true" default:"rpc"` // rpc or cli
		Host        string `split_words:"true" default:"localhost"`
		Port        int    `split_words:"true" default:"9091"`
		Username    string `split_words:"true"`
		Password    string `split_words:"true"`
		StartPaused bool   `split_words:"true"`
	}

	Telegram struct {
		Token         string `split_words:"true" required:"true"`
		AllowedChatID int64  `envconfig:"ALLOWED_CHAT_ID"`
		PageSize      int    `split_words:"true" default:"5"`
	}

	DownloadDirs DirPresets    `envconfig:"DOWNLOAD_DIRS" default:"Movies:/downloads/movies,TV:/downloads/tv,Other:/downloads"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8484"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.Telegram.PageSize < 1 {
		cfg.Telegram.PageSize = 1
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
