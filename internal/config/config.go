package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is used when PORT is unset or malformed.
	DefaultPort = 10000
	// DefaultPushSeconds controls how often the live activity feed refreshes.
	DefaultPushSeconds = 5
)

// Config represents configuration data for the link logger.
type Config struct {
	DataDirectory string   `yaml:"data_directory"`
	Links         []string `yaml:"links"`
	CPALinksFile  string   `yaml:"cpa_links_file"`
	LogLevel      string   `yaml:"log_level"`
	PushSeconds   int      `yaml:"ws_push_seconds"`

	// Port is never read from the file, only from the PORT environment variable.
	Port int `yaml:"-"`
}

// DefaultLinks is the built-in registry of monitored URLs.
func DefaultLinks() []string {
	return []string{
		"https://nazzahayashi.gumroad.com/l/dionar",
		"https://nazzahayashi.gumroad.com/l/azmny",
	}
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		DataDirectory: ".",
		Links:         DefaultLinks(),
		CPALinksFile:  "cpa_links.json",
		LogLevel:      "info",
		PushSeconds:   DefaultPushSeconds,
		Port:          DefaultPort,
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
// The PORT environment variable is applied last.
func Load(path string) (Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.Port = PortFromEnv()
	return cfg, nil
}

func loadFile(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = DefaultConfig().DataDirectory
	}
	if cfg.CPALinksFile == "" {
		cfg.CPALinksFile = DefaultConfig().CPALinksFile
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultConfig().LogLevel
	}
	if cfg.PushSeconds <= 0 {
		cfg.PushSeconds = DefaultPushSeconds
	}
	if len(cfg.Links) == 0 {
		return Config{}, errors.New("configuration must define at least one link")
	}
	for i, link := range cfg.Links {
		link = strings.TrimSpace(link)
		if link == "" {
			return Config{}, fmt.Errorf("link %d is empty", i)
		}
		cfg.Links[i] = link
	}
	return cfg, nil
}

// PortFromEnv returns the listen port from PORT, or DefaultPort.
func PortFromEnv() int {
	raw, ok := os.LookupEnv("PORT")
	if !ok || strings.TrimSpace(raw) == "" {
		return DefaultPort
	}
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port <= 0 || port > 65535 {
		slog.Warn("invalid PORT, using default", slog.String("value", raw), slog.Int("default", DefaultPort))
		return DefaultPort
	}
	return port
}

// Addr is the listen address on all interfaces.
func (c Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// Level maps LogLevel onto a slog level; unknown values mean info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
