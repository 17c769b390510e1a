// Package config handles glowd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/glowd/config.yaml, /etc/glowd/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "glowd", "config.yaml"))
	}

	paths = append(paths, "/etc/glowd/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all glowd configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Router   RouterConfig   `yaml:"router"`
	Plex     PlexConfig     `yaml:"plex"`
	Media    MediaConfig    `yaml:"media"`
	RipDisc  RipDiscConfig  `yaml:"rip_disc"`
	FileOps  FileOpsConfig  `yaml:"file_ops"`
	Wolfram  WolframConfig  `yaml:"wolfram"`
	Search   SearchConfig   `yaml:"search"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Watchers WatchersConfig `yaml:"watchers"`
	Tasks    TasksConfig    `yaml:"tasks"`
	DataDir  string         `yaml:"data_dir"`
	Persona  string         `yaml:"persona"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// RouterConfig defines the fallback classifier's model endpoint. Any
// OpenAI-compatible chat completion API works; a low-latency hosted
// model is the intended target.
type RouterConfig struct {
	BaseURL string `yaml:"base_url"` // e.g. https://api.groq.com/openai/v1
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"` // e.g. llama-3.1-8b-instant
	// TimeoutSec bounds one classifier call (default 5). The chat path
	// must never wait on a slow classifier.
	TimeoutSec int `yaml:"timeout_sec"`
	// CacheSize is the number of recent routing decisions memoized by
	// truncated message (default 256).
	CacheSize int `yaml:"cache_size"`
}

// PlexConfig defines the Plex server connection.
type PlexConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	// InsecureTLS skips certificate verification, needed for Plex
	// servers addressed by IP with self-signed certs.
	InsecureTLS bool `yaml:"insecure_tls"`
}

// MediaConfig defines the media downloader.
type MediaConfig struct {
	// DownloadDir is where finished downloads land.
	DownloadDir string `yaml:"download_dir"`
	// YTDLPPath overrides the yt-dlp binary location (default: $PATH).
	YTDLPPath string `yaml:"ytdlp_path"`
}

// RipDiscConfig defines the disc ripper.
type RipDiscConfig struct {
	// MakeMKVPath overrides the makemkvcon binary location (default: $PATH).
	MakeMKVPath string `yaml:"makemkv_path"`
	// OutputDir is where ripped titles are written.
	OutputDir string `yaml:"output_dir"`
}

// FileOpsConfig scopes filesystem operations.
type FileOpsConfig struct {
	// Roots are the only directories file tools may touch. Empty
	// disables the fileops capability.
	Roots []string `yaml:"roots"`
}

// WolframConfig defines the WolframAlpha computation backend.
type WolframConfig struct {
	AppID string `yaml:"app_id"`
}

// SearchConfig defines the web search backend.
type SearchConfig struct {
	BraveAPIKey string `yaml:"brave_api_key"`
}

// MQTTConfig defines the optional MQTT notifier for device events.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // mqtt://host:1883 or mqtts://host:8883
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// TopicPrefix defaults to "glowd".
	TopicPrefix string `yaml:"topic_prefix"`
}

// WatchersConfig tunes the background state watchers.
type WatchersConfig struct {
	// SystemIntervalSec is the metrics refresh period (default 5).
	SystemIntervalSec int `yaml:"system_interval_sec"`
	// DiscIntervalSec is the disc-mount poll period (default 3).
	DiscIntervalSec int `yaml:"disc_interval_sec"`
	// DiscMountRoot is where removable media appears (default
	// /Volumes on darwin, /media elsewhere).
	DiscMountRoot string `yaml:"disc_mount_root"`
}

// TasksConfig tunes the task board.
type TasksConfig struct {
	// MaxRecent bounds the finished-task history (default 20).
	MaxRecent int `yaml:"max_recent"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Router: RouterConfig{
			BaseURL:    "https://api.groq.com/openai/v1",
			Model:      "llama-3.1-8b-instant",
			TimeoutSec: 5,
			CacheSize:  256,
		},
		Watchers: WatchersConfig{
			SystemIntervalSec: 5,
			DiscIntervalSec:   3,
		},
		Tasks:   TasksConfig{MaxRecent: 20},
		Persona: "Phoebe",
	}
}
