// Package config handles configuration loading and validation for
// dictated.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete application configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Feed configures where wire-protocol chunks come from.
	Feed FeedConfig `toml:"feed" json:"feed" yaml:"feed"`

	// Sink configures how operations reach the output surface.
	Sink SinkConfig `toml:"sink" json:"sink" yaml:"sink"`

	// Baseline configures word-slot numbering for session baselines.
	Baseline BaselineConfig `toml:"baseline" json:"baseline" yaml:"baseline"`

	// Modes configures correction-mode instruction files.
	Modes ModesConfig `toml:"modes" json:"modes" yaml:"modes"`

	// Transcript configures session persistence.
	Transcript TranscriptConfig `toml:"transcript" json:"transcript" yaml:"transcript"`

	// Logging configures structured logging.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// FeedConfig holds chunk source configuration.
type FeedConfig struct {
	// Source is "stdin", "file", or "websocket".
	Source string `toml:"source" json:"source" yaml:"source"`

	// Path is the wire stream file for the "file" source.
	Path string `toml:"path" json:"path" yaml:"path"`

	// URL is the stream endpoint for the "websocket" source.
	URL string `toml:"url" json:"url" yaml:"url"`

	// ReadBufferBytes is the maximum chunk size read per call for
	// reader-backed sources.
	ReadBufferBytes int `toml:"read_buffer_bytes" json:"read_buffer_bytes" yaml:"read_buffer_bytes"`
}

// SinkConfig holds output sink configuration.
type SinkConfig struct {
	// Type is "xdotool", "clipboard", or "trace".
	Type string `toml:"type" json:"type" yaml:"type"`

	// XdotoolPath is the xdotool executable path.
	XdotoolPath string `toml:"xdotool_path" json:"xdotool_path" yaml:"xdotool_path"`

	// TypingDelayMs is the millisecond delay between injected
	// keystrokes.
	TypingDelayMs int `toml:"typing_delay_ms" json:"typing_delay_ms" yaml:"typing_delay_ms"`
}

// BaselineConfig holds word-slot numbering configuration.
type BaselineConfig struct {
	// Step is the gap between adjacent word positions, leaving room
	// for insertions between slots.
	Step int `toml:"step" json:"step" yaml:"step"`
}

// ModesConfig holds correction-mode configuration.
type ModesConfig struct {
	// Dir is the directory of mode instruction files (<name>.txt).
	Dir string `toml:"dir" json:"dir" yaml:"dir"`

	// Active is the mode selected at startup.
	Active string `toml:"active" json:"active" yaml:"active"`

	// Watch reloads instruction files when they change on disk.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`
}

// TranscriptConfig holds session persistence configuration.
type TranscriptConfig struct {
	// Enabled turns transcript recording on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database path.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// LogContent includes update content in debug logs. Off by
	// default: dictated text is the user's document.
	LogContent bool `toml:"log_content" json:"log_content" yaml:"log_content"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Feed: FeedConfig{
			Source:          "stdin",
			ReadBufferBytes: 4096,
		},
		Sink: SinkConfig{
			Type:          "xdotool",
			XdotoolPath:   "xdotool",
			TypingDelayMs: 5,
		},
		Baseline: BaselineConfig{
			Step: 10,
		},
		Modes: ModesConfig{
			Dir:   filepath.Join(PlatformConfigDir(), "modes"),
			Watch: true,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Path:    filepath.Join(PlatformDataDir(), "transcript.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Feed.Source {
	case "stdin":
	case "file":
		if c.Feed.Path == "" {
			errs = append(errs, errors.New("feed.path is required for the file source"))
		}
	case "websocket":
		if c.Feed.URL == "" {
			errs = append(errs, errors.New("feed.url is required for the websocket source"))
		} else if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
			errs = append(errs, fmt.Errorf("feed.url %q must use ws:// or wss://", c.Feed.URL))
		}
	default:
		errs = append(errs, fmt.Errorf("feed.source %q is not one of stdin, file, websocket", c.Feed.Source))
	}
	if c.Feed.ReadBufferBytes <= 0 {
		errs = append(errs, errors.New("feed.read_buffer_bytes must be positive"))
	}

	switch c.Sink.Type {
	case "xdotool", "clipboard", "trace":
	default:
		errs = append(errs, fmt.Errorf("sink.type %q is not one of xdotool, clipboard, trace", c.Sink.Type))
	}
	if c.Sink.TypingDelayMs < 0 {
		errs = append(errs, errors.New("sink.typing_delay_ms must not be negative"))
	}

	if c.Baseline.Step <= 0 {
		errs = append(errs, errors.New("baseline.step must be positive"))
	}

	if c.Transcript.Enabled && c.Transcript.Path == "" {
		errs = append(errs, errors.New("transcript.path is required when transcript.enabled"))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is invalid", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// ApplyEnvOverrides overlays DICTATED_* environment variables onto the
// configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DICTATED_FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv("DICTATED_FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("DICTATED_SINK_TYPE"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("DICTATED_TRANSCRIPT_PATH"); v != "" {
		c.Transcript.Path = v
		c.Transcript.Enabled = true
	}
	if v := os.Getenv("DICTATED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DICTATED_BASELINE_STEP"); v != "" {
		if step, err := strconv.Atoi(v); err == nil {
			c.Baseline.Step = step
		}
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/dictated/
//   - Linux:   ~/.config/dictated/
//   - Windows: %APPDATA%\dictated\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "dictated")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "dictated")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "dictated")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "dictated")
	}
}

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/dictated/
//   - Linux:   ~/.local/share/dictated/
//   - Windows: %APPDATA%\dictated\
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "dictated")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "dictated")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "dictated")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "dictated")
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}
