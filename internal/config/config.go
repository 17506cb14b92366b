// Package config loads castkeeper's TOML configuration.
//
// Values come from, in increasing precedence: Default(), the TOML file,
// and CASTKEEPER_* environment variables. The result is validated once
// and treated as immutable afterwards.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/castkeeper/castkeeper/internal/fileutil"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths locates the cast root and the registry database.
type Paths struct {
	Root     string `toml:"root"`
	Database string `toml:"database"`
}

// TTS configures the speech service and the endpoint allow-list.
type TTS struct {
	URL            string   `toml:"url"`
	Voice          string   `toml:"voice"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	AllowedHosts   []string `toml:"allowed_hosts"`
	AllowedPorts   []int    `toml:"allowed_ports"`
	MaxAudioBytes  int64    `toml:"max_audio_bytes"`
}

// Audio configures the ffmpeg padding step.
type Audio struct {
	FFmpeg         string `toml:"ffmpeg"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PrerollMS      int    `toml:"preroll_ms"`
	PostrollMS     int    `toml:"postroll_ms"`
}

// Cast holds request limits and locking behavior.
type Cast struct {
	MaxTranscriptLength     int  `toml:"max_transcript_length"`
	CrossProcessLock        bool `toml:"cross_process_lock"`
	StaleReservationMinutes int  `toml:"stale_reservation_minutes"`
}

// Events configures cast-created notifications. An empty NATSURL
// disables them.
type Events struct {
	NATSURL string `toml:"nats_url"`
	Subject string `toml:"subject"`
}

// Logging configures log output. Logs always go to stderr; Dir adds a
// file copy.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for castkeeper.
type Config struct {
	Paths   Paths   `toml:"paths"`
	TTS     TTS     `toml:"tts"`
	Audio   Audio   `toml:"audio"`
	Cast    Cast    `toml:"cast"`
	Events  Events  `toml:"events"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/castkeeper/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns
// the config, the resolved path, and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("castkeeper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// CreateSample writes the annotated sample configuration to path. An
// existing file is left untouched unless overwrite is set.
func CreateSample(path string, overwrite bool) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(expanded); err == nil {
			return fmt.Errorf("config file %s already exists", expanded)
		}
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := fileutil.WriteFileAtomic(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}

// TTSTimeout is the per-request speech deadline.
func (c *Config) TTSTimeout() time.Duration {
	return time.Duration(c.TTS.TimeoutSeconds) * time.Second
}

// AudioTimeout is the per-request ffmpeg deadline.
func (c *Config) AudioTimeout() time.Duration {
	return time.Duration(c.Audio.TimeoutSeconds) * time.Second
}

// Preroll is the silence inserted before speech.
func (c *Config) Preroll() time.Duration {
	return time.Duration(c.Audio.PrerollMS) * time.Millisecond
}

// Postroll is the silence appended after speech.
func (c *Config) Postroll() time.Duration {
	return time.Duration(c.Audio.PostrollMS) * time.Millisecond
}

// StaleReservationAge is how old a pending registry row must be before
// startup discards it.
func (c *Config) StaleReservationAge() time.Duration {
	return time.Duration(c.Cast.StaleReservationMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
