package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTTS()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

// applyEnv overlays deploy-time values from the environment.
func (c *Config) applyEnv() error {
	overrides := []struct {
		key    string
		target *string
	}{
		{"CASTKEEPER_ROOT", &c.Paths.Root},
		{"CASTKEEPER_DB", &c.Paths.Database},
		{"CASTKEEPER_TTS_URL", &c.TTS.URL},
		{"CASTKEEPER_TTS_VOICE", &c.TTS.Voice},
		{"CASTKEEPER_FFMPEG", &c.Audio.FFmpeg},
		{"CASTKEEPER_NATS_URL", &c.Events.NATSURL},
		{"CASTKEEPER_LOG_LEVEL", &c.Logging.Level},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.key); ok {
			*o.target = strings.TrimSpace(value)
		}
	}

	if value, ok := os.LookupEnv("CASTKEEPER_MAX_TRANSCRIPT_LENGTH"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("CASTKEEPER_MAX_TRANSCRIPT_LENGTH: %w", err)
		}
		c.Cast.MaxTranscriptLength = n
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.Root) == "" {
		c.Paths.Root = defaultRoot
	}
	if c.Paths.Root, err = expandPath(c.Paths.Root); err != nil {
		return fmt.Errorf("paths.root: %w", err)
	}
	if strings.TrimSpace(c.Paths.Database) == "" {
		c.Paths.Database = defaultDatabase
	}
	if c.Paths.Database, err = expandPath(c.Paths.Database); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTTS() {
	c.TTS.URL = strings.TrimSpace(c.TTS.URL)
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if len(c.TTS.AllowedHosts) == 0 {
		c.TTS.AllowedHosts = append([]string(nil), defaultAllowedHosts...)
	}
	if len(c.TTS.AllowedPorts) == 0 {
		c.TTS.AllowedPorts = append([]int(nil), defaultAllowedPorts...)
	}
	if c.TTS.MaxAudioBytes <= 0 {
		c.TTS.MaxAudioBytes = defaultMaxAudioBytes
	}
	if strings.TrimSpace(c.Audio.FFmpeg) == "" {
		c.Audio.FFmpeg = defaultFFmpeg
	}
}

func (c *Config) normalizeEvents() {
	c.Events.NATSURL = strings.TrimSpace(c.Events.NATSURL)
	if strings.TrimSpace(c.Events.Subject) == "" {
		c.Events.Subject = defaultEventSubject
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
